package at

import (
	"bufio"
	"strings"
)

// IsTerminator reports whether b ends a response line. The SIM800 emits
// CRLF, but echoed commands and some URCs arrive with a bare CR or LF, so
// either byte completes a line.
func IsTerminator(b byte) bool {
	return b == CR || b == LF
}

// Splitter is used for tokenizing AT command modem responses. It uses
// the signature of bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// Any run of CR and LF bytes terminates a line and empty lines are never
// produced, so "OK\r\r\nERR\n" yields "OK" then "ERR". The SMS input
// prompt ("> ") is returned as a token of its own.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) && IsTerminator(data[start]) {
		start++
	}
	if start == len(data) {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}
	rest := data[start:]

	if strings.HasPrefix(string(rest), Prompt) {
		return start + len(Prompt), rest[:len(Prompt)], nil
	}

	for i, b := range rest {
		if IsTerminator(b) {
			return start + i + 1, rest[:i], nil
		}
	}

	if atEOF {
		return len(data), rest, nil
	}
	return start, nil, nil
}

var _ bufio.SplitFunc = Splitter

// Contains reports whether the response fragment needle occurs anywhere in
// line. Modem replies are classified by fragment, never parsed as a grammar.
func Contains(line, needle string) bool {
	return strings.Contains(line, needle)
}

// Classify identifies the nature of the modem output
func Classify(line string) ResponseType {
	if line == Prompt {
		return TypePrompt
	}

	// Direct matches for final results
	switch line {
	case OK, ERROR, NoCarrier, NoDialtone, Busy, NoAnswer:
		return TypeFinal
	}

	// Prefix matches
	switch {
	case strings.HasPrefix(line, CmeError), strings.HasPrefix(line, CmsError):
		return TypeFinal
	case strings.HasPrefix(line, UrcSmsDeliver),
		strings.HasPrefix(line, UrcNewMsg),
		strings.HasPrefix(line, UrcMessageReport),
		line == UrcCall,
		line == UrcReady,
		strings.HasPrefix(line, UrcUnderVoltage),
		line == UrcNormalPowerOff:
		return TypeURC
	default:
		return TypeData
	}
}
