package at

const (
	// Terminal Control
	CRLF   = "\r\n"
	CR     = '\r'
	LF     = '\n'
	Prompt = "> "
	CtrlZ  = "\x1a"

	// Response Codes
	OK         = "OK"
	ERROR      = "ERROR"
	NoCarrier  = "NO CARRIER"
	NoDialtone = "NO DIALTONE"
	Busy       = "BUSY"
	NoAnswer   = "NO ANSWER"
	CmeError   = "+CME ERROR:"
	CmsError   = "+CMS ERROR:"

	// Status fragments. The SIM800 dialect is matched by fragment, not parsed.
	SimReady      = "+CPIN: READY"
	SimPin        = "+CPIN: SIM PIN"
	RegHome       = "+CREG: 0,1"
	RegRoaming    = "+CREG: 0,5"
	BearerOpen    = "+SAPBR: 1,1"
	SmsDeliverTag = "CMT:"

	// URCs (Unsolicited Result Codes)
	UrcSmsDeliver     = "+CMT:"
	UrcNewMsg         = "+CMTI:"
	UrcMessageReport  = "+CDSI:"
	UrcCall           = "RING"
	UrcReady          = "RDY"
	UrcUnderVoltage   = "UNDER-VOLTAGE"
	UrcNormalPowerOff = "NORMAL POWER DOWN"
)

// Commands understood by the SIM800 family.
const (
	CmdAt            = "AT"
	CmdEchoOff       = "ATE0"
	CmdSimStatus     = "AT+CPIN?"
	CmdEnterPin      = `AT+CPIN="%s"`
	CmdRegistration  = "AT+CREG?"
	CmdFlightModeOn  = "AT+CFUN=4"
	CmdFlightModeOff = "AT+CFUN=1"
	CmdSleepOn       = "AT+CSCLK=2"
	CmdSleepOff      = "AT+CSCLK=0"
	CmdFixBaud       = "AT+IPR=9600"
	CmdSaveConfig    = "AT&W"
	CmdRingIndicator = "AT+CFGRI=1"
	CmdSetTextMode   = "AT+CMGF=1"
	CmdDeleteAllSMS  = `AT+CMGDA="DEL ALL"`
	CmdShowSMS       = "AT+CNMI=1,2,0,0,0"
	CmdSendSMS       = `AT+CMGS="%s"`

	CmdBearerParam = `AT+SAPBR=3,1,"%s","%s"`
	CmdBearerOpen  = "AT+SAPBR=1,1"
	CmdBearerQuery = "AT+SAPBR=2,1"
	CmdBearerClose = "AT+SAPBR=0,1"

	CmdHTTPInit   = "AT+HTTPINIT"
	CmdHTTPCid    = `AT+HTTPPARA="CID",1`
	CmdHTTPURL    = `AT+HTTPPARA="URL","%s"`
	CmdHTTPAction = "AT+HTTPACTION=0"
)

type ResponseType int

const (
	TypeFinal  ResponseType = iota // OK, ERROR
	TypeURC                        // Asynchronous notifications
	TypeData                       // Intermediate command output (+CSQ: ...)
	TypePrompt                     // SMS input prompt
)

func (t ResponseType) String() string {
	switch t {
	case TypeFinal:
		return "final"
	case TypeURC:
		return "urc"
	case TypeData:
		return "data"
	case TypePrompt:
		return "prompt"
	default:
		return "unknown"
	}
}
