package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"i4.energy/across/envnode/device"
)

// StatusSource provides the last measurement. *device.Controller
// implements it.
type StatusSource interface {
	Last() (device.Snapshot, bool)
}

// Server exposes the device's metrics and its last reading over HTTP
type Server struct {
	Logger  *slog.Logger
	Metrics http.Handler
	Status  StatusSource
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics)
	}
	mux.HandleFunc("GET /reading", s.handleReading)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// handleReading returns the outcome of the last measurement
func (s *Server) handleReading(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.Status.Last()
	if !ok {
		s.sendError(w, "no reading yet", http.StatusNotFound)
		return
	}

	type ReadingResponse struct {
		CycleID     string    `json:"cycle_id"`
		Mode        string    `json:"mode"`
		Time        time.Time `json:"time"`
		Model       string    `json:"model,omitempty"`
		Temperature *float64  `json:"temperature,omitempty"`
		Humidity    *float64  `json:"humidity,omitempty"`
		Error       string    `json:"error,omitempty"`
	}

	resp := ReadingResponse{
		CycleID: snap.CycleID,
		Mode:    snap.Mode,
		Time:    snap.Time,
		Error:   snap.Error,
	}
	if snap.Error == "" {
		t, h := snap.Reading.Celsius(), snap.Reading.RelativeHumidity()
		resp.Model = snap.Reading.Model.String()
		resp.Temperature, resp.Humidity = &t, &h
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.Logger.Error("Failed to encode reading", "error", err)
	}
}
