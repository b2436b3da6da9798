package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"phishguard/ai"
	"phishguard/qrcode"
	"phishguard/store"
	"phishguard/vetting"
)

var (
	errTooLarge    = errors.New("file too large")
	errUnsupported = errors.New("only image files are allowed")
)

// envelope wraps every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[HTTP] encode response: %v", err)
	}
}

func sendOK(w http.ResponseWriter, message string, data any) {
	sendJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

// sendError maps err to a status code. Unknown errors are 500 and get logged.
func sendError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, vetting.ErrInvalidInput), errors.Is(err, ai.ErrEmptyMessage):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, errUnsupported):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, qrcode.ErrNoCode):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, vetting.ErrNotConfigured):
		status = http.StatusServiceUnavailable
	default:
		log.Printf("[HTTP] ❌ %s: %v", message, err)
	}
	sendJSON(w, status, envelope{Success: false, Message: message, Error: err.Error()})
}
