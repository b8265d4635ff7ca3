package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Error codes carried in envelope errors.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeValidationError = "VALIDATION_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
)

// Envelope is the uniform response body of every /api route.
type Envelope struct {
	Success   bool           `json:"success"`
	Data      any            `json:"data,omitempty"`
	Error     *EnvelopeError `json:"error,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// EnvelopeError describes a failed request.
type EnvelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeSuccess(w http.ResponseWriter, data any) {
	s.writeJSON(w, http.StatusOK, Envelope{
		Success:   true,
		Data:      data,
		Timestamp: s.clock.Now().UnixMilli(),
	})
}

// writeEnvelopeError reports a handler outcome. The HTTP status is 200 so
// clients branch on success and error.code only.
func (s *Server) writeEnvelopeError(w http.ResponseWriter, code, message string) {
	s.writeEnvelopeErrorStatus(w, http.StatusOK, code, message)
}

func (s *Server) writeEnvelopeErrorStatus(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, Envelope{
		Success:   false,
		Error:     &EnvelopeError{Code: code, Message: message},
		Timestamp: s.clock.Now().UnixMilli(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}
