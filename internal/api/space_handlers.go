package api

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/oiliness-w4v0/canvas-application/internal/space"
)

// saveToSpace handles POST /api/space/save.
func (s *Server) saveToSpace(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeEnvelopeErrorStatus(w, http.StatusBadRequest, CodeValidationError, err.Error())
		return
	}
	if strings.TrimSpace(*req.URL) == "" {
		s.writeEnvelopeError(w, CodeValidationError, "URL is required")
		return
	}
	res, err := s.saver.Save(r.Context(), *req.URL)
	if err != nil {
		if errors.Is(err, space.ErrURLRequired) {
			s.writeEnvelopeError(w, CodeValidationError, "URL is required")
			return
		}
		s.logger.Error("save to space failed", zap.String("url", *req.URL), zap.Error(err))
		s.writeEnvelopeError(w, CodeInternalError, "Failed to save to space")
		return
	}
	s.writeSuccess(w, res)
}
