package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/oiliness-w4v0/canvas-application/internal/canvas"
)

// getCanvas handles GET /api/canvas and returns the first canvas row.
func (s *Server) getCanvas(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.First(r.Context())
	if err != nil {
		if errors.Is(err, canvas.ErrNotFound) {
			s.writeEnvelopeError(w, CodeNotFound, "Canvas not found")
			return
		}
		s.logger.Error("fetch canvas failed", zap.Error(err))
		s.writeEnvelopeError(w, CodeInternalError, "Failed to fetch canvas")
		return
	}
	s.writeSuccess(w, c)
}

// createCanvas handles POST /api/canvas.
func (s *Server) createCanvas(w http.ResponseWriter, r *http.Request) {
	var req canvasRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeEnvelopeErrorStatus(w, http.StatusBadRequest, CodeValidationError, err.Error())
		return
	}
	c, err := s.store.Create(r.Context(), req.fields())
	if err != nil {
		s.logger.Error("create canvas failed", zap.Error(err))
		s.writeEnvelopeError(w, CodeInternalError, "Failed to create canvas")
		return
	}
	s.writeSuccess(w, c)
}

// updateCanvas handles PUT /api/canvas/{id}. A non-numeric id is rejected
// without touching the store.
func (s *Server) updateCanvas(w http.ResponseWriter, r *http.Request) {
	var req canvasRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeEnvelopeErrorStatus(w, http.StatusBadRequest, CodeValidationError, err.Error())
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeEnvelopeError(w, CodeValidationError, "Invalid canvas ID")
		return
	}
	c, err := s.store.Update(r.Context(), id, req.fields())
	if err != nil {
		if errors.Is(err, canvas.ErrNotFound) {
			s.writeEnvelopeError(w, CodeNotFound, "Canvas not found")
			return
		}
		s.logger.Error("update canvas failed", zap.Int64("canvas_id", id), zap.Error(err))
		s.writeEnvelopeError(w, CodeInternalError, "Failed to update canvas")
		return
	}
	s.writeSuccess(w, c)
}

func (req canvasRequest) fields() canvas.Fields {
	return canvas.Fields{Nodes: req.Nodes, Edges: req.Edges, CanvasState: req.CanvasState}
}
