package api

import (
	"encoding/json"
	"net/http"

	"dataportal/domain/document"
	"dataportal/internal/documents"
	"dataportal/internal/errors"
	"dataportal/internal/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// PublicServer mirrors the external document library for anonymous readers
type PublicServer struct {
	docs   *documents.Service
	logger *zap.Logger
	router *chi.Mux
}

// NewPublicServer builds the public mirror router
func NewPublicServer(docs *documents.Service, logger *zap.Logger) *PublicServer {
	s := &PublicServer{
		docs:   docs,
		logger: logging.OrNop(logger).Named("public"),
		router: chi.NewRouter(),
	}
	s.router.Use(middleware.Recoverer)
	s.router.Get("/documents", s.handleList)
	s.router.Get("/documents/{id}", s.handleFile)
	return s
}

// ServeHTTP implements http.Handler
func (s *PublicServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *PublicServer) handleList(w http.ResponseWriter, r *http.Request) {
	docs, err := s.docs.List(r.Context(), document.CategoryExternal)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *PublicServer) handleFile(w http.ResponseWriter, r *http.Request) {
	doc, rc, err := s.docs.Open(r.Context(), document.CategoryExternal, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer rc.Close()
	if err := streamPDF(w, doc, rc); err != nil {
		s.logger.Warn("document stream interrupted", zap.String("id", doc.ID), zap.Error(err))
	}
}

func (s *PublicServer) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
		message = "internal server error"
	}
	s.writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{"code": errors.GetCode(err), "message": message},
	})
}

func (s *PublicServer) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}
