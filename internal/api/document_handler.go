package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"dataportal/domain/document"
	"dataportal/internal/documents"
	"dataportal/internal/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DocumentHandler serves the internal and external PDF libraries
type DocumentHandler struct {
	docs   *documents.Service
	logger *zap.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(docs *documents.Service, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{docs: docs, logger: logger}
}

func (h *DocumentHandler) category(c *gin.Context) (document.Category, bool) {
	cat, ok := document.ParseCategory(c.Param("category"))
	if !ok {
		respondError(c, h.logger, errors.NotFound("document category "+c.Param("category")))
	}
	return cat, ok
}

// Upload handles POST /api/documents/:category with multipart file and title
func (h *DocumentHandler) Upload(c *gin.Context) {
	cat, ok := h.category(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, h.logger, errors.InvalidInput("multipart field file is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, h.logger, errors.ParseError("failed to open upload", err))
		return
	}
	defer f.Close()

	doc, err := h.docs.Upload(c.Request.Context(), cat, c.PostForm("title"), fh.Filename, f)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// List handles GET /api/documents/:category
func (h *DocumentHandler) List(c *gin.Context) {
	cat, ok := h.category(c)
	if !ok {
		return
	}
	docs, err := h.docs.List(c.Request.Context(), cat)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// Get handles GET /api/documents/:category/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	cat, ok := h.category(c)
	if !ok {
		return
	}
	doc, err := h.docs.Get(c.Request.Context(), cat, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// File handles GET /api/documents/:category/:id/file
func (h *DocumentHandler) File(c *gin.Context) {
	cat, ok := h.category(c)
	if !ok {
		return
	}
	doc, rc, err := h.docs.Open(c.Request.Context(), cat, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, doc.SizeBytes, "application/pdf", rc, map[string]string{
		"Content-Disposition": inlineDisposition(doc),
	})
}

// Delete handles DELETE /api/documents/:category/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	cat, ok := h.category(c)
	if !ok {
		return
	}
	if err := h.docs.Delete(c.Request.Context(), cat, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func inlineDisposition(doc *document.Document) string {
	return fmt.Sprintf("inline; filename=%q", doc.OriginalName)
}

// streamPDF copies a stored document to a plain http.ResponseWriter
func streamPDF(w http.ResponseWriter, doc *document.Document, rc io.Reader) error {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.FormatInt(doc.SizeBytes, 10))
	w.Header().Set("Content-Disposition", inlineDisposition(doc))
	w.WriteHeader(http.StatusOK)
	_, err := io.Copy(w, rc)
	return err
}
