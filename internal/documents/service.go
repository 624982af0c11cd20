// Package documents manages the internal and external PDF libraries.
package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"dataportal/domain/core"
	"dataportal/domain/document"
	"dataportal/internal/errors"
	"dataportal/internal/logging"
	"dataportal/ports"

	"go.uber.org/zap"
)

// MaxTitleLength is the longest accepted document title, in characters
const MaxTitleLength = 255

var pdfMagic = []byte("%PDF-")

// Limits caps the upload size per category
type Limits struct {
	InternalMaxBytes int64
	ExternalMaxBytes int64
}

// DefaultLimits are 5 MB for internal and 10 MB for external documents
func DefaultLimits() Limits {
	return Limits{InternalMaxBytes: 5 << 20, ExternalMaxBytes: 10 << 20}
}

func (l Limits) forCategory(c document.Category) int64 {
	if c == document.CategoryExternal {
		return l.ExternalMaxBytes
	}
	return l.InternalMaxBytes
}

// Service stores PDF files and their metadata
type Service struct {
	repo   ports.DocumentRepository
	files  ports.FileStorage
	limits Limits
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a document service
func NewService(repo ports.DocumentRepository, files ports.FileStorage, limits Limits, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		files:  files,
		limits: limits,
		logger: logging.OrNop(logger).Named("documents"),
		now:    time.Now,
	}
}

// Upload validates and stores a PDF under category
func (s *Service) Upload(ctx context.Context, category document.Category, title, fileName string, r io.Reader) (*document.Document, error) {
	if _, ok := document.ParseCategory(string(category)); !ok {
		return nil, errors.InvalidInput(fmt.Sprintf("unknown document category %q", category))
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.ValidationError("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, errors.ValidationError(fmt.Sprintf("title exceeds %d characters", MaxTitleLength))
	}
	if ext := strings.ToLower(filepath.Ext(fileName)); ext != ".pdf" {
		return nil, errors.UnsupportedFileType(ext)
	}

	limit := s.limits.forCategory(category)
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.FileTooLarge(limit)
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, errors.ValidationError("file is not a PDF document")
	}

	key, err := s.files.Store(ctx, bytes.NewReader(data), fileName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to store document")
	}

	now := s.now().UTC()
	doc := &document.Document{
		ID:           core.NewID(),
		Category:     category,
		Title:        title,
		OriginalName: filepath.Base(fileName),
		StoragePath:  key,
		SizeBytes:    int64(len(data)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		if delErr := s.files.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned file", zap.String("key", key), zap.Error(delErr))
		}
		return nil, errors.DatabaseError("failed to save document", err)
	}

	s.logger.Info("document uploaded",
		zap.String("id", doc.ID),
		zap.String("category", string(category)),
		zap.Int64("size", doc.SizeBytes))
	return doc, nil
}

// List returns the documents of a category, newest first
func (s *Service) List(ctx context.Context, category document.Category) ([]*document.Document, error) {
	if _, ok := document.ParseCategory(string(category)); !ok {
		return nil, errors.InvalidInput(fmt.Sprintf("unknown document category %q", category))
	}
	return s.repo.ListByCategory(ctx, category)
}

// Get returns a document's metadata. A document of another category is not found.
func (s *Service) Get(ctx context.Context, category document.Category, id string) (*document.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Category != category {
		return nil, errors.NotFound("document " + id)
	}
	return doc, nil
}

// Open returns a document with a reader over its file. The caller closes it.
func (s *Service) Open(ctx context.Context, category document.Category, id string) (*document.Document, io.ReadCloser, error) {
	doc, err := s.Get(ctx, category, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.files.GetReader(ctx, doc.StoragePath)
	if err != nil {
		return nil, nil, err
	}
	return doc, rc, nil
}

// Delete removes a document's metadata and then its file
func (s *Service) Delete(ctx context.Context, category document.Category, id string) error {
	doc, err := s.Get(ctx, category, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.files.Delete(ctx, doc.StoragePath); err != nil {
		s.logger.Warn("failed to delete document file", zap.String("id", id), zap.String("key", doc.StoragePath), zap.Error(err))
	}
	s.logger.Info("document deleted", zap.String("id", id), zap.String("category", string(category)))
	return nil
}
