// Package extract recovers plain text from documents held in blob storage.
// PDF documents are read with pdfcpu; text and Markdown documents are read
// as UTF-8.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/JaimeStill/ldaa/internal/workflow"
	"github.com/JaimeStill/ldaa/pkg/storage"
)

// Content types recognized by the extractor.
const (
	ContentTypePDF      = "application/pdf"
	ContentTypeText     = "text/plain"
	ContentTypeMarkdown = "text/markdown"
)

var (
	ErrUnsupported = errors.New("unsupported document type")
	ErrInvalidText = errors.New("document is not valid UTF-8 text")
)

// Extractor reads documents from storage and returns their text.
type Extractor struct {
	store  storage.System
	logger *slog.Logger
}

// New creates an Extractor reading from store.
func New(store storage.System, logger *slog.Logger) *Extractor {
	return &Extractor{
		store:  store,
		logger: logger.With("system", "extract"),
	}
}

// Extract downloads the document at key and extracts its text.
func (e *Extractor) Extract(ctx context.Context, key string) (*workflow.Extraction, error) {
	rc, err := e.store.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	contentType := DetectContentType(key, data)

	var ext *workflow.Extraction
	switch contentType {
	case ContentTypePDF:
		ext, err = extractPDF(data)
	case ContentTypeText, ContentTypeMarkdown:
		ext, err = extractText(data, contentType)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, contentType)
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", key, err)
	}

	e.logger.DebugContext(
		ctx, "document extracted",
		"key", key,
		"content_type", contentType,
		"pages", ext.Pages,
		"characters", len(ext.Text),
	)

	return ext, nil
}

// DetectContentType classifies a document by its leading bytes, falling
// back to the key's extension.
func DetectContentType(key string, data []byte) string {
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return ContentTypePDF
	}

	switch strings.ToLower(path.Ext(key)) {
	case ".pdf":
		return ContentTypePDF
	case ".md", ".markdown":
		return ContentTypeMarkdown
	case ".txt", ".text":
		return ContentTypeText
	}

	detected, _, _ := strings.Cut(http.DetectContentType(data), ";")
	return detected
}

func extractText(data []byte, contentType string) (*workflow.Extraction, error) {
	if !utf8.Valid(data) {
		return nil, ErrInvalidText
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimPrefix(text, "\ufeff")

	return &workflow.Extraction{
		Text:        text,
		Pages:       1,
		ContentType: contentType,
	}, nil
}

func extractPDF(data []byte) (*workflow.Extraction, error) {
	ctx, err := api.ReadContext(bytes.NewReader(data), nil)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("validate pdf: %w", err)
	}

	pages := make([]string, 0, ctx.PageCount)
	for i := 1; i <= ctx.PageCount; i++ {
		r, err := pdfcpu.ExtractPageContent(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if r == nil {
			pages = append(pages, "")
			continue
		}

		content, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}

		pages = append(pages, strings.TrimSpace(ContentText(content)))
	}

	return &workflow.Extraction{
		Text:        strings.Join(pages, "\n\n"),
		Pages:       ctx.PageCount,
		ContentType: ContentTypePDF,
	}, nil
}
