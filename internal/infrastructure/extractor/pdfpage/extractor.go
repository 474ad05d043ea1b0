// Package pdfpage extracts per-page plain text from PDF files. Page numbers
// are preserved because they are part of the citation contract.
package pdfpage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/askdocs/pdfchat/internal/core/domain"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractPages returns the text of every page carrying a text layer, in
// page order with original 1-indexed page numbers. A document with no text
// layer at all (a scanned PDF) is rejected as invalid input.
func (e *Extractor) ExtractPages(ctx context.Context, r io.Reader) ([]domain.PageText, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open pdf", err)
	}

	pages := make([]domain.PageText, 0, reader.NumPage())
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single malformed page should not sink the document.
			continue
		}
		text = normalizePageText(text)
		if text == "" {
			continue
		}
		pages = append(pages, domain.PageText{PageNumber: pageNum, Text: text})
	}

	if len(pages) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract pdf pages",
			errors.New("document has no text layer"))
	}
	return pages, nil
}

func normalizePageText(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "\u00a0", " ")
	return strings.TrimSpace(text)
}
