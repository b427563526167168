// Package brochure turns an uploaded event brochure into plain text.
package brochure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const defaultMaxBytes = 10 << 20

type Extractor struct {
	maxBytes int64
}

func NewExtractor(maxBytes int64) *Extractor {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Extractor{maxBytes: maxBytes}
}

// Extract supports PDF and UTF-8 text. Anything else is rejected.
func (e *Extractor) Extract(ctx context.Context, filename, mimeType string, body io.Reader) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(body, e.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read brochure: %w", err)
	}
	if int64(len(raw)) > e.maxBytes {
		return "", fmt.Errorf("brochure exceeds %d bytes", e.maxBytes)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if isPDF(filename, mimeType, raw) {
		return extractPDF(raw)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("unsupported brochure format: %s", filename)
	}
	return strings.TrimSpace(string(raw)), nil
}

func isPDF(filename, mimeType string, raw []byte) bool {
	if bytes.HasPrefix(raw, []byte("%PDF-")) {
		return true
	}
	return strings.EqualFold(mimeType, "application/pdf") ||
		strings.EqualFold(filepath.Ext(filename), ".pdf")
}

func extractPDF(raw []byte) (text string, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.Join(strings.Fields(buf.String()), " "), nil
}
