// Package document reads and validates the PDF a deck is generated from.
package document

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/ChaseRain/pdf2deck/internal/infra/logger"
	"github.com/ChaseRain/pdf2deck/pkg/errors"
)

const MimeTypePDF = "application/pdf"

// Document is an uploaded PDF. It is never mutated after Read; a new upload
// replaces it wholesale.
type Document struct {
	Name     string
	Bytes    []byte
	Base64   string
	MimeType string
	Pages    int
}

func (d *Document) Size() int {
	return len(d.Bytes)
}

type Reader struct {
	maxBytes int64
	logger   *logger.Logger
}

func NewReader(maxBytes int64, log *logger.Logger) *Reader {
	return &Reader{maxBytes: maxBytes, logger: log}
}

func (rd *Reader) MaxBytes() int64 {
	return rd.maxBytes
}

// Read consumes r and returns a validated Document. Only application/pdf is
// accepted. A failed page count is logged and leaves Pages at zero.
func (rd *Reader) Read(name string, r io.Reader) (*Document, error) {
	data, err := io.ReadAll(io.LimitReader(r, rd.maxBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidReq, "failed to read document")
	}
	if int64(len(data)) > rd.maxBytes {
		return nil, errors.New(errors.ErrCodeInvalidReq, fmt.Sprintf("document exceeds %d bytes", rd.maxBytes))
	}
	if len(data) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidReq, "document is empty")
	}

	mt := mimetype.Detect(data)
	if !mt.Is(MimeTypePDF) {
		return nil, errors.New(errors.ErrCodeInvalidReq,
			fmt.Sprintf("only %s is accepted, got %s", MimeTypePDF, mt.String()))
	}

	doc := &Document{
		Name:     name,
		Bytes:    data,
		Base64:   base64.StdEncoding.EncodeToString(data),
		MimeType: MimeTypePDF,
	}

	pages, err := countPages(data)
	if err != nil {
		rd.logger.Warn("failed to count document pages", "name", name, "error", err)
	} else {
		doc.Pages = pages
	}

	rd.logger.Info("document loaded", "name", name, "size_bytes", len(data), "pages", doc.Pages)
	return doc, nil
}

func countPages(data []byte) (n int, err error) {
	defer func() {
		// pdfcpu panics on some damaged cross-reference tables.
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfcpu: %v", r)
		}
	}()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(data), conf)
}
