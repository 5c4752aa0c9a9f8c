package document

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	ErrNoFile      = errors.New("no file provided")
	ErrNotPDFName  = errors.New("only PDF files allowed")
	ErrTooLarge    = errors.New("file too large")
	ErrBadMagic    = errors.New("invalid PDF file content")
	pdfMagicPrefix = []byte("%PDF")
)

// CheckUpload rejects uploads that are not plausibly a PDF document.
// The checks run in order: name, size, magic bytes.
func CheckUpload(filename string, data []byte, maxBytes int64) error {
	if strings.TrimSpace(filename) == "" {
		return ErrNoFile
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return ErrNotPDFName
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return fmt.Errorf("%w: maximum size is %dMB", ErrTooLarge, maxBytes/(1024*1024))
	}
	if !bytes.HasPrefix(data, pdfMagicPrefix) {
		return ErrBadMagic
	}
	return nil
}

// PageNumbers returns 1..N for an N-page document.
func PageNumbers(data []byte) (pages []int, err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	n := r.NumPage()
	pages = make([]int, 0, n)
	for i := 1; i <= n; i++ {
		pages = append(pages, i)
	}
	return pages, nil
}
