package document

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalPDF builds a structurally valid PDF with the given number of empty pages.
func minimalPDF(pages int) []byte {
	var buf bytes.Buffer
	offsets := []int{}
	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	writeObj("<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	writeObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		writeObj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestCheckUpload(t *testing.T) {
	valid := minimalPDF(1)

	tests := []struct {
		name     string
		filename string
		data     []byte
		max      int64
		wantErr  error
	}{
		{"valid", "passport.pdf", valid, 1 << 20, nil},
		{"uppercase extension", "PASSPORT.PDF", valid, 1 << 20, nil},
		{"empty filename", "", valid, 1 << 20, ErrNoFile},
		{"wrong extension", "passport.png", valid, 1 << 20, ErrNotPDFName},
		{"too large", "passport.pdf", valid, 10, ErrTooLarge},
		{"bad magic", "passport.pdf", []byte("hello world"), 1 << 20, ErrBadMagic},
		{"name checked before content", "scan.jpg", []byte("hello"), 1 << 20, ErrNotPDFName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckUpload(tt.filename, tt.data, tt.max)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPageNumbers(t *testing.T) {
	pages, err := PageNumbers(minimalPDF(3))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, pages)
}

func TestPageNumbersMalformed(t *testing.T) {
	pages, err := PageNumbers([]byte("%PDF-1.4 truncated"))
	assert.Error(t, err)
	assert.Empty(t, pages)
}
