package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/passport_api/internal/config"
	"github.com/GTDGit/passport_api/internal/llm"
)

func newExtractor(c *fakeCompleter) *ExtractionService {
	return NewExtractionService(c, &config.LLMConfig{MaxTokens: 16000}, testMetrics())
}

func TestExtractNormalizesFencedAnswer(t *testing.T) {
	c := newFakeCompleter()
	c.set(titleExtraction, extractionAnswer)

	p, err := newExtractor(c).Extract(context.Background(), pdfBytes("body"))
	require.NoError(t, err)

	assert.Equal(t, "DOE JOHN / ДОУ ДЖОН", p.FullName())
	assert.Equal(t, "FA0123456", p.PassportNumber())
	require.Len(t, p.Visas, 1)
	require.Len(t, p.Stamps, 1)
	assert.NotNil(t, p.Pages)
	assert.Empty(t, p.Pages, "unparsable PDF yields no page refs")
}

func TestExtractBuildsDocumentRequest(t *testing.T) {
	c := newFakeCompleter()
	c.set(titleExtraction, `{}`)

	_, err := newExtractor(c).Extract(context.Background(), pdfBytes("body"))
	require.NoError(t, err)

	req := c.last(titleExtraction)
	assert.Equal(t, 16000, req.MaxTokens)
	assert.Zero(t, req.Temperature)
	require.Len(t, req.Plugins, 1)
	assert.Equal(t, "file-parser", req.Plugins[0].ID)

	require.Len(t, req.Messages, 1)
	parts, ok := req.Messages[0].Content.([]llm.ContentPart)
	require.True(t, ok)
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].Type)
	assert.Contains(t, parts[0].Text, "biographical_page")
	require.NotNil(t, parts[1].File)
	assert.Equal(t, "passport.pdf", parts[1].File.Filename)
	assert.True(t, strings.HasPrefix(parts[1].File.FileData, "data:application/pdf;base64,"))
}

func TestExtractMissingSectionsDefault(t *testing.T) {
	c := newFakeCompleter()
	c.set(titleExtraction, `{"biographical_page": {"passport_number": "X1"}}`)

	p, err := newExtractor(c).Extract(context.Background(), pdfBytes(""))
	require.NoError(t, err)
	assert.NotNil(t, p.MRZ)
	assert.NotNil(t, p.Visas)
	assert.NotNil(t, p.Stamps)
}

func TestExtractTransportError(t *testing.T) {
	c := newFakeCompleter()
	c.fail(titleExtraction, &llm.TransportError{StatusCode: 503, Body: "down"})

	_, err := newExtractor(c).Extract(context.Background(), pdfBytes(""))
	var terr *ExtractionTransportError
	require.ErrorAs(t, err, &terr)

	var inner *llm.TransportError
	assert.True(t, errors.As(err, &inner))
	assert.Equal(t, 503, inner.StatusCode)
}

func TestExtractParseErrorKeepsRaw(t *testing.T) {
	c := newFakeCompleter()
	raw := "I could not read this passport, sorry."
	c.set(titleExtraction, raw)

	_, err := newExtractor(c).Extract(context.Background(), pdfBytes(""))
	var perr *ExtractionParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, raw, perr.Raw)
}

func TestExtractRejectsNonObjectJSON(t *testing.T) {
	c := newFakeCompleter()
	c.set(titleExtraction, "```json\n[1, 2]\n```")

	_, err := newExtractor(c).Extract(context.Background(), pdfBytes(""))
	var perr *ExtractionParseError
	require.ErrorAs(t, err, &perr)
}
