package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrapeRequest_Defaults(t *testing.T) {
	r := ScrapeRequest{URL: "https://example.com"}
	r.Defaults(48*time.Hour, 30*time.Second)

	assert.Equal(t, FormatMarkdown, r.Format)
	assert.Equal(t, ExtractReadability, r.ExtractMode)
	assert.Equal(t, 48*time.Hour, r.TTL())
	assert.Equal(t, 30*time.Second, r.Deadline())

	r = ScrapeRequest{URL: "https://example.com", MaxAge: 60, Timeout: 5}
	r.Defaults(48*time.Hour, 30*time.Second)
	assert.Equal(t, time.Minute, r.TTL())
	assert.Equal(t, 5*time.Second, r.Deadline())
}

func TestScrapeRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		req  ScrapeRequest
		ok   bool
	}{
		{"plain", ScrapeRequest{URL: "https://example.com"}, true},
		{"json with prompt", ScrapeRequest{URL: "https://example.com", Format: FormatJSON, Prompt: "title"}, true},
		{"json without prompt", ScrapeRequest{URL: "https://example.com", Format: FormatJSON}, false},
		{"ftp", ScrapeRequest{URL: "ftp://example.com"}, false},
		{"no host", ScrapeRequest{URL: "https://"}, false},
		{"bad format", ScrapeRequest{URL: "https://example.com", Format: "pdf"}, false},
		{"bad mode", ScrapeRequest{URL: "https://example.com", ExtractMode: "pruning"}, false},
		{"negative ttl", ScrapeRequest{URL: "https://example.com", MaxAge: -1}, false},
		{"bad action", ScrapeRequest{URL: "https://example.com", Actions: []Action{{Type: ActionClick}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, ErrCodeInvalidInput, CodeOf(err))
		})
	}
}

func TestBatchResult_ByURL(t *testing.T) {
	res := &BatchResult{Items: []BatchItem{
		{URL: "https://a.test", Result: &ExtractionResult{Title: "first"}},
		{URL: "https://b.test", Err: NewScrapeError(ErrCodeNavigation, "unreachable", nil)},
		{URL: "https://a.test", Result: &ExtractionResult{Title: "second"}},
	}}

	m := res.ByURL()
	require.Len(t, m, 2)
	assert.Equal(t, "first", m["https://a.test"].Result.Title)
	assert.True(t, m["https://b.test"].Failed())
	assert.Equal(t, 2, res.Succeeded())

	resp := NewBatchResponse(res)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, ErrCodeNavigation, resp.Results[1].Error.Code)
}
