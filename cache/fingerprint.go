package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/use-agent/firescrape/models"
)

// fingerprintVersion changes whenever the canonical encoding changes.
const fingerprintVersion = 1

// canonicalRequest lists every field that changes what a scrape returns.
// Field order is fixed by the struct, map keys are sorted by encoding/json.
type canonicalRequest struct {
	Version         int               `json:"v"`
	URL             string            `json:"url"`
	Format          models.Format     `json:"format"`
	ExtractMode     string            `json:"mode"`
	IncludeSelector string            `json:"include,omitempty"`
	WaitFor         string            `json:"wait_for,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
	Actions         []models.Action   `json:"actions"`
	Prompt          string            `json:"prompt,omitempty"`
}

// Fingerprint returns a stable key for the semantically relevant fields of
// req. Timeout, max age and the no-cache flag do not contribute.
func Fingerprint(req models.ScrapeRequest) string {
	c := canonicalRequest{
		Version:         fingerprintVersion,
		URL:             normalizeURL(req.URL),
		Format:          req.Format,
		ExtractMode:     req.ExtractMode,
		IncludeSelector: strings.TrimSpace(req.IncludeSelector),
		WaitFor:         strings.TrimSpace(req.WaitFor),
		Headers:         canonicalHeaders(req.Headers),
		Actions:         req.Actions,
		Prompt:          strings.TrimSpace(req.Prompt),
	}
	if c.Format == "" {
		c.Format = models.FormatMarkdown
	}
	if c.ExtractMode == "" {
		c.ExtractMode = models.ExtractReadability
	}
	if c.Actions == nil {
		c.Actions = []models.Action{}
	}

	// Marshal cannot fail: every field is a string, int, bool or map of strings.
	data, _ := json.Marshal(c)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// canonicalHeaders keys headers by their canonical MIME form. When two keys
// collapse to the same name the lexically last original key wins.
func canonicalHeaders(h map[string]string) map[string]string {
	if len(h) == 0 {
		return nil
	}
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(h))
	for _, k := range keys {
		out[http.CanonicalHeaderKey(strings.TrimSpace(k))] = h[k]
	}
	return out
}

// normalizeURL lowercases scheme and host and gives an empty path "/".
// Unparseable input is used verbatim.
func normalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}
