// Package acoustid queries the AcoustID web service for recordings matching
// an acoustic fingerprint.
package acoustid

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/franz/songsearch/internal/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// BaseURL is the AcoustID API base URL
	BaseURL = "https://api.acoustid.org/v2"

	// RateLimit is the minimum interval between requests (AcoustID allows 3 per second)
	RateLimit = 334 * time.Millisecond

	lookupMeta = "recordings releasegroups compress"

	maxResponseSize = 4 << 20
)

// Client performs fingerprint lookups
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *time.Ticker
}

// NewClient creates an AcoustID client. An empty baseURL uses BaseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     strings.TrimRight(baseURL, "/"),
		rateLimiter: time.NewTicker(RateLimit),
	}
}

// Close releases resources used by the client
func (c *Client) Close() {
	if c.rateLimiter != nil {
		c.rateLimiter.Stop()
	}
}

// Response is the body of a lookup response
type Response struct {
	Status  string    `json:"status"`
	Results []Result  `json:"results"`
	Error   *APIError `json:"error"`
}

// APIError is returned by the service with status "error"
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Result is one fingerprint match
type Result struct {
	ID            string         `json:"id"`
	Score         float64        `json:"score"`
	Recordings    []Recording    `json:"recordings"`
	ReleaseGroups []ReleaseGroup `json:"releasegroups"`
}

// Artist is a credited artist
type Artist struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	JoinPhrase string `json:"joinphrase"`
}

// ReleaseGroup is an album the recording appears on
type ReleaseGroup struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Type             string   `json:"type"`
	FirstReleaseDate string   `json:"first-release-date"`
	Artists          []Artist `json:"artists"`
}

// Recording is a MusicBrainz recording linked to the fingerprint
type Recording struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Duration         float64        `json:"duration"`
	FirstReleaseDate string         `json:"first-release-date"`
	Artists          []Artist       `json:"artists"`
	ReleaseGroups    []ReleaseGroup `json:"releasegroups"`
}

// ArtistNames returns the names of the credited artists
func (r *Recording) ArtistNames() []string {
	names := make([]string, 0, len(r.Artists))
	for _, a := range r.Artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return names
}

// Lookup sends a fingerprint to AcoustID with the given API key
func (c *Client) Lookup(ctx context.Context, apiKey, fingerprint string, duration float64) (*Response, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: AcoustID API key is empty", util.ErrInvalidConfig)
	}
	if fingerprint == "" {
		return nil, fmt.Errorf("fingerprint cannot be empty")
	}

	form := url.Values{}
	form.Set("client", apiKey)
	form.Set("format", "json")
	form.Set("meta", lookupMeta)
	form.Set("duration", strconv.Itoa(int(duration)))
	form.Set("fingerprint", fingerprint)

	select {
	case <-c.rateLimiter.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Fingerprints are too long for a query string
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/lookup", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var out Response
	if resp.StatusCode != http.StatusOK {
		// Service errors come with a JSON body describing them
		if json.Unmarshal(body, &out) == nil && out.Error != nil {
			return nil, fmt.Errorf("acoustid error %d: %s (HTTP %d)", out.Error.Code, out.Error.Message, resp.StatusCode)
		}
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, snippet(body))
	}

	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if out.Status != "ok" {
		if out.Error != nil {
			return nil, fmt.Errorf("acoustid error %d: %s", out.Error.Code, out.Error.Message)
		}
		return nil, fmt.Errorf("acoustid returned status %q (HTTP %d)", out.Status, resp.StatusCode)
	}

	util.DebugLog("AcoustID: %d results", len(out.Results))
	return &out, nil
}

func snippet(body []byte) string {
	if len(body) > 512 {
		body = body[:512]
	}
	return strings.TrimSpace(string(body))
}

// BestResult returns the highest scoring result that links at least one
// recording, or nil when there is none. Ties keep the service's order.
func BestResult(results []Result) *Result {
	candidates := make([]*Result, 0, len(results))
	for i := range results {
		if len(results[i].Recordings) > 0 {
			candidates = append(candidates, &results[i])
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates[0]
}
