package musicbrainz

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/franz/songsearch/internal/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// BaseURL is the MusicBrainz API base URL
	BaseURL = "https://musicbrainz.org/ws/2"

	// RateLimit is the minimum interval between requests (MusicBrainz requirement)
	RateLimit = 1 * time.Second
)

// Client handles MusicBrainz API requests with rate limiting
type Client struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	rateLimiter *time.Ticker
	retry       *util.RetryConfig
}

// Option customises a Client
type Option func(*Client)

// WithBaseURL points the client at another server
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithRateLimit changes the minimum interval between requests
func WithRateLimit(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.rateLimiter.Reset(d)
		}
	}
}

// WithRetryConfig sets how 503 responses and transport failures are retried
func WithRetryConfig(cfg *util.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a MusicBrainz API client identifying itself with
// userAgent, which MusicBrainz expects as "app/version ( contact )".
func NewClient(userAgent string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:     BaseURL,
		userAgent:   userAgent,
		rateLimiter: time.NewTicker(RateLimit),
		retry:       util.NetworkRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases resources used by the client
func (c *Client) Close() {
	if c.rateLimiter != nil {
		c.rateLimiter.Stop()
	}
}

// Tag is a genre or folksonomy tag with its vote count
type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Artist is the artist of a credit
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ArtistCredit is one credited artist of a recording
type ArtistCredit struct {
	Name       string `json:"name"`
	JoinPhrase string `json:"joinphrase"`
	Artist     Artist `json:"artist"`
}

// ReleaseGroup groups the releases of one album
type ReleaseGroup struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	PrimaryType      string `json:"primary-type"`
	FirstReleaseDate string `json:"first-release-date"`
	Genres           []Tag  `json:"genres"`
	Tags             []Tag  `json:"tags"`
}

// Release is one issue of a release group
type Release struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Date         string        `json:"date"`
	ReleaseGroup *ReleaseGroup `json:"release-group"`
}

// Recording is a MusicBrainz recording lookup result
type Recording struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Length           int            `json:"length"`
	FirstReleaseDate string         `json:"first-release-date"`
	ArtistCredit     []ArtistCredit `json:"artist-credit"`
	Genres           []Tag          `json:"genres"`
	Tags             []Tag          `json:"tags"`
	Releases         []Release      `json:"releases"`
}

// ArtistNames returns the credited artist names
func (r *Recording) ArtistNames() []string {
	names := make([]string, 0, len(r.ArtistCredit))
	for _, credit := range r.ArtistCredit {
		name := credit.Name
		if name == "" {
			name = credit.Artist.Name
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// ReleaseGroup returns the release group of the first release that has one
func (r *Recording) ReleaseGroup() *ReleaseGroup {
	for _, release := range r.Releases {
		if release.ReleaseGroup != nil && release.ReleaseGroup.ID != "" {
			return release.ReleaseGroup
		}
	}
	return nil
}

// LookupRecording retrieves a recording with its genres, tags, releases and credits
func (c *Client) LookupRecording(ctx context.Context, mbid string) (*Recording, error) {
	if mbid == "" {
		return nil, fmt.Errorf("MBID cannot be empty")
	}

	params := url.Values{}
	params.Set("fmt", "json")
	params.Set("inc", "genres+tags+releases+release-groups+artist-credits")

	var recording Recording
	if err := c.get(ctx, "recording/"+url.PathEscape(mbid), params, &recording); err != nil {
		return nil, err
	}

	util.DebugLog("MusicBrainz: recording %s '%s' (%d genres, %d tags)", mbid, recording.Title, len(recording.Genres), len(recording.Tags))
	return &recording, nil
}

// LookupReleaseGroup retrieves a release group with its genres and tags
func (c *Client) LookupReleaseGroup(ctx context.Context, mbid string) (*ReleaseGroup, error) {
	if mbid == "" {
		return nil, fmt.Errorf("MBID cannot be empty")
	}

	params := url.Values{}
	params.Set("fmt", "json")
	params.Set("inc", "genres+tags")

	var group ReleaseGroup
	if err := c.get(ctx, "release-group/"+url.PathEscape(mbid), params, &group); err != nil {
		return nil, err
	}

	return &group, nil
}

// RecordingGenre returns the most relevant genre of a recording. Recording
// genres win over recording tags, which win over the release group's genres
// and then its tags. An empty string means MusicBrainz knows no genre.
func (c *Client) RecordingGenre(ctx context.Context, recordingID string) (string, error) {
	recording, err := c.LookupRecording(ctx, recordingID)
	if err != nil {
		return "", err
	}

	if genre := TopTag(recording.Genres); genre != "" {
		return genre, nil
	}
	if genre := TopTag(recording.Tags); genre != "" {
		return genre, nil
	}

	group := recording.ReleaseGroup()
	if group == nil {
		return "", nil
	}
	if len(group.Genres) == 0 && len(group.Tags) == 0 {
		group, err = c.LookupReleaseGroup(ctx, group.ID)
		if err != nil {
			return "", err
		}
	}

	if genre := TopTag(group.Genres); genre != "" {
		return genre, nil
	}
	return TopTag(group.Tags), nil
}

// TopTag returns the name of the tag with the highest count. Ties keep
// the server's order.
func TopTag(tags []Tag) string {
	if len(tags) == 0 {
		return ""
	}
	sorted := append([]Tag(nil), tags...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Count > sorted[j].Count
	})
	for _, tag := range sorted {
		if name := strings.TrimSpace(tag.Name); name != "" {
			return name
		}
	}
	return ""
}

// get performs a rate limited GET with retries and decodes the JSON body into out
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	urlStr := fmt.Sprintf("%s/%s?%s", c.baseURL, path, params.Encode())

	return util.Retry(ctx, c.retry, func() error {
		return c.doGet(ctx, urlStr, out)
	}, "musicbrainz "+path)
}

func (c *Client) doGet(ctx context.Context, urlStr string, out any) error {
	if err := c.waitForRateLimit(ctx); err != nil {
		return err
	}

	util.DebugLog("MusicBrainz API: GET %s", urlStr)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: MusicBrainz service unavailable (503)", util.ErrTemporary)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: MusicBrainz returned 404", util.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// waitForRateLimit blocks until the next request slot or ctx is done
func (c *Client) waitForRateLimit(ctx context.Context) error {
	select {
	case <-c.rateLimiter.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
