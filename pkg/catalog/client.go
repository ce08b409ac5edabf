// Package catalog provides a client for the station's music catalog
// service.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/skylark-radio/playlist-cli/internal/resilience"
)

// Client defines the catalog operations used by the selection tools.
type Client interface {
	Search(ctx context.Context, query string, limit int) ([]Track, error)
	SearchByGenre(ctx context.Context, genres []string, limit int) ([]Track, error)
	ListGenres(ctx context.Context) ([]Genre, error)
	ListNewlyAdded(ctx context.Context, limit int, genre string) ([]Track, error)
	BrowseArtists(ctx context.Context, genre string, limit int) ([]Artist, error)
	ArtistTracks(ctx context.Context, artistName string, limit int) ([]Track, error)
}

// Track is a catalog entry with enough metadata to populate a
// playlist selection.
type Track struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Artist          string  `json:"artist"`
	Album           string  `json:"album"`
	TempoBPM        float64 `json:"tempo_bpm"`
	Genre           string  `json:"genre"`
	Year            int     `json:"year"`
	Country         string  `json:"country"`
	DurationSeconds int     `json:"duration_seconds"`
}

// Genre is one catalog genre with its track count.
type Genre struct {
	Name       string `json:"name"`
	TrackCount int    `json:"track_count"`
}

// Artist is a catalog artist summary.
type Artist struct {
	Name       string `json:"name"`
	Genre      string `json:"genre"`
	TrackCount int    `json:"track_count"`
}

// StatusError is returned for non-2xx catalog responses so callers
// can map the status to a structured tool error.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog: status %d: %s", e.StatusCode, e.Body)
}

// Option configures the catalog client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a catalog client.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(5), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs a GET with rate limiting, decoding the JSON body into
// out. Transient statuses are wrapped so resilience.Do retries them.
func (c *httpClient) get(ctx context.Context, path string, query url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "catalog: rate limit wait")
		}
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return eris.Wrap(err, "catalog: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "catalog: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "catalog: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return statusErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "catalog: unmarshal response")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (c *httpClient) Search(ctx context.Context, query string, limit int) ([]Track, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))

	var out struct {
		Tracks []Track `json:"tracks"`
	}
	if err := c.get(ctx, "/api/tracks/search", q, &out); err != nil {
		return nil, err
	}
	return out.Tracks, nil
}

func (c *httpClient) SearchByGenre(ctx context.Context, genres []string, limit int) ([]Track, error) {
	q := url.Values{}
	q.Set("genres", strings.Join(genres, ","))
	q.Set("limit", strconv.Itoa(limit))

	var out struct {
		Tracks []Track `json:"tracks"`
	}
	if err := c.get(ctx, "/api/tracks/by-genre", q, &out); err != nil {
		return nil, err
	}
	return out.Tracks, nil
}

func (c *httpClient) ListGenres(ctx context.Context) ([]Genre, error) {
	var out struct {
		Genres []Genre `json:"genres"`
	}
	if err := c.get(ctx, "/api/genres", nil, &out); err != nil {
		return nil, err
	}
	return out.Genres, nil
}

func (c *httpClient) ListNewlyAdded(ctx context.Context, limit int, genre string) ([]Track, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if genre != "" {
		q.Set("genre", genre)
	}

	var out struct {
		Tracks []Track `json:"tracks"`
	}
	if err := c.get(ctx, "/api/tracks/recent", q, &out); err != nil {
		return nil, err
	}
	return out.Tracks, nil
}

func (c *httpClient) BrowseArtists(ctx context.Context, genre string, limit int) ([]Artist, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if genre != "" {
		q.Set("genre", genre)
	}

	var out struct {
		Artists []Artist `json:"artists"`
	}
	if err := c.get(ctx, "/api/artists", q, &out); err != nil {
		return nil, err
	}
	return out.Artists, nil
}

func (c *httpClient) ArtistTracks(ctx context.Context, artistName string, limit int) ([]Track, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var out struct {
		Tracks []Track `json:"tracks"`
	}
	path := "/api/artists/" + url.PathEscape(artistName) + "/tracks"
	if err := c.get(ctx, path, q, &out); err != nil {
		return nil, err
	}
	return out.Tracks, nil
}
