// Package nominatim provides forward geocoding via the OpenStreetMap
// Nominatim search API, plus a file-backed result cache.
package nominatim

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://nominatim.openstreetmap.org/search"
	defaultAgent   = "ILMFoodNBrew/1.0"

	// Nominatim's usage policy caps anonymous clients at one request
	// per second; the default leaves headroom.
	defaultInterval = 1100 * time.Millisecond

	defaultMaxResults = 5
)

// Place is one geocoding candidate.
type Place struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
}

// placeJSON mirrors the wire format. Nominatim encodes coordinates as
// strings.
type placeJSON struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the search endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithUserAgent sets the User-Agent header. Nominatim rejects anonymous
// default agents, so production callers should identify themselves.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithRateInterval sets the minimum spacing between requests.
func WithRateInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithMaxResults caps the number of candidates per query.
func WithMaxResults(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// WithCountryCodes restricts results to the given comma-separated
// ISO 3166-1 alpha-2 codes.
func WithCountryCodes(codes string) Option {
	return func(c *Client) {
		c.countryCodes = codes
	}
}

// Client queries the Nominatim search API. All requests pass through a
// shared rate limiter, so a single Client should be reused across
// lookups.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	userAgent    string
	countryCodes string
	maxResults   int
	limiter      *rate.Limiter
}

// NewClient creates a Client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		userAgent:  defaultAgent,
		maxResults: defaultMaxResults,
		limiter:    rate.NewLimiter(rate.Every(defaultInterval), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search geocodes a free-form query. A non-nil bounds restricts results
// to that viewbox; nil searches globally. Candidates whose coordinates
// fail to parse are skipped.
func (c *Client) Search(ctx context.Context, query string, bounds *geom.Bounds) ([]Place, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "nominatim: rate limit")
	}

	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {strconv.Itoa(c.maxResults)},
	}
	if c.countryCodes != "" {
		params.Set("countrycodes", c.countryCodes)
	}
	if bounds != nil {
		params.Set("viewbox", viewbox(bounds))
		params.Set("bounded", "1")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: search request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("nominatim: search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: read body")
	}

	var raw []placeJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, eris.Wrap(err, "nominatim: parse response")
	}

	places := make([]Place, 0, len(raw))
	for _, p := range raw {
		lat, latErr := strconv.ParseFloat(p.Lat, 64)
		lon, lonErr := strconv.ParseFloat(p.Lon, 64)
		if latErr != nil || lonErr != nil {
			zap.L().Debug("nominatim: skipping unparsable candidate",
				zap.String("lat", p.Lat), zap.String("lon", p.Lon))
			continue
		}
		places = append(places, Place{Latitude: lat, Longitude: lon, DisplayName: p.DisplayName})
	}
	return places, nil
}

// viewbox renders bounds as Nominatim's left,top,right,bottom form.
func viewbox(b *geom.Bounds) string {
	left := strconv.FormatFloat(b.Min(0), 'f', -1, 64)
	top := strconv.FormatFloat(b.Max(1), 'f', -1, 64)
	right := strconv.FormatFloat(b.Max(0), 'f', -1, 64)
	bottom := strconv.FormatFloat(b.Min(1), 'f', -1, 64)
	return left + "," + top + "," + right + "," + bottom
}
