// Package elevation queries ground elevation for batches of points from
// an Open Topo Data compatible service.
package elevation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/carceral-ecologies/pfas-cli/internal/resilience"
)

// MaxBatchSize is the service's per-request location limit.
const MaxBatchSize = 100

// Point is one lookup location in EPSG:4326.
type Point struct {
	Lon float64
	Lat float64
}

// Result is the elevation for one input point, in order.
type Result struct {
	Elevation float64
	Unit      string
}

// Client looks up ground elevation for batches of points. Implementations
// must preserve input order in the returned results.
type Client interface {
	Lookup(ctx context.Context, points []Point) ([]Result, error)
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

// WithRateLimit sets the requests-per-second limit. The public service
// allows one call per second.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *client) { c.retry = cfg }
}

type client struct {
	baseURL    string
	dataset    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// New creates a client for the given service base URL and dataset
// identifier (the lookup strategy, e.g. "ned10m" for the USGS National
// Elevation Dataset 10m grid).
func New(baseURL, dataset string, opts ...Option) Client {
	c := &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		dataset:    dataset,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type lookupResponse struct {
	Status  string   `json:"status"`
	Error   string   `json:"error"`
	Results []struct {
		Elevation *float64 `json:"elevation"`
		Location  struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"results"`
}

// Lookup queries elevations for up to MaxBatchSize points, preserving
// input order. A missing elevation (point outside dataset coverage) is an
// error, never a substituted default.
func (c *client) Lookup(ctx context.Context, points []Point) ([]Result, error) {
	if len(points) == 0 {
		return nil, nil
	}
	if len(points) > MaxBatchSize {
		return nil, eris.Errorf("elevation: batch of %d exceeds limit %d", len(points), MaxBatchSize)
	}

	var locs strings.Builder
	for i, p := range points {
		if i > 0 {
			locs.WriteByte('|')
		}
		fmt.Fprintf(&locs, "%.7f,%.7f", p.Lat, p.Lon)
	}

	reqURL := c.baseURL + "/" + c.dataset + "?" + url.Values{"locations": {locs.String()}}.Encode()

	var parsed lookupResponse
	err := resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "elevation: rate limit")
		}
		return c.fetch(ctx, reqURL, &parsed)
	})
	if err != nil {
		return nil, err
	}

	if parsed.Status != "OK" {
		return nil, eris.Errorf("elevation: service status %q: %s", parsed.Status, parsed.Error)
	}
	if len(parsed.Results) != len(points) {
		return nil, eris.Errorf("elevation: requested %d points, got %d results", len(points), len(parsed.Results))
	}

	out := make([]Result, len(parsed.Results))
	for i, r := range parsed.Results {
		if r.Elevation == nil {
			return nil, eris.Errorf("elevation: no coverage for point %d (%.5f, %.5f)",
				i, points[i].Lon, points[i].Lat)
		}
		out[i] = Result{Elevation: *r.Elevation, Unit: "m"}
	}
	return out, nil
}

func (c *client) fetch(ctx context.Context, reqURL string, parsed *lookupResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return eris.Wrap(err, "elevation: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return eris.Wrap(err, "elevation: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "elevation: read body")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("elevation: service returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}

	if err := json.Unmarshal(body, parsed); err != nil {
		return eris.Wrap(err, "elevation: parse response")
	}
	return nil
}
