package catapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/five82/tabby/internal/breed"
	"github.com/five82/tabby/internal/metrics"
)

// Source defines the remote calls the coordinator depends on.
// This interface is implemented by *Client and can be used for testing.
type Source interface {
	FetchAll(ctx context.Context) ([]breed.Breed, error)
	FetchOne(ctx context.Context, id string) (breed.Breed, error)
	Search(ctx context.Context, query string) ([]breed.Breed, error)
	FetchImage(ctx context.Context, imageID string) (breed.Image, error)
}

// Ensure Client implements Source at compile time.
var _ Source = (*Client)(nil)

// Client talks to TheCatAPI.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	apiKey    string
	userAgent string
	limiter   *rate.Limiter
	metrics   *metrics.Metrics
}

const (
	// DefaultBaseURL is the public TheCatAPI v1 endpoint.
	DefaultBaseURL   = "https://api.thecatapi.com/v1/"
	defaultUserAgent = "tabby/0.1"
	requestTimeout   = 10 * time.Second
	tracerName       = "github.com/five82/tabby/internal/catapi"
)

// Options configure a Client. Zero values pick the defaults.
type Options struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64 // zero or negative disables rate limiting
	Metrics           *metrics.Metrics
}

// NewClient builds a Client from opts.
func NewClient(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = requestTimeout
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: timeout,
		},
		apiKey:    strings.TrimSpace(opts.APIKey),
		userAgent: defaultUserAgent,
		limiter:   rate.NewLimiter(limit, 1),
		metrics:   opts.Metrics,
	}, nil
}

// FetchAll retrieves every breed.
func (c *Client) FetchAll(ctx context.Context) ([]breed.Breed, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload []BreedPayload
	if err := c.do(ctx, "fetch_all", "fetch breeds", &url.URL{Path: "breeds"}, &payload); err != nil {
		return nil, err
	}
	return toBreeds(payload), nil
}

// FetchOne retrieves a single breed by id. Unknown ids fail with a
// TransportError matching ErrNotFound.
func (c *Client) FetchOne(ctx context.Context, id string) (breed.Breed, error) {
	if c == nil {
		return breed.Breed{}, fmt.Errorf("client is nil")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return breed.Breed{}, fmt.Errorf("breed id required")
	}
	op := "fetch breed " + id
	rel := &url.URL{Path: "breeds/" + id}
	var payload BreedPayload
	if err := c.do(ctx, "fetch_one", op, rel, &payload); err != nil {
		return breed.Breed{}, err
	}
	// The API answers unknown ids with 200 and an empty object.
	if strings.TrimSpace(payload.ID) == "" {
		return breed.Breed{}, &TransportError{Op: op, Kind: KindNotFound, StatusCode: http.StatusOK, Err: ErrNotFound}
	}
	return payload.ToBreed(), nil
}

// Search retrieves breeds whose name contains query.
func (c *Client) Search(ctx context.Context, query string) ([]breed.Breed, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query required")
	}
	values := url.Values{}
	values.Set("q", query)
	rel := &url.URL{Path: "breeds/search", RawQuery: values.Encode()}
	var payload []BreedPayload
	if err := c.do(ctx, "search", "search breeds "+query, rel, &payload); err != nil {
		return nil, err
	}
	return toBreeds(payload), nil
}

// FetchImage resolves a reference image id.
func (c *Client) FetchImage(ctx context.Context, imageID string) (breed.Image, error) {
	if c == nil {
		return breed.Image{}, fmt.Errorf("client is nil")
	}
	imageID = strings.TrimSpace(imageID)
	if imageID == "" {
		return breed.Image{}, fmt.Errorf("image id required")
	}
	rel := &url.URL{Path: "images/" + imageID}
	var payload ImagePayload
	if err := c.do(ctx, "fetch_image", "fetch image "+imageID, rel, &payload); err != nil {
		return breed.Image{}, err
	}
	return payload.ToImage(), nil
}

func (c *Client) do(ctx context.Context, call, op string, rel *url.URL, dest any) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "catapi."+call)
	defer span.End()

	start := time.Now()
	defer func() {
		c.metrics.ObserveRemote(call, Outcome(err), time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, Outcome(err))
		}
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return &TransportError{Op: op, Kind: KindNetwork, Err: fmt.Errorf("rate limit wait: %w", err)}
	}

	reqURL := c.baseURL.ResolveReference(rel)
	span.SetAttributes(
		attribute.String("http.method", http.MethodGet),
		attribute.String("url.path", reqURL.Path),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return &TransportError{Op: op, Kind: KindNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Kind: KindNetwork, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode == http.StatusNotFound {
		return &TransportError{Op: op, Kind: KindNotFound, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("api %s returned status %d: %w", rel.String(), resp.StatusCode, ErrNotFound)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Op: op, Kind: KindStatus, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("api %s returned status %d", rel.String(), resp.StatusCode)}
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return &TransportError{Op: op, Kind: KindDecode, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse base url %q: missing host", raw)
	}
	// Relative endpoint paths resolve under the base path only when it ends in "/".
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
