package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/facility-import/backend/internal/domain/entities"
	"github.com/zatekoja/facility-import/backend/internal/domain/providers"
	"github.com/zatekoja/facility-import/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/facility-import/backend/pkg/errors"
)

const (
	defaultRequestTimeout = 60 * time.Second
	defaultCooldown       = 5 * time.Second
	defaultQueryTimeout   = 90
)

// AllowedKinds is the amenity whitelist a query may be restricted to
var AllowedKinds = []string{"hospital", "clinic", "doctors", "dentist", "pharmacy"}

// IsAllowedKind reports whether kind is in the amenity whitelist
func IsAllowedKind(kind string) bool {
	for _, allowed := range AllowedKinds {
		if kind == allowed {
			return true
		}
	}
	return false
}

// Options configures the HTTP client
type Options struct {
	Endpoints      []string
	RequestTimeout time.Duration
	Cooldown       time.Duration
	QueryTimeout   int
	HTTPClient     *http.Client
	Metrics        *observability.Metrics
}

// HTTPClient queries the Overpass API with endpoint failover.
type HTTPClient struct {
	endpoints    []string
	httpClient   *http.Client
	cooldown     time.Duration
	queryTimeout int
	metrics      *observability.Metrics
	wait         func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	current int
}

var _ providers.GeoDataProvider = (*HTTPClient)(nil)

// NewClient creates an Overpass client. At least two endpoints are required.
func NewClient(opts Options) (*HTTPClient, error) {
	endpoints := make([]string, 0, len(opts.Endpoints))
	for _, endpoint := range opts.Endpoints {
		if trimmed := strings.TrimSpace(endpoint); trimmed != "" {
			endpoints = append(endpoints, trimmed)
		}
	}
	if len(endpoints) < 2 {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("overpass client needs at least 2 endpoints, got %d", len(endpoints)))
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	cooldown := opts.Cooldown
	if cooldown < 0 {
		cooldown = 0
	} else if cooldown == 0 {
		cooldown = defaultCooldown
	}
	queryTimeout := opts.QueryTimeout
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &HTTPClient{
		endpoints:    endpoints,
		httpClient:   httpClient,
		cooldown:     cooldown,
		queryTimeout: queryTimeout,
		metrics:      opts.Metrics,
		wait:         sleepContext,
	}, nil
}

// FetchRegion returns the healthcare elements inside box.
func (c *HTTPClient) FetchRegion(ctx context.Context, box entities.BoundingBox, kind *string) ([]entities.RawElement, error) {
	if err := box.Validate(); err != nil {
		return nil, apperrors.NewInvalidBoundingBoxError(err.Error())
	}
	if kind != nil && !IsAllowedKind(*kind) {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("unsupported facility kind filter %q", *kind))
	}
	if box.IsDegenerate() {
		return []entities.RawElement{}, nil
	}

	ctx, span := observability.StartSpan(ctx, "overpass.FetchRegion",
		attribute.Float64("bbox.north", box.North),
		attribute.Float64("bbox.south", box.South),
		attribute.Float64("bbox.east", box.East),
		attribute.Float64("bbox.west", box.West),
	)
	defer span.End()

	query := BuildQuery(box, kind, c.queryTimeout)
	logger := observability.LoggerFromContext(ctx)

	start := c.startIndex()
	var lastErr error
	for attempt := 0; attempt < len(c.endpoints); attempt++ {
		idx := (start + attempt) % len(c.endpoints)
		endpoint := c.endpoints[idx]

		elements, err := c.post(ctx, endpoint, query)
		if err == nil {
			c.setIndex(idx)
			logger.Debug().
				Str("endpoint", endpoint).
				Int("elements", len(elements)).
				Msg("overpass query succeeded")
			return elements, nil
		}
		lastErr = err

		statusCode := 0
		if se, ok := err.(*StatusError); ok {
			statusCode = se.StatusCode
		}
		observability.RecordFailover(ctx, c.metrics, endpoint, statusCode)
		logger.Warn().
			Err(err).
			Str("endpoint", endpoint).
			Int("attempt", attempt+1).
			Int("endpoints", len(c.endpoints)).
			Msg("overpass endpoint failed, rotating")

		if ctx.Err() != nil {
			break
		}
		if attempt < len(c.endpoints)-1 {
			if err := c.wait(ctx, c.cooldown); err != nil {
				lastErr = err
				break
			}
		}
	}

	c.setIndex((start + 1) % len(c.endpoints))
	appErr := apperrors.NewUpstreamUnavailableError("all overpass endpoints failed", lastErr)
	observability.RecordError(span, appErr)
	return nil, appErr
}

// BuildQuery renders the Overpass QL query for a box and optional amenity kind.
func BuildQuery(box entities.BoundingBox, kind *string, timeoutSeconds int) string {
	selector := fmt.Sprintf(`["amenity"~"^(%s)$"]`, strings.Join(AllowedKinds, "|"))
	if kind != nil {
		selector = fmt.Sprintf(`["amenity"="%s"]`, *kind)
	}
	bbox := fmt.Sprintf("(%s,%s,%s,%s)",
		formatCoord(box.South), formatCoord(box.West), formatCoord(box.North), formatCoord(box.East))

	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", timeoutSeconds)
	for _, elementKind := range []string{entities.ElementKindNode, entities.ElementKindWay, entities.ElementKindRelation} {
		fmt.Fprintf(&b, "  %s%s%s;\n", elementKind, selector, bbox)
	}
	b.WriteString(");\nout center;\n")
	return b.String()
}

// StatusError is a non-2xx upstream response
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("overpass endpoint %s returned status %d", e.Endpoint, e.StatusCode)
}

type response struct {
	Remark   string    `json:"remark"`
	Elements []element `json:"elements"`
}

type element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *center           `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type center struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c *HTTPClient) post(ctx context.Context, endpoint, query string) ([]entities.RawElement, error) {
	form := url.Values{"data": []string{query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}
	// Overpass reports query timeouts inside a 200 body.
	if strings.Contains(strings.ToLower(out.Remark), "runtime error") {
		return nil, fmt.Errorf("overpass runtime error: %s", out.Remark)
	}

	elements := make([]entities.RawElement, 0, len(out.Elements))
	for _, el := range out.Elements {
		raw := entities.RawElement{
			ExternalID:   el.Type + ":" + strconv.FormatInt(el.ID, 10),
			ExternalKind: el.Type,
			Tags:         el.Tags,
			Latitude:     el.Lat,
			Longitude:    el.Lon,
		}
		if raw.Tags == nil {
			raw.Tags = map[string]string{}
		}
		if el.Center != nil {
			lat, lon := el.Center.Lat, el.Center.Lon
			raw.CenterLatitude = &lat
			raw.CenterLongitude = &lon
		}
		elements = append(elements, raw)
	}
	return elements, nil
}

func (c *HTTPClient) startIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *HTTPClient) setIndex(idx int) {
	c.mu.Lock()
	c.current = idx
	c.mu.Unlock()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
