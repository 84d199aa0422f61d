package overpass

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facility-import/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/facility-import/backend/pkg/errors"
)

const sampleResponse = `{
  "version": 0.6,
  "elements": [
    {"type": "node", "id": 101, "lat": -25.7, "lon": 28.2, "tags": {"amenity": "hospital", "name": "Steve Biko Academic Hospital"}},
    {"type": "way", "id": 202, "center": {"lat": -33.94, "lon": 18.46}, "tags": {"amenity": "hospital", "name": "Groote Schuur Hospital"}},
    {"type": "node", "id": 303, "lat": -29.85, "lon": 31.02}
  ]
}`

var testBox = entities.BoundingBox{North: -25.0, South: -26.0, East: 29.0, West: 28.0}

func newTestClient(t *testing.T, endpoints ...string) (*HTTPClient, *[]time.Duration) {
	t.Helper()
	client, err := NewClient(Options{Endpoints: endpoints, RequestTimeout: 2 * time.Second})
	require.NoError(t, err)

	var waits []time.Duration
	client.wait = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return client, &waits
}

func okServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Contains(t, r.PostForm.Get("data"), "[out:json]")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func statusServer(t *testing.T, status int, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchRegion_DecodesElements(t *testing.T) {
	var hits int32
	srv := okServer(t, &hits)
	client, _ := newTestClient(t, srv.URL, srv.URL)

	elements, err := client.FetchRegion(context.Background(), testBox, nil)
	require.NoError(t, err)
	require.Len(t, elements, 3)

	node := elements[0]
	assert.Equal(t, "node:101", node.ExternalID)
	assert.Equal(t, entities.ElementKindNode, node.ExternalKind)
	require.NotNil(t, node.Latitude)
	assert.Equal(t, -25.7, *node.Latitude)
	assert.Nil(t, node.CenterLatitude)

	way := elements[1]
	assert.Equal(t, "way:202", way.ExternalID)
	assert.Nil(t, way.Latitude)
	require.NotNil(t, way.CenterLatitude)
	assert.Equal(t, 18.46, *way.CenterLongitude)

	assert.NotNil(t, elements[2].Tags)
	assert.Equal(t, int32(1), hits)
}

func TestFetchRegion_FailsOverToLastEndpoint(t *testing.T) {
	var failHits, okHits int32
	bad1 := statusServer(t, http.StatusTooManyRequests, &failHits)
	bad2 := statusServer(t, http.StatusGatewayTimeout, &failHits)
	bad3 := statusServer(t, http.StatusBadRequest, &failHits)
	good := okServer(t, &okHits)

	client, waits := newTestClient(t, bad1.URL, bad2.URL, bad3.URL, good.URL)

	elements, err := client.FetchRegion(context.Background(), testBox, nil)
	require.NoError(t, err)
	assert.Len(t, elements, 3)
	assert.Equal(t, int32(3), failHits)
	assert.Equal(t, int32(1), okHits)
	assert.Equal(t, []time.Duration{defaultCooldown, defaultCooldown, defaultCooldown}, *waits)

	// The next call starts at the endpoint that last succeeded.
	_, err = client.FetchRegion(context.Background(), testBox, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), failHits)
	assert.Equal(t, int32(2), okHits)
}

func TestFetchRegion_AllEndpointsFail(t *testing.T) {
	var hits int32
	bad1 := statusServer(t, http.StatusTooManyRequests, &hits)
	bad2 := statusServer(t, http.StatusInternalServerError, &hits)
	client, waits := newTestClient(t, bad1.URL, bad2.URL)

	_, err := client.FetchRegion(context.Background(), testBox, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUpstreamUnavailable))

	var statusErr *StatusError
	assert.ErrorAs(t, err, &statusErr)
	assert.Equal(t, int32(2), hits)
	assert.Len(t, *waits, 1)
}

func TestFetchRegion_RuntimeErrorRemarkCountsAsFailure(t *testing.T) {
	var hits int32
	remark := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{"elements": [], "remark": "runtime error: Query timed out in \"query\" at line 3"}`))
	}))
	t.Cleanup(remark.Close)
	var okHits int32
	good := okServer(t, &okHits)

	client, _ := newTestClient(t, remark.URL, good.URL)

	elements, err := client.FetchRegion(context.Background(), testBox, nil)
	require.NoError(t, err)
	assert.Len(t, elements, 3)
	assert.Equal(t, int32(1), hits)
}

func TestFetchRegion_RejectsInvalidInputBeforeNetwork(t *testing.T) {
	var hits int32
	srv := okServer(t, &hits)
	client, _ := newTestClient(t, srv.URL, srv.URL)

	_, err := client.FetchRegion(context.Background(), entities.BoundingBox{North: math.NaN(), South: -26, East: 29, West: 28}, nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidBoundingBox))

	kind := "veterinary"
	_, err = client.FetchRegion(context.Background(), testBox, &kind)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))

	assert.Zero(t, hits)
}

func TestFetchRegion_DegenerateBoxReturnsEmpty(t *testing.T) {
	var hits int32
	srv := okServer(t, &hits)
	client, _ := newTestClient(t, srv.URL, srv.URL)

	elements, err := client.FetchRegion(context.Background(), entities.BoundingBox{North: -26, South: -25, East: 29, West: 28}, nil)
	require.NoError(t, err)
	assert.Empty(t, elements)
	assert.Zero(t, hits)
}

func TestNewClient_RequiresTwoEndpoints(t *testing.T) {
	_, err := NewClient(Options{Endpoints: []string{"http://one", "  "}})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
}

func TestBuildQuery(t *testing.T) {
	query := BuildQuery(testBox, nil, 90)
	assert.True(t, strings.HasPrefix(query, "[out:json][timeout:90];"))
	assert.Contains(t, query, `node["amenity"~"^(hospital|clinic|doctors|dentist|pharmacy)$"](-26,28,-25,29);`)
	assert.Contains(t, query, "way[")
	assert.Contains(t, query, "relation[")
	assert.Contains(t, query, "out center;")

	kind := "pharmacy"
	filtered := BuildQuery(testBox, &kind, 30)
	assert.Contains(t, filtered, `node["amenity"="pharmacy"](-26,28,-25,29);`)
	assert.NotContains(t, filtered, "hospital")
}
