package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/kv"
	"github.com/pandu-maps/pandu/pkg/matching"
	"github.com/pandu-maps/pandu/pkg/routing"
	"github.com/pandu-maps/pandu/pkg/server/rest"
	"github.com/pandu-maps/pandu/pkg/server/rest/service"
	"github.com/pandu-maps/pandu/pkg/snap"
)

const residentialMetersPerSecond = 30.0 / 3.6

func newNavigationServer(t *testing.T, g *datastructure.Graph) *chi.Mux {
	t.Helper()

	g.AttachNearestIndex(snap.BuildRoadSnapper(g))

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	kvDB := kv.NewKVDB(db)
	require.NoError(t, kvDB.BuildH3IndexedEdges(context.Background(), g))

	engine := routing.NewEngine(g)
	matcher := matching.NewMatcher(g, kvDB)
	svc := service.NewNavigationService(engine, g, kvDB, matcher)

	m := rest.NewMetrics(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(rest.PromeHttpMiddleware(m))
	rest.NavigationRouter(r, svc, m)
	return r
}

func gridServer(t *testing.T) *chi.Mux {
	t.Helper()
	g, err := datastructure.CreateGridGraph(4, 4, 0.01)
	require.NoError(t, err)
	return newNavigationServer(t, g)
}

func postJSON(t *testing.T, router *chi.Mux, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

type errBody struct {
	Status     string   `json:"status"`
	Error      string   `json:"error"`
	Validation []string `json:"validation"`
}

func latStep() float64 {
	return datastructure.HaversineDistance(0, 0, 0.01, 0) * 1000.0
}

func lonStep() float64 {
	return datastructure.HaversineDistance(0, 0, 0, 0.01) * 1000.0
}

func TestRouteEndpoint(t *testing.T) {
	router := gridServer(t)

	rec := postJSON(t, router, "/api/navigation/route", map[string]interface{}{
		"origin":      map[string]float64{"lat": 0, "lon": 0},
		"destination": map[string]float64{"lat": 0.03, "lon": 0.03},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp rest.RouteResponse
	decodeInto(t, rec, &resp)

	wantDistance := 3*latStep() + 3*lonStep()
	assert.InDelta(t, wantDistance, resp.Distance, 1.0)
	assert.InDelta(t, resp.Distance/residentialMetersPerSecond, resp.Duration, 1e-6)
	assert.NotEmpty(t, resp.Polyline)
	assert.Len(t, resp.Segments, 6)
	require.Len(t, resp.Waypoints, 2)
	assert.InDelta(t, 0, resp.Waypoints[0].Lat, 1e-9)
	assert.InDelta(t, 0.03, resp.Waypoints[1].Lon, 1e-9)
}

func TestRouteEndpointRequiresBothEndpoints(t *testing.T) {
	router := gridServer(t)

	rec := postJSON(t, router, "/api/navigation/route", map[string]interface{}{
		"origin": map[string]float64{"lat": 0, "lon": 0},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errBody
	decodeInto(t, rec, &body)
	assert.Equal(t, "Invalid request.", body.Status)
	assert.Contains(t, body.Error, "destination")
}

func TestRouteEndpointValidatesCoordinates(t *testing.T) {
	router := gridServer(t)

	rec := postJSON(t, router, "/api/navigation/route", map[string]interface{}{
		"origin":      map[string]float64{"lat": 95, "lon": 0},
		"destination": map[string]float64{"lat": 0, "lon": 0.01},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errBody
	decodeInto(t, rec, &body)
	assert.Equal(t, "Invalid request.", body.Status)
	assert.NotEmpty(t, body.Validation)
}

func TestRouteEndpointUnknownAlgorithm(t *testing.T) {
	router := gridServer(t)

	rec := postJSON(t, router, "/api/navigation/route", map[string]interface{}{
		"origin":      map[string]float64{"lat": 0, "lon": 0},
		"destination": map[string]float64{"lat": 0, "lon": 0.01},
		"algorithm":   "sptag",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errBody
	decodeInto(t, rec, &body)
	assert.Contains(t, body.Error, "unknown routing algorithm")
}

func TestRouteEndpointNoRouteFound(t *testing.T) {
	builder := datastructure.NewGraphBuilder()
	builder.AddNode(0, 0)
	builder.AddNode(0, 0.001)
	builder.AddNode(0.5, 0.5)
	builder.AddNode(0.5, 0.501)
	builder.AddRoad(0, 1, datastructure.RoadClassResidential, "", true)
	builder.AddRoad(2, 3, datastructure.RoadClassResidential, "", true)
	g, err := builder.Build()
	require.NoError(t, err)

	router := newNavigationServer(t, g)

	rec := postJSON(t, router, "/api/navigation/route", map[string]interface{}{
		"origin":      map[string]float64{"lat": 0, "lon": 0},
		"destination": map[string]float64{"lat": 0.5, "lon": 0.5},
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body errBody
	decodeInto(t, rec, &body)
	assert.Equal(t, "Resource not found.", body.Status)
}

func TestDistanceMatrixEndpoint(t *testing.T) {
	router := gridServer(t)

	rec := postJSON(t, router, "/api/navigation/distance-matrix", map[string]interface{}{
		"points": []map[string]float64{
			{"lat": 0, "lon": 0},
			{"lat": 0, "lon": 0.02},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp rest.DistanceMatrixResponse
	decodeInto(t, rec, &resp)
	require.Len(t, resp.Durations, 2)
	require.Len(t, resp.Durations[0], 2)

	assert.Zero(t, resp.Durations[0][0])
	assert.Zero(t, resp.Durations[1][1])
	wantDuration := 2 * lonStep() / residentialMetersPerSecond
	assert.InDelta(t, wantDuration, resp.Durations[0][1], 0.1)
	assert.InDelta(t, resp.Durations[0][1], resp.Durations[1][0], 1e-9)
}

func TestDistanceMatrixEndpointRejectsEmpty(t *testing.T) {
	router := gridServer(t)

	rec := postJSON(t, router, "/api/navigation/distance-matrix", map[string]interface{}{
		"points": []map[string]float64{},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTSPEndpoint(t *testing.T) {
	router := gridServer(t)

	// corners in crossing order; the optimum is the grid perimeter
	rec := postJSON(t, router, "/api/navigation/tsp", map[string]interface{}{
		"points": []map[string]float64{
			{"lat": 0, "lon": 0},
			{"lat": 0.03, "lon": 0.03},
			{"lat": 0, "lon": 0.03},
			{"lat": 0.03, "lon": 0},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp rest.TSPResponse
	decodeInto(t, rec, &resp)

	assert.ElementsMatch(t, []int{0, 1, 2, 3}, resp.Order)
	require.Len(t, resp.Points, 4)
	assert.NotEmpty(t, resp.Polyline)

	perimeter := 6*latStep() + 6*lonStep()
	assert.InDelta(t, perimeter, resp.Distance, 1.0)
	assert.InDelta(t, resp.Distance/residentialMetersPerSecond, resp.Duration, 1e-6)
	assert.GreaterOrEqual(t, resp.ComputationTimeMs, 0.0)
}

func TestVRPEndpoint(t *testing.T) {
	router := gridServer(t)

	rec := postJSON(t, router, "/api/navigation/vrp", map[string]interface{}{
		"depot": map[string]float64{"lat": 0, "lon": 0},
		"customers": []map[string]float64{
			{"lat": 0, "lon": 0.01},
			{"lat": 0, "lon": 0.02},
		},
		"demands":  []float64{1, 1},
		"capacity": 2,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp rest.VRPResponse
	decodeInto(t, rec, &resp)
	require.Len(t, resp.Routes, 1)

	route := resp.Routes[0]
	assert.Equal(t, []int{0, 1}, route.Stops)
	assert.InDelta(t, 2.0, route.Load, 1e-9)
	assert.NotEmpty(t, route.Polyline)
	// depot -> c0 -> c1 -> depot covers four grid legs
	assert.InDelta(t, 4*lonStep(), route.Distance, 1.0)
	assert.InDelta(t, 2.0, resp.TotalDemand, 1e-9)
}

func TestVRPEndpointCapacityTooSmall(t *testing.T) {
	router := gridServer(t)

	rec := postJSON(t, router, "/api/navigation/vrp", map[string]interface{}{
		"depot": map[string]float64{"lat": 0, "lon": 0},
		"customers": []map[string]float64{
			{"lat": 0, "lon": 0.01},
		},
		"demands":  []float64{3},
		"capacity": 2,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errBody
	decodeInto(t, rec, &body)
	assert.Equal(t, "Invalid request.", body.Status)
}

func TestNearestEndpoint(t *testing.T) {
	router := gridServer(t)

	rec := postJSON(t, router, "/api/navigation/nearest", map[string]float64{
		"lat": 0.012,
		"lon": 0.018,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp rest.NearestResponse
	decodeInto(t, rec, &resp)

	assert.Equal(t, int32(6), resp.NodeID)
	assert.InDelta(t, 0.01, resp.Location.Lat, 1e-9)
	assert.InDelta(t, 0.02, resp.Location.Lon, 1e-9)
	assert.NotEmpty(t, resp.Streets)
	for _, street := range resp.Streets {
		assert.Equal(t, "residential", street.RoadClass)
	}
}

func TestMatchEndpoint(t *testing.T) {
	router := gridServer(t)

	// noisy drive along the southernmost row, a few meters off the road
	rec := postJSON(t, router, "/api/navigation/match", map[string]interface{}{
		"points": []map[string]float64{
			{"lat": 0.00004, "lon": 0.005},
			{"lat": 0.00004, "lon": 0.015},
			{"lat": 0.00004, "lon": 0.025},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp rest.MatchResponse
	decodeInto(t, rec, &resp)

	require.Len(t, resp.Points, 3)
	assert.Zero(t, resp.Breaks)
	assert.Zero(t, resp.Dropped)
	assert.NotEmpty(t, resp.Polyline)
	for i, point := range resp.Points {
		assert.InDelta(t, 0, point.Snapped.Lat, 1e-5)
		assert.InDelta(t, 0.005+float64(i)*0.01, point.Snapped.Lon, 1e-4)
		assert.InDelta(t, 0.00004, point.Observation.Lat, 1e-9)
	}
}

func TestMatchEndpointRejectsShortTrace(t *testing.T) {
	router := gridServer(t)

	rec := postJSON(t, router, "/api/navigation/match", map[string]interface{}{
		"points": []map[string]float64{
			{"lat": 0.00004, "lon": 0.005},
		},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errBody
	decodeInto(t, rec, &body)
	assert.Equal(t, "Invalid request.", body.Status)
	assert.Contains(t, body.Error, "two points")
}
