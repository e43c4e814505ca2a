package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/server"
	"github.com/pandu-maps/pandu/pkg/server/rest/service"
)

type NavigationService interface {
	FindRoute(ctx context.Context, origin, destination datastructure.Coordinate,
		profile datastructure.RoutingProfile, departureTime float64, algorithm string) (service.RouteResult, error)
	TravelTimeMatrix(ctx context.Context, points []datastructure.Coordinate,
		profile datastructure.RoutingProfile, departureTime float64) ([][]float64, error)
	TravelingSalesman(ctx context.Context, points []datastructure.Coordinate,
		profile datastructure.RoutingProfile, departureTime float64, algorithm string, seed uint64) (service.TourResult, error)
	VehicleRouting(ctx context.Context, depot datastructure.Coordinate, customers []datastructure.Coordinate,
		demands []float64, capacity float64, profile datastructure.RoutingProfile,
		departureTime float64, algorithm string) (service.FleetResult, error)
	NearestStreet(ctx context.Context, lat, lon float64) (service.NearestResult, error)
	MatchTrace(ctx context.Context, trace []datastructure.Coordinate,
		profile datastructure.RoutingProfile) (service.TraceResult, error)
}

type NavigationHandler struct {
	svc      NavigationService
	validate *validator.Validate
	trans    ut.Translator
	metrics  *Metrics
}

func NavigationRouter(r *chi.Mux, svc NavigationService, m *Metrics) {
	handler := newNavigationHandler(svc, m)

	r.Group(func(r chi.Router) {
		r.Route("/api/navigation", func(r chi.Router) {
			r.Post("/route", handler.Route)
			r.Post("/distance-matrix", handler.DistanceMatrix)
			r.Post("/tsp", handler.TravelingSalesman)
			r.Post("/vrp", handler.VehicleRouting)
			r.Post("/nearest", handler.NearestStreet)
			r.Post("/match", handler.MatchTrace)
		})
	})
}

func newNavigationHandler(svc NavigationService, m *Metrics) *NavigationHandler {
	validate := validator.New()
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)
	return &NavigationHandler{svc: svc, validate: validate, trans: trans, metrics: m}
}

type Coord struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

func (c Coord) toPoint() datastructure.Coordinate {
	return datastructure.NewCoordinate(c.Lat, c.Lon)
}

func toPoints(coords []Coord) []datastructure.Coordinate {
	return lo.Map(coords, func(c Coord, _ int) datastructure.Coordinate {
		return c.toPoint()
	})
}

// profileFromRequest resolves the travel mode name to its default
// profile and applies the avoidance switches. Unknown mode names fall
// back to the car profile, matching TravelModeFromString.
func profileFromRequest(mode string, avoidToll, avoidFerry bool) datastructure.RoutingProfile {
	var profile datastructure.RoutingProfile
	switch datastructure.TravelModeFromString(mode) {
	case datastructure.ModeBicycle:
		profile = datastructure.DefaultBicycleProfile()
	case datastructure.ModeFoot:
		profile = datastructure.DefaultFootProfile()
	default:
		profile = datastructure.DefaultCarProfile()
		profile.Mode = datastructure.TravelModeFromString(mode)
	}
	profile.AvoidToll = avoidToll
	profile.AvoidFerry = avoidFerry
	return profile
}

// departureOr resolves the optional departure field; absent means
// free-flow costs.
func departureOr(t *float64) float64 {
	if t == nil {
		return -1
	}
	return *t
}

// RouteRequest is the body of POST /api/navigation/route.
type RouteRequest struct {
	Origin        *Coord   `json:"origin"`
	Destination   *Coord   `json:"destination"`
	Mode          string   `json:"mode,omitempty"`
	Algorithm     string   `json:"algorithm,omitempty"`
	DepartureTime *float64 `json:"departure_time,omitempty"`
	AvoidToll     bool     `json:"avoid_toll,omitempty"`
	AvoidFerry    bool     `json:"avoid_ferry,omitempty"`
}

func (s *RouteRequest) Bind(r *http.Request) error {
	if s.Origin == nil || s.Destination == nil {
		return errors.New("origin and destination are required")
	}
	return nil
}

type RouteResponse struct {
	Polyline  string                       `json:"polyline"`
	Distance  float64                      `json:"distance"`
	Duration  float64                      `json:"duration"`
	Segments  []datastructure.RouteSegment `json:"segments"`
	Waypoints []datastructure.Coordinate   `json:"waypoints"`
}

func RenderRouteResponse(result service.RouteResult) *RouteResponse {
	return &RouteResponse{
		Polyline:  result.Polyline,
		Distance:  result.Distance,
		Duration:  result.Duration,
		Segments:  result.Segments,
		Waypoints: result.Waypoints,
	}
}

func (h *NavigationHandler) Route(w http.ResponseWriter, r *http.Request) {
	data := &RouteRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if rendered := h.validateRequest(w, r, data); rendered {
		return
	}

	profile := profileFromRequest(data.Mode, data.AvoidToll, data.AvoidFerry)
	result, err := h.svc.FindRoute(r.Context(), data.Origin.toPoint(), data.Destination.toPoint(),
		profile, departureOr(data.DepartureTime), data.Algorithm)
	if err != nil {
		h.renderServiceError(w, r, "route", err)
		return
	}

	h.metrics.CountQuery("route", "ok")
	render.Status(r, http.StatusOK)
	render.JSON(w, r, RenderRouteResponse(result))
}

// DistanceMatrixRequest is the body of POST /api/navigation/distance-matrix.
type DistanceMatrixRequest struct {
	Points        []Coord  `json:"points" validate:"dive"`
	Mode          string   `json:"mode,omitempty"`
	DepartureTime *float64 `json:"departure_time,omitempty"`
}

func (s *DistanceMatrixRequest) Bind(r *http.Request) error {
	if len(s.Points) == 0 {
		return errors.New("points cannot be empty")
	}
	return nil
}

// DistanceMatrixResponse carries pairwise travel times in seconds;
// unreachable pairs are -1.
type DistanceMatrixResponse struct {
	Durations [][]float64 `json:"durations"`
}

func (h *NavigationHandler) DistanceMatrix(w http.ResponseWriter, r *http.Request) {
	data := &DistanceMatrixRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if rendered := h.validateRequest(w, r, data); rendered {
		return
	}

	profile := profileFromRequest(data.Mode, false, false)
	matrix, err := h.svc.TravelTimeMatrix(r.Context(), toPoints(data.Points), profile, departureOr(data.DepartureTime))
	if err != nil {
		h.renderServiceError(w, r, "distance_matrix", err)
		return
	}

	h.metrics.CountQuery("distance_matrix", "ok")
	render.Status(r, http.StatusOK)
	render.JSON(w, r, &DistanceMatrixResponse{Durations: matrix})
}

// TSPRequest is the body of POST /api/navigation/tsp. Algorithm is
// "twoopt" (default) or "annealed".
type TSPRequest struct {
	Points        []Coord  `json:"points" validate:"dive"`
	Mode          string   `json:"mode,omitempty"`
	Algorithm     string   `json:"algorithm,omitempty"`
	Seed          uint64   `json:"seed,omitempty"`
	DepartureTime *float64 `json:"departure_time,omitempty"`
}

func (s *TSPRequest) Bind(r *http.Request) error {
	if len(s.Points) < 2 {
		return errors.New("tsp needs at least two points")
	}
	return nil
}

type TSPResponse struct {
	Order             []int                      `json:"order"`
	Points            []datastructure.Coordinate `json:"points"`
	Polyline          string                     `json:"polyline"`
	Distance          float64                    `json:"distance"`
	Duration          float64                    `json:"duration"`
	ComputationTimeMs float64                    `json:"computation_time_ms"`
}

func RenderTSPResponse(result service.TourResult) *TSPResponse {
	return &TSPResponse{
		Order:             result.Order,
		Points:            result.Points,
		Polyline:          result.Polyline,
		Distance:          result.Distance,
		Duration:          result.Duration,
		ComputationTimeMs: result.ComputationTimeMs,
	}
}

func (h *NavigationHandler) TravelingSalesman(w http.ResponseWriter, r *http.Request) {
	data := &TSPRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if rendered := h.validateRequest(w, r, data); rendered {
		return
	}

	profile := profileFromRequest(data.Mode, false, false)
	result, err := h.svc.TravelingSalesman(r.Context(), toPoints(data.Points), profile,
		departureOr(data.DepartureTime), data.Algorithm, data.Seed)
	if err != nil {
		h.renderServiceError(w, r, "tsp", err)
		return
	}

	h.metrics.CountQuery("tsp", "ok")
	render.Status(r, http.StatusOK)
	render.JSON(w, r, RenderTSPResponse(result))
}

// VRPRequest is the body of POST /api/navigation/vrp. Algorithm is
// "savings" (default, Clarke-Wright) or "sweep".
type VRPRequest struct {
	Depot         *Coord    `json:"depot"`
	Customers     []Coord   `json:"customers" validate:"dive"`
	Demands       []float64 `json:"demands"`
	Capacity      float64   `json:"capacity"`
	Mode          string    `json:"mode,omitempty"`
	Algorithm     string    `json:"algorithm,omitempty"`
	DepartureTime *float64  `json:"departure_time,omitempty"`
}

func (s *VRPRequest) Bind(r *http.Request) error {
	if s.Depot == nil {
		return errors.New("depot is required")
	}
	if len(s.Customers) == 0 {
		return errors.New("customers cannot be empty")
	}
	return nil
}

type VehicleRouteResponse struct {
	VehicleID int     `json:"vehicle_id"`
	Stops     []int   `json:"stops"`
	Load      float64 `json:"load"`
	Cost      float64 `json:"cost"`
	Polyline  string  `json:"polyline"`
	Distance  float64 `json:"distance"`
	Duration  float64 `json:"duration"`
}

type VRPResponse struct {
	Routes            []VehicleRouteResponse `json:"routes"`
	TotalCost         float64                `json:"total_cost"`
	TotalDemand       float64                `json:"total_demand"`
	ComputationTimeMs float64                `json:"computation_time_ms"`
}

func RenderVRPResponse(result service.FleetResult) *VRPResponse {
	routes := make([]VehicleRouteResponse, 0, len(result.Routes))
	for _, route := range result.Routes {
		routes = append(routes, VehicleRouteResponse{
			VehicleID: route.VehicleID,
			Stops:     route.Stops,
			Load:      route.Load,
			Cost:      route.Cost,
			Polyline:  route.Polyline,
			Distance:  route.Distance,
			Duration:  route.Duration,
		})
	}
	return &VRPResponse{
		Routes:            routes,
		TotalCost:         result.TotalCost,
		TotalDemand:       result.TotalDemand,
		ComputationTimeMs: result.ComputationTimeMs,
	}
}

func (h *NavigationHandler) VehicleRouting(w http.ResponseWriter, r *http.Request) {
	data := &VRPRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if rendered := h.validateRequest(w, r, data); rendered {
		return
	}

	profile := profileFromRequest(data.Mode, false, false)
	result, err := h.svc.VehicleRouting(r.Context(), data.Depot.toPoint(), toPoints(data.Customers),
		data.Demands, data.Capacity, profile, departureOr(data.DepartureTime), data.Algorithm)
	if err != nil {
		h.renderServiceError(w, r, "vrp", err)
		return
	}

	h.metrics.CountQuery("vrp", "ok")
	render.Status(r, http.StatusOK)
	render.JSON(w, r, RenderVRPResponse(result))
}

// NearestRequest is the body of POST /api/navigation/nearest.
type NearestRequest struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

func (s *NearestRequest) Bind(r *http.Request) error {
	return nil
}

type StreetResponse struct {
	EdgeID     int32                    `json:"edge_id"`
	StreetName string                   `json:"street_name,omitempty"`
	RoadClass  string                   `json:"road_class"`
	Center     datastructure.Coordinate `json:"center"`
}

type NearestResponse struct {
	NodeID   int32                    `json:"node_id"`
	Location datastructure.Coordinate `json:"location"`
	Streets  []StreetResponse         `json:"streets,omitempty"`
}

func RenderNearestResponse(result service.NearestResult) *NearestResponse {
	resp := &NearestResponse{
		NodeID:   result.NodeID,
		Location: result.Location,
	}
	for _, street := range result.Streets {
		resp.Streets = append(resp.Streets, StreetResponse{
			EdgeID:     street.EdgeID,
			StreetName: street.StreetName,
			RoadClass:  street.RoadClass,
			Center:     street.Center,
		})
	}
	return resp
}

func (h *NavigationHandler) NearestStreet(w http.ResponseWriter, r *http.Request) {
	data := &NearestRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if rendered := h.validateRequest(w, r, data); rendered {
		return
	}

	result, err := h.svc.NearestStreet(r.Context(), data.Lat, data.Lon)
	if err != nil {
		h.renderServiceError(w, r, "nearest", err)
		return
	}

	h.metrics.CountQuery("nearest", "ok")
	render.Status(r, http.StatusOK)
	render.JSON(w, r, RenderNearestResponse(result))
}

// MatchRequest is the body of POST /api/navigation/match. Points are
// the raw GPS observations in recorded order.
type MatchRequest struct {
	Points     []Coord `json:"points" validate:"dive"`
	Mode       string  `json:"mode,omitempty"`
	AvoidToll  bool    `json:"avoid_toll,omitempty"`
	AvoidFerry bool    `json:"avoid_ferry,omitempty"`
}

func (s *MatchRequest) Bind(r *http.Request) error {
	if len(s.Points) < 2 {
		return errors.New("a trace needs at least two points")
	}
	return nil
}

type TracePointResponse struct {
	Observation datastructure.Coordinate `json:"observation"`
	Snapped     datastructure.Coordinate `json:"snapped"`
	EdgeID      int32                    `json:"edge_id"`
	StreetName  string                   `json:"street_name,omitempty"`
}

// MatchResponse reports the map-matched trace. Breaks counts the spots
// where the chain had to restart because no street connected two
// consecutive observations; Dropped counts observations discarded as
// GPS jitter or off-map noise.
type MatchResponse struct {
	Polyline string               `json:"polyline"`
	Points   []TracePointResponse `json:"points"`
	Breaks   int                  `json:"breaks"`
	Dropped  int                  `json:"dropped"`
}

func RenderMatchResponse(result service.TraceResult) *MatchResponse {
	resp := &MatchResponse{
		Polyline: result.Polyline,
		Breaks:   result.Breaks,
		Dropped:  result.Dropped,
	}
	for _, point := range result.Points {
		resp.Points = append(resp.Points, TracePointResponse{
			Observation: point.Observation,
			Snapped:     point.Snapped,
			EdgeID:      point.EdgeID,
			StreetName:  point.StreetName,
		})
	}
	return resp
}

func (h *NavigationHandler) MatchTrace(w http.ResponseWriter, r *http.Request) {
	data := &MatchRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if rendered := h.validateRequest(w, r, data); rendered {
		return
	}

	profile := profileFromRequest(data.Mode, data.AvoidToll, data.AvoidFerry)
	result, err := h.svc.MatchTrace(r.Context(), toPoints(data.Points), profile)
	if err != nil {
		h.renderServiceError(w, r, "match", err)
		return
	}

	h.metrics.CountQuery("match", "ok")
	render.Status(r, http.StatusOK)
	render.JSON(w, r, RenderMatchResponse(result))
}

// validateRequest runs struct validation and renders the translated
// field errors when it fails. Returns true when a response was written.
func (h *NavigationHandler) validateRequest(w http.ResponseWriter, r *http.Request, data interface{}) bool {
	if err := h.validate.Struct(data); err != nil {
		render.Render(w, r, ErrValidation(err, translateError(err, h.trans)))
		return true
	}
	return false
}

func (h *NavigationHandler) renderServiceError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	var rend render.Renderer
	outcome := "error"
	switch server.ErrorCodeOf(err) {
	case server.ErrBadParamInput, server.ErrInvalidCoordinates:
		rend = ErrInvalidRequest(err)
		outcome = "invalid"
	case server.ErrNotFound, server.ErrNodeNotFound, server.ErrNoRouteFound:
		rend = ErrRouteNotFound(err)
		outcome = "not_found"
	case server.ErrSearchExhausted:
		rend = ErrUnprocessable(err)
		outcome = "exhausted"
	default:
		logrus.Errorf("%s query failed: %v", operation, err)
		rend = ErrInternalServerErrorRend(errors.New("internal server error"))
	}
	h.metrics.CountQuery(operation, outcome)
	render.Render(w, r, rend)
}

// ErrResponse is the uniform error body of every endpoint.
type ErrResponse struct {
	Err            error `json:"-"` // low-level runtime error
	HTTPStatusCode int   `json:"-"` // http response status code

	StatusText    string   `json:"status"`          // user-level status message
	ErrorText     string   `json:"error,omitempty"` // application-level error message, for debugging
	ErrValidation []string `json:"validation,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
	}
}

func ErrRouteNotFound(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusNotFound,
		StatusText:     "Resource not found.",
		ErrorText:      err.Error(),
	}
}

func ErrUnprocessable(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusUnprocessableEntity,
		StatusText:     "Unprocessable request.",
		ErrorText:      err.Error(),
	}
}

func ErrInternalServerErrorRend(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusInternalServerError,
		StatusText:     "Internal server error.",
		ErrorText:      err.Error(),
	}
}

func ErrValidation(err error, errV []error) render.Renderer {
	vv := make([]string, 0, len(errV))
	for _, v := range errV {
		vv = append(vv, v.Error())
	}
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
		ErrValidation:  vv,
	}
}

func translateError(err error, trans ut.Translator) []error {
	if err == nil {
		return nil
	}
	var validatorErrs validator.ValidationErrors
	if !errors.As(err, &validatorErrs) {
		return []error{err}
	}
	errs := make([]error, 0, len(validatorErrs))
	for _, e := range validatorErrs {
		errs = append(errs, errors.New(e.Translate(trans)))
	}
	return errs
}
