package datastructure

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{
		Lat: lat,
		Lon: lon,
	}
}

func NewCoordinates(lat, lon []float64) []Coordinate {
	coords := make([]Coordinate, len(lat))
	for i := range lat {
		coords[i] = NewCoordinate(lat[i], lon[i])
	}
	return coords
}

type TravelMode uint8

const (
	ModeCar TravelMode = iota
	ModeTruck
	ModeBus
	ModeBicycle
	ModeFoot
	ModeMotorcycle
)

func (m TravelMode) String() string {
	switch m {
	case ModeCar:
		return "car"
	case ModeTruck:
		return "truck"
	case ModeBus:
		return "bus"
	case ModeBicycle:
		return "bicycle"
	case ModeFoot:
		return "foot"
	case ModeMotorcycle:
		return "motorcycle"
	}
	return "unknown"
}

func TravelModeFromString(s string) TravelMode {
	switch s {
	case "truck":
		return ModeTruck
	case "bus":
		return ModeBus
	case "bicycle":
		return ModeBicycle
	case "foot":
		return ModeFoot
	case "motorcycle":
		return ModeMotorcycle
	default:
		return ModeCar
	}
}

type RoadClass uint8

const (
	RoadClassMotorway RoadClass = iota
	RoadClassMotorwayLink
	RoadClassTrunk
	RoadClassTrunkLink
	RoadClassPrimary
	RoadClassPrimaryLink
	RoadClassSecondary
	RoadClassSecondaryLink
	RoadClassTertiary
	RoadClassTertiaryLink
	RoadClassUnclassified
	RoadClassResidential
	RoadClassLivingStreet
	RoadClassService
	RoadClassCycleway
	RoadClassFootway
)

// DefaultSpeedKmh is the assumed free-flow speed when a way carries no
// maxspeed tag.
func (rc RoadClass) DefaultSpeedKmh() float64 {
	switch rc {
	case RoadClassMotorway:
		return 95
	case RoadClassMotorwayLink:
		return 90
	case RoadClassTrunk:
		return 85
	case RoadClassTrunkLink:
		return 80
	case RoadClassPrimary:
		return 75
	case RoadClassPrimaryLink:
		return 70
	case RoadClassSecondary:
		return 65
	case RoadClassSecondaryLink:
		return 60
	case RoadClassTertiary:
		return 50
	case RoadClassTertiaryLink:
		return 50
	case RoadClassUnclassified:
		return 50
	case RoadClassResidential:
		return 30
	case RoadClassLivingStreet:
		return 20
	case RoadClassService:
		return 20
	case RoadClassCycleway:
		return 15
	case RoadClassFootway:
		return 5
	default:
		return 40
	}
}

// HierarchyRank orders road classes from most important (0 = motorway)
// to least. Coarse filters may skip edges whose rank exceeds a limit.
func (rc RoadClass) HierarchyRank() int {
	switch rc {
	case RoadClassMotorway, RoadClassMotorwayLink:
		return 0
	case RoadClassTrunk, RoadClassTrunkLink:
		return 1
	case RoadClassPrimary, RoadClassPrimaryLink:
		return 2
	case RoadClassSecondary, RoadClassSecondaryLink:
		return 3
	case RoadClassTertiary, RoadClassTertiaryLink:
		return 4
	case RoadClassUnclassified:
		return 5
	case RoadClassResidential:
		return 6
	case RoadClassLivingStreet:
		return 7
	case RoadClassService:
		return 8
	case RoadClassCycleway:
		return 9
	case RoadClassFootway:
		return 10
	}
	return 11
}

func (rc RoadClass) String() string {
	switch rc {
	case RoadClassMotorway:
		return "motorway"
	case RoadClassMotorwayLink:
		return "motorway_link"
	case RoadClassTrunk:
		return "trunk"
	case RoadClassTrunkLink:
		return "trunk_link"
	case RoadClassPrimary:
		return "primary"
	case RoadClassPrimaryLink:
		return "primary_link"
	case RoadClassSecondary:
		return "secondary"
	case RoadClassSecondaryLink:
		return "secondary_link"
	case RoadClassTertiary:
		return "tertiary"
	case RoadClassTertiaryLink:
		return "tertiary_link"
	case RoadClassUnclassified:
		return "unclassified"
	case RoadClassResidential:
		return "residential"
	case RoadClassLivingStreet:
		return "living_street"
	case RoadClassService:
		return "service"
	case RoadClassCycleway:
		return "cycleway"
	case RoadClassFootway:
		return "footway"
	}
	return "unclassified"
}

func RoadClassFromString(s string) RoadClass {
	switch s {
	case "motorway":
		return RoadClassMotorway
	case "motorway_link":
		return RoadClassMotorwayLink
	case "trunk":
		return RoadClassTrunk
	case "trunk_link":
		return RoadClassTrunkLink
	case "primary":
		return RoadClassPrimary
	case "primary_link":
		return RoadClassPrimaryLink
	case "secondary":
		return RoadClassSecondary
	case "secondary_link":
		return RoadClassSecondaryLink
	case "tertiary":
		return RoadClassTertiary
	case "tertiary_link":
		return RoadClassTertiaryLink
	case "residential":
		return RoadClassResidential
	case "living_street":
		return RoadClassLivingStreet
	case "service":
		return RoadClassService
	case "cycleway":
		return RoadClassCycleway
	case "footway", "path", "pedestrian":
		return RoadClassFootway
	default:
		return RoadClassUnclassified
	}
}

type Surface uint8

const (
	SurfaceUnknown Surface = iota
	SurfacePaved
	SurfaceUnpaved
	SurfaceGravel
	SurfaceCobblestone
)

func SurfaceFromString(s string) Surface {
	switch s {
	case "asphalt", "paved", "concrete":
		return SurfacePaved
	case "unpaved", "dirt", "ground", "sand":
		return SurfaceUnpaved
	case "gravel", "fine_gravel", "compacted":
		return SurfaceGravel
	case "cobblestone", "sett", "paving_stones":
		return SurfaceCobblestone
	default:
		return SurfaceUnknown
	}
}

// AccessRestrictions records which travel modes may use an edge.
type AccessRestrictions struct {
	Car        bool
	Truck      bool
	Bus        bool
	Bicycle    bool
	Foot       bool
	Motorcycle bool
}

func AccessAll() AccessRestrictions {
	return AccessRestrictions{
		Car:        true,
		Truck:      true,
		Bus:        true,
		Bicycle:    true,
		Foot:       true,
		Motorcycle: true,
	}
}

func AccessMotorized() AccessRestrictions {
	return AccessRestrictions{
		Car:        true,
		Truck:      true,
		Bus:        true,
		Motorcycle: true,
	}
}

func (a AccessRestrictions) Allows(m TravelMode) bool {
	switch m {
	case ModeCar:
		return a.Car
	case ModeTruck:
		return a.Truck
	case ModeBus:
		return a.Bus
	case ModeBicycle:
		return a.Bicycle
	case ModeFoot:
		return a.Foot
	case ModeMotorcycle:
		return a.Motorcycle
	}
	return false
}

type RestrictionType uint8

const (
	NoTurn RestrictionType = iota
	OnlyTurn
	ConditionalTurn
)

// TurnRestriction forbids (NoTurn) or mandates (OnlyTurn) the maneuver
// fromEdge -> viaNode -> toEdge. Most intersections carry none, so the
// graph stores them per via node and search consults them lazily.
type TurnRestriction struct {
	FromEdgeID int32
	ViaNodeID  int32
	ToEdgeID   int32
	Type       RestrictionType
}

func NewTurnRestriction(fromEdge, viaNode, toEdge int32, t RestrictionType) TurnRestriction {
	return TurnRestriction{
		FromEdgeID: fromEdge,
		ViaNodeID:  viaNode,
		ToEdgeID:   toEdge,
		Type:       t,
	}
}

// EdgeCost carries every cost dimension of one directed edge. TravelTime
// is free-flow seconds; HourlyProfile, when present, holds 24 per-hour
// travel times replacing TravelTime for time-dependent queries.
type EdgeCost struct {
	TravelTime    float64
	Distance      float64
	HourlyProfile []float64
	Toll          float64
	Ferry         bool
}

func NewEdgeCost(travelTime, distance float64) EdgeCost {
	return EdgeCost{
		TravelTime: travelTime,
		Distance:   distance,
	}
}

// TimeAt returns the traversal time for a departure at the given hour of
// day, falling back to the free-flow time when no profile exists.
func (c EdgeCost) TimeAt(hour int) float64 {
	if len(c.HourlyProfile) != 24 {
		return c.TravelTime
	}
	hour = ((hour % 24) + 24) % 24
	return c.HourlyProfile[hour]
}

type Node struct {
	ID  int32
	Lat float64
	Lon float64
}

func NewNode(id int32, lat, lon float64) Node {
	return Node{
		ID:  id,
		Lat: lat,
		Lon: lon,
	}
}

// Edge is one directed edge. StreetName is an id interned in the graph's
// tag map, -1 when unnamed. ViaNodeID is the node a shortcut bypasses,
// -1 for plain edges.
type Edge struct {
	EdgeID     int32
	FromNodeID int32
	ToNodeID   int32
	Cost       EdgeCost
	RoadClass  RoadClass
	MaxSpeed   float64
	StreetName int
	Lanes      int
	Surface    Surface
	OneWay     bool
	Access     AccessRestrictions
	IsShortcut bool
	ViaNodeID  int32
}

func NewEdge(edgeID, from, to int32, cost EdgeCost, roadClass RoadClass) Edge {
	return Edge{
		EdgeID:     edgeID,
		FromNodeID: from,
		ToNodeID:   to,
		Cost:       cost,
		RoadClass:  roadClass,
		StreetName: -1,
		ViaNodeID:  -1,
		Access:     AccessAll(),
	}
}

// SpeedKmh returns the tagged maxspeed, or the road class default.
func (e *Edge) SpeedKmh() float64 {
	if e.MaxSpeed > 0 {
		return e.MaxSpeed
	}
	return e.RoadClass.DefaultSpeedKmh()
}

type Bounds struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

func (b Bounds) Center() Coordinate {
	return NewCoordinate((b.MinLat+b.MaxLat)/2, (b.MinLon+b.MaxLon)/2)
}

// RoutingProfile selects the travel mode and the cruising speed used by
// distance-based heuristic lower bounds. CruisingSpeedKmh must be at
// least the fastest edge speed reachable by the mode, otherwise the
// heuristic stops being admissible.
type RoutingProfile struct {
	Mode             TravelMode
	CruisingSpeedKmh float64
	AvoidToll        bool
	AvoidFerry       bool
}

func DefaultCarProfile() RoutingProfile {
	return RoutingProfile{Mode: ModeCar, CruisingSpeedKmh: 110}
}

func DefaultBicycleProfile() RoutingProfile {
	return RoutingProfile{Mode: ModeBicycle, CruisingSpeedKmh: 25}
}

func DefaultFootProfile() RoutingProfile {
	return RoutingProfile{Mode: ModeFoot, CruisingSpeedKmh: 7}
}

// RoutingRequest is the uniform query contract. DepartureTime is epoch
// seconds, negative when the caller wants free-flow costs.
type RoutingRequest struct {
	Origin        Coordinate
	Destination   Coordinate
	Profile       RoutingProfile
	DepartureTime float64
}

func NewRoutingRequest(origin, destination Coordinate, profile RoutingProfile) RoutingRequest {
	return RoutingRequest{
		Origin:        origin,
		Destination:   destination,
		Profile:       profile,
		DepartureTime: -1,
	}
}

// KVEdge is the compact edge record stored in the key-value street
// index, keyed by H3 cell of its center point.
type KVEdge struct {
	EdgeID     int32
	CenterLoc  [2]float64
	FromNodeID int32
	ToNodeID   int32
}

type RouteSegment struct {
	EdgeID     int32   `json:"edge_id"`
	StreetName string  `json:"street_name,omitempty"`
	RoadClass  string  `json:"road_class"`
	Distance   float64 `json:"distance"`
	Duration   float64 `json:"duration"`
}

type RoutingResponse struct {
	Distance  float64        `json:"distance"`
	Duration  float64        `json:"duration"`
	Geometry  []Coordinate   `json:"geometry"`
	Segments  []RouteSegment `json:"segments"`
	Waypoints []Coordinate   `json:"waypoints"`
}
