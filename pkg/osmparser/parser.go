package osmparser

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/sirupsen/logrus"

	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/server"
)

// routableHighway lists the highway values that become graph edges.
// Point features tagged highway=* (bus stops, crossings, signals) and
// unfinished roads stay out.
var routableHighway = map[string]struct{}{
	"motorway":       {},
	"motorway_link":  {},
	"trunk":          {},
	"trunk_link":     {},
	"primary":        {},
	"primary_link":   {},
	"secondary":      {},
	"secondary_link": {},
	"tertiary":       {},
	"tertiary_link":  {},
	"unclassified":   {},
	"residential":    {},
	"living_street":  {},
	"service":        {},
	"cycleway":       {},
	"footway":        {},
	"path":           {},
	"pedestrian":     {},
	"road":           {},
}

type rawRestriction struct {
	fromWay int64
	viaNode int64
	toWay   int64
	typ     datastructure.RestrictionType
}

type edgeRef struct {
	edgeID int32
	from   int32
	to     int32
}

// Parser converts an OpenStreetMap PBF extract into a routing graph.
// Every node of an accepted way becomes a graph node, so route
// geometry follows the mapped shape without a separate geometry store.
type Parser struct {
	builder      *datastructure.GraphBuilder
	wayNodes     map[int64]struct{}
	nodeIDs      map[int64]int32
	restrictions []rawRestriction
	wayEdges     map[int64][]edgeRef
}

func NewParser() *Parser {
	return &Parser{
		builder:  datastructure.NewGraphBuilder(),
		wayNodes: make(map[int64]struct{}),
		nodeIDs:  make(map[int64]int32),
		wayEdges: make(map[int64][]edgeRef),
	}
}

// ParseFile reads the extract twice: the first scan marks which nodes
// belong to routable ways and collects turn restriction relations, the
// second materializes nodes and edges. PBF files order nodes before
// ways, so one sequential second scan sees every needed coordinate in
// time.
func (p *Parser) ParseFile(ctx context.Context, path string) (*datastructure.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrBadParamInput, "opening osm extract %s", path)
	}
	defer f.Close()

	if err := p.scanWaysAndRelations(ctx, f); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, server.WrapErrorf(err, server.ErrInternalServerError, "rewinding osm extract")
	}
	if err := p.scanNodesAndEdges(ctx, f); err != nil {
		return nil, err
	}
	p.resolveRestrictions()

	logrus.Infof("osm extract parsed, %d nodes", p.builder.NumNodes())
	return p.builder.Build()
}

func (p *Parser) scanWaysAndRelations(ctx context.Context, f io.Reader) error {
	// sequential scan keeps node ids deterministic
	scanner := osmpbf.New(ctx, f, 1)
	defer scanner.Close()

	countWays := 0
	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Way:
			if len(o.Nodes) < 2 || !acceptWay(o) {
				continue
			}
			countWays++
			if countWays%50000 == 0 {
				logrus.Infof("reading openstreetmap ways: %d...", countWays)
			}
			for _, wayNode := range o.Nodes {
				p.wayNodes[int64(wayNode.ID)] = struct{}{}
			}
		case *osm.Relation:
			p.collectRestriction(o)
		}
	}
	if err := scanner.Err(); err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "scanning osm ways")
	}
	return nil
}

func (p *Parser) scanNodesAndEdges(ctx context.Context, f io.Reader) error {
	scanner := osmpbf.New(ctx, f, 1)
	defer scanner.Close()

	countWays := 0
	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			if _, used := p.wayNodes[int64(o.ID)]; !used {
				continue
			}
			p.nodeIDs[int64(o.ID)] = p.builder.AddNode(o.Lat, o.Lon)
		case *osm.Way:
			if len(o.Nodes) < 2 || !acceptWay(o) {
				continue
			}
			countWays++
			if countWays%50000 == 0 {
				logrus.Infof("building edges from openstreetmap ways: %d...", countWays)
			}
			p.processWay(o)
		}
	}
	if err := scanner.Err(); err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "scanning osm nodes")
	}
	return nil
}

func acceptWay(way *osm.Way) bool {
	if highway := way.Tags.Find("highway"); highway != "" {
		_, ok := routableHighway[highway]
		return ok
	}
	// ferry crossings carry route=ferry and no highway tag
	return way.Tags.Find("route") == "ferry"
}

type wayAttributes struct {
	roadClass    datastructure.RoadClass
	name         string
	speedKmh     float64
	taggedSpeed  float64
	lanes        int
	surface      datastructure.Surface
	access       datastructure.AccessRestrictions
	toll         bool
	ferry        bool
	forwardOnly  bool
	backwardOnly bool
}

func parseWayAttributes(way *osm.Way) wayAttributes {
	attrs := wayAttributes{
		roadClass: datastructure.RoadClassFromString(way.Tags.Find("highway")),
		name:      way.Tags.Find("name"),
		ferry:     way.Tags.Find("route") == "ferry",
		toll:      way.Tags.Find("toll") == "yes",
		surface:   datastructure.SurfaceFromString(way.Tags.Find("surface")),
	}

	if lanes, err := strconv.Atoi(way.Tags.Find("lanes")); err == nil {
		attrs.lanes = lanes
	}

	attrs.taggedSpeed = parseMaxspeed(way.Tags.Find("maxspeed"))
	attrs.speedKmh = attrs.taggedSpeed
	if attrs.speedKmh <= 0 {
		attrs.speedKmh = attrs.roadClass.DefaultSpeedKmh()
	}

	attrs.access = accessForClass(attrs.roadClass)
	if restrictedTag(way.Tags.Find("motor_vehicle")) || restrictedTag(way.Tags.Find("vehicle")) {
		attrs.access.Car = false
		attrs.access.Truck = false
		attrs.access.Bus = false
		attrs.access.Motorcycle = false
	}

	switch way.Tags.Find("oneway") {
	case "yes", "1", "true":
		attrs.forwardOnly = true
	case "-1":
		attrs.backwardOnly = true
	default:
		if way.Tags.Find("junction") == "roundabout" || way.Tags.Find("junction") == "circular" {
			attrs.forwardOnly = true
		}
	}
	if restrictedTag(way.Tags.Find("vehicle:forward")) || restrictedTag(way.Tags.Find("motor_vehicle:forward")) {
		attrs.forwardOnly = false
		attrs.backwardOnly = true
	}

	return attrs
}

func restrictedTag(value string) bool {
	switch value {
	case "no", "restricted", "military", "emergency", "private", "permit":
		return true
	}
	return false
}

func accessForClass(rc datastructure.RoadClass) datastructure.AccessRestrictions {
	switch rc {
	case datastructure.RoadClassMotorway, datastructure.RoadClassMotorwayLink,
		datastructure.RoadClassTrunk, datastructure.RoadClassTrunkLink:
		return datastructure.AccessMotorized()
	case datastructure.RoadClassCycleway:
		return datastructure.AccessRestrictions{Bicycle: true, Foot: true}
	case datastructure.RoadClassFootway:
		return datastructure.AccessRestrictions{Foot: true, Bicycle: true}
	default:
		return datastructure.AccessAll()
	}
}

// parseMaxspeed handles the unit suffixes that appear in the wild;
// unparsable values ("none", "signals") fall back to the class default.
func parseMaxspeed(value string) float64 {
	if value == "" {
		return 0
	}
	switch {
	case strings.Contains(value, "mph"):
		speed, err := strconv.ParseFloat(strings.TrimSpace(strings.Replace(value, "mph", "", 1)), 64)
		if err != nil {
			return 0
		}
		return speed * 1.60934
	case strings.Contains(value, "km/h"):
		speed, err := strconv.ParseFloat(strings.TrimSpace(strings.Replace(value, "km/h", "", 1)), 64)
		if err != nil {
			return 0
		}
		return speed
	case strings.Contains(value, "knots"):
		speed, err := strconv.ParseFloat(strings.TrimSpace(strings.Replace(value, "knots", "", 1)), 64)
		if err != nil {
			return 0
		}
		return speed * 1.852
	default:
		speed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0
		}
		return speed
	}
}

func (p *Parser) processWay(way *osm.Way) {
	attrs := parseWayAttributes(way)

	ids := make([]int32, 0, len(way.Nodes))
	for _, wayNode := range way.Nodes {
		if id, ok := p.nodeIDs[int64(wayNode.ID)]; ok {
			ids = append(ids, id)
		}
	}

	for i := 0; i+1 < len(ids); i++ {
		from, to := ids[i], ids[i+1]
		if from == to {
			continue
		}
		if attrs.backwardOnly {
			p.addEdge(int64(way.ID), to, from, attrs)
			continue
		}
		p.addEdge(int64(way.ID), from, to, attrs)
		if !attrs.forwardOnly {
			p.addEdge(int64(way.ID), to, from, attrs)
		}
	}
}

func (p *Parser) addEdge(wayID int64, from, to int32, attrs wayAttributes) {
	fromNode := p.builder.NodeAt(from)
	toNode := p.builder.NodeAt(to)
	distMeters := datastructure.HaversineDistance(fromNode.Lat, fromNode.Lon, toNode.Lat, toNode.Lon) * 1000.0
	travelTime := distMeters / (attrs.speedKmh / 3.6)

	cost := datastructure.NewEdgeCost(travelTime, distMeters)
	cost.Ferry = attrs.ferry
	if attrs.toll {
		cost.Toll = 1
	}

	edge := datastructure.NewEdge(0, from, to, cost, attrs.roadClass)
	edge.MaxSpeed = attrs.taggedSpeed
	edge.Lanes = attrs.lanes
	edge.Surface = attrs.surface
	edge.OneWay = attrs.forwardOnly || attrs.backwardOnly
	edge.Access = attrs.access
	if attrs.name != "" {
		edge.StreetName = p.builder.InternStreetName(attrs.name)
	}

	edgeID := p.builder.AddEdge(edge)
	p.wayEdges[wayID] = append(p.wayEdges[wayID], edgeRef{edgeID: edgeID, from: from, to: to})
}

func (p *Parser) collectRestriction(relation *osm.Relation) {
	if relation.Tags.Find("type") != "restriction" {
		return
	}

	var typ datastructure.RestrictionType
	value := relation.Tags.Find("restriction")
	switch {
	case strings.HasPrefix(value, "no_"):
		typ = datastructure.NoTurn
	case strings.HasPrefix(value, "only_"):
		typ = datastructure.OnlyTurn
	default:
		return
	}

	raw := rawRestriction{fromWay: -1, viaNode: -1, toWay: -1, typ: typ}
	for _, member := range relation.Members {
		switch {
		case member.Type == osm.TypeWay && member.Role == "from":
			raw.fromWay = member.Ref
		case member.Type == osm.TypeWay && member.Role == "to":
			raw.toWay = member.Ref
		case member.Type == osm.TypeNode && member.Role == "via":
			raw.viaNode = member.Ref
		}
	}
	if raw.fromWay < 0 || raw.viaNode < 0 || raw.toWay < 0 {
		// via-way restrictions and incomplete relations are skipped
		return
	}
	p.restrictions = append(p.restrictions, raw)
}

func (p *Parser) resolveRestrictions() {
	applied := 0
	for _, raw := range p.restrictions {
		via, ok := p.nodeIDs[raw.viaNode]
		if !ok {
			continue
		}

		fromEdge := int32(-1)
		for _, ref := range p.wayEdges[raw.fromWay] {
			if ref.to == via {
				fromEdge = ref.edgeID
				break
			}
		}
		toEdge := int32(-1)
		for _, ref := range p.wayEdges[raw.toWay] {
			if ref.from == via {
				toEdge = ref.edgeID
				break
			}
		}
		if fromEdge < 0 || toEdge < 0 {
			continue
		}

		p.builder.AddTurnRestriction(datastructure.NewTurnRestriction(fromEdge, via, toEdge, raw.typ))
		applied++
	}
	if len(p.restrictions) > 0 {
		logrus.Infof("turn restrictions applied: %d of %d", applied, len(p.restrictions))
	}
}
