package matching

import (
	"math"
	"runtime"
	"sort"

	"github.com/pandu-maps/pandu/pkg/concurrent"
	"github.com/pandu-maps/pandu/pkg/datastructure"
	"github.com/pandu-maps/pandu/pkg/geo"
	"github.com/pandu-maps/pandu/pkg/routing"
	"github.com/pandu-maps/pandu/pkg/server"
	"github.com/pandu-maps/pandu/pkg/util"
	"github.com/sirupsen/logrus"
)

const (
	// sigmaZ is the expected gps noise in meters, the Newson & Krumm
	// estimate.
	sigmaZ = 4.07

	// beta scales the exponential penalty on the difference between
	// route length and straight-line distance.
	beta = 2.0

	// maxRouteDeviation prunes transitions whose route length differs
	// from the straight-line distance by more than this many meters.
	maxRouteDeviation = 2000.0

	// maxCandidates bounds the states kept per observation. Candidates
	// come in directed pairs on two-way streets, so this covers the six
	// nearest roads.
	maxCandidates = 12

	// transitionSettleCap bounds each candidate-pair search. Transitions
	// are local, a search that grows past this has already left the
	// deviation window.
	transitionSettleCap = 30000

	// minObservationGap drops trace points closer than this to the
	// previous kept point. Sub-noise spacing carries no information.
	minObservationGap = 2 * sigmaZ
)

// StreetIndex returns road segments near one point. *kv.KVDB serves it.
type StreetIndex interface {
	NearestStreets(lat, lon float64) ([]datastructure.KVEdge, error)
}

// Matcher snaps noisy coordinate traces onto the road graph with the
// usual hidden-Markov formulation: segments near each point are the
// candidate states, emission weighs the perpendicular snap distance,
// transition weighs how far the road route between two candidates
// detours from the straight line, and Viterbi picks the jointly most
// likely sequence. Candidates are directed, so one-way streets and
// travel direction fall out of the transition scores.
type Matcher struct {
	g       routing.RoutingGraph
	streets StreetIndex
	workers int
}

func NewMatcher(g routing.RoutingGraph, streets StreetIndex) *Matcher {
	return &Matcher{
		g:       g,
		streets: streets,
		workers: runtime.NumCPU(),
	}
}

// MatchedPoint is one kept trace point together with the road position
// the decoder chose for it.
type MatchedPoint struct {
	Observation datastructure.Coordinate
	Snapped     datastructure.Coordinate
	EdgeID      int32
}

// MatchResult is a decoded trace. Breaks counts the times the chain
// had to restart because no transition survived, zero on a clean
// decode. Dropped counts trace points skipped by the spacing filter or
// lacking road candidates.
type MatchResult struct {
	Points  []MatchedPoint
	Breaks  int
	Dropped int
}

// candidate is one directed road segment a trace point may lie on.
type candidate struct {
	stateID    int
	edgeID     int32
	tail       int32
	head       int32
	along      float64 // meters from the tail node to the projection
	toHead     float64 // meters from the projection to the head node
	perp       float64 // meters between observation and projection
	projection datastructure.Coordinate
	observed   datastructure.Coordinate
	emission   float64
}

type matchStep struct {
	loc        datastructure.Coordinate
	candidates []*candidate
}

type transitionScore struct {
	from    int
	to      int
	logProb float64
}

// Match decodes the trace against the road network for the given
// profile. The trace must hold at least two points and overlap the
// loaded map.
func (m *Matcher) Match(trace []datastructure.Coordinate, profile datastructure.RoutingProfile) (*MatchResult, error) {
	if len(trace) < 2 {
		return nil, server.NewErrorf(server.ErrBadParamInput, "a trace needs at least two points")
	}

	kept := filterTrace(trace)
	dropped := len(trace) - len(kept)

	steps := make([]*matchStep, 0, len(kept))
	for _, loc := range kept {
		candidates := m.candidatesFor(loc, profile)
		if len(candidates) == 0 {
			dropped++
			continue
		}
		steps = append(steps, &matchStep{loc: loc, candidates: candidates})
	}
	if len(steps) < 2 {
		return nil, server.NewErrorf(server.ErrNodeNotFound, "trace does not overlap the road network")
	}

	stateData := make(map[int]*candidate)
	nextStateID := 0
	for _, step := range steps {
		for _, cand := range step.candidates {
			cand.stateID = nextStateID
			stateData[nextStateID] = cand
			nextStateID++
		}
	}

	viterbi := NewViterbiAlgorithm()
	viterbi.Start(0, stateIDs(steps[0]), emissions(steps[0]))

	points := make([]MatchedPoint, 0, len(steps))
	breaks := 0

	prev := steps[0]
	for i := 1; i < len(steps); i++ {
		step := steps[i]
		linear := geo.CalculateHaversineDistance(prev.loc.Lat, prev.loc.Lon,
			step.loc.Lat, step.loc.Lon) * 1000

		transitions := m.scoreTransitions(prev.candidates, step.candidates, linear, profile)

		if err := viterbi.NextStep(i, stateIDs(step), emissions(step), transitions); err != nil {
			// finish the chain decoded so far and restart from the
			// current observation
			points = appendMatched(points, viterbi.MostLikelySequence(), stateData)
			viterbi.Start(i, stateIDs(step), emissions(step))
			breaks++
		}

		prev = step
	}

	points = appendMatched(points, viterbi.MostLikelySequence(), stateData)

	logrus.Debugf("trace matched: %d of %d points kept, %d restarts", len(points), len(trace), breaks)

	return &MatchResult{
		Points:  points,
		Breaks:  breaks,
		Dropped: dropped,
	}, nil
}

// filterTrace keeps the endpoints and every point farther than the
// spacing gap from the previously kept one.
func filterTrace(trace []datastructure.Coordinate) []datastructure.Coordinate {
	kept := make([]datastructure.Coordinate, 0, len(trace))
	prev := trace[0]
	for i, p := range trace {
		if i == 0 || i == len(trace)-1 ||
			geo.CalculateHaversineDistance(prev.Lat, prev.Lon, p.Lat, p.Lon)*1000 > minObservationGap {
			kept = append(kept, p)
			prev = p
		}
	}
	return kept
}

// candidatesFor projects one trace point onto the nearby segments the
// street index returns. An index miss means no candidates, not an
// error, so a trace can cross short unmapped stretches.
func (m *Matcher) candidatesFor(loc datastructure.Coordinate, profile datastructure.RoutingProfile) []*candidate {
	edges, err := m.streets.NearestStreets(loc.Lat, loc.Lon)
	if err != nil {
		return nil
	}

	candidates := make([]*candidate, 0, len(edges))
	for _, ke := range edges {
		edge := m.g.GetEdge(ke.EdgeID)
		if !usableEdge(edge, profile) {
			continue
		}

		tail := m.g.GetNode(edge.FromNodeID)
		head := m.g.GetNode(edge.ToNodeID)
		projection := geo.ProjectPointToLineCoord(
			datastructure.NewCoordinate(tail.Lat, tail.Lon),
			datastructure.NewCoordinate(head.Lat, head.Lon),
			loc,
		)

		perp := geo.CalculateHaversineDistance(loc.Lat, loc.Lon, projection.Lat, projection.Lon) * 1000
		along := geo.CalculateHaversineDistance(tail.Lat, tail.Lon, projection.Lat, projection.Lon) * 1000
		if along > edge.Cost.Distance {
			along = edge.Cost.Distance
		}

		candidates = append(candidates, &candidate{
			edgeID:     edge.EdgeID,
			tail:       edge.FromNodeID,
			head:       edge.ToNodeID,
			along:      along,
			toHead:     edge.Cost.Distance - along,
			perp:       perp,
			projection: projection,
			observed:   loc,
			emission:   emissionLogProb(perp),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].perp < candidates[j].perp
	})
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	return candidates
}

// scoreTransitions measures every candidate pair over the worker pool
// and keeps the pairs that survived the deviation window.
func (m *Matcher) scoreTransitions(prev, curr []*candidate, linear float64,
	profile datastructure.RoutingProfile) map[Transition]float64 {

	pool := concurrent.NewWorkerPool[concurrent.TransitionJob, transitionScore](
		m.workers, len(prev)*len(curr))

	for i := range prev {
		for j := range curr {
			pool.AddJob(concurrent.NewTransitionJob(i, j))
		}
	}
	pool.Close()
	pool.Start(func(job concurrent.TransitionJob) transitionScore {
		return m.scoreTransition(prev[job.PrevIndex], curr[job.CurrIndex], linear, profile)
	})
	pool.Wait()

	transitions := make(map[Transition]float64)
	for score := range pool.CollectResults() {
		if math.IsInf(score.logProb, -1) {
			continue
		}
		transitions[NewTransition(score.from, score.to)] = score.logProb
	}
	return transitions
}

// scoreTransition measures the road distance from candidate a to
// candidate b: forward along a's segment, the shortest path from a's
// head to b's tail, then along b's segment. Forward progress on the
// same directed segment shortcuts the search entirely.
func (m *Matcher) scoreTransition(a, b *candidate, linear float64,
	profile datastructure.RoutingProfile) transitionScore {

	var routeLen float64
	if a.edgeID == b.edgeID && b.along >= a.along {
		routeLen = b.along - a.along
	} else {
		opts := routing.DefaultSearchOptions()
		opts.Profile = profile
		opts.MaxSettledNodes = transitionSettleCap

		res, err := routing.ShortestPathDijkstra(m.g, a.head, b.tail, opts)
		if err != nil {
			return transitionScore{from: a.stateID, to: b.stateID, logProb: math.Inf(-1)}
		}
		routeLen = a.toHead + res.Distance + b.along
	}

	deviation := math.Abs(routeLen - linear)
	if deviation > maxRouteDeviation {
		return transitionScore{from: a.stateID, to: b.stateID, logProb: math.Inf(-1)}
	}
	return transitionScore{
		from:    a.stateID,
		to:      b.stateID,
		logProb: transitionLogProb(deviation),
	}
}

func usableEdge(edge *datastructure.Edge, profile datastructure.RoutingProfile) bool {
	if !edge.Access.Allows(profile.Mode) {
		return false
	}
	if profile.AvoidToll && edge.Cost.Toll > 0 {
		return false
	}
	if profile.AvoidFerry && edge.Cost.Ferry {
		return false
	}
	return true
}

// emissionLogProb is the zero-mean gaussian over the snap distance.
func emissionLogProb(snapDist float64) float64 {
	return math.Log(1.0/(math.Sqrt(2*math.Pi)*sigmaZ)) - 0.5*math.Pow(snapDist/sigmaZ, 2)
}

// transitionLogProb is the exponential over the route deviation.
func transitionLogProb(deviation float64) float64 {
	return math.Log(1.0/beta) - deviation/beta
}

func stateIDs(step *matchStep) []int {
	ids := make([]int, len(step.candidates))
	for i, cand := range step.candidates {
		ids[i] = cand.stateID
	}
	return ids
}

func emissions(step *matchStep) map[int]float64 {
	probs := make(map[int]float64, len(step.candidates))
	for _, cand := range step.candidates {
		probs[cand.stateID] = cand.emission
	}
	return probs
}

func appendMatched(points []MatchedPoint, sequence []SequenceState, stateData map[int]*candidate) []MatchedPoint {
	for _, ss := range sequence {
		cand := stateData[ss.State]
		points = append(points, MatchedPoint{
			Observation: cand.observed,
			Snapped: datastructure.NewCoordinate(
				util.RoundFloat(cand.projection.Lat, 6),
				util.RoundFloat(cand.projection.Lon, 6),
			),
			EdgeID: cand.edgeID,
		})
	}
	return points
}
