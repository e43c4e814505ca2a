package matching

import (
	"errors"
	"math"

	"github.com/pandu-maps/pandu/pkg/util"
)

// errHMMBreak reports a forward step in which no current candidate is
// reachable from any surviving previous candidate. The decoder keeps
// its pre-break state so the sequence so far can still be retrieved.
var errHMMBreak = errors.New("hmm break: no candidate is reachable from the previous step")

// Transition identifies a directed hop between two state ids of
// adjacent time steps.
type Transition struct {
	From int
	To   int
}

func NewTransition(from, to int) Transition {
	return Transition{From: from, To: to}
}

// SequenceState is one step of a decoded sequence: the winning state
// and the observation it explains.
type SequenceState struct {
	State       int
	Observation int
}

// backPointer threads the winning predecessor of each state through
// the forward pass so the most likely sequence can be walked backwards
// once decoding is done.
type backPointer struct {
	state       int
	observation int
	prev        *backPointer
}

// ViterbiAlgorithm decodes the most likely state sequence of a hidden
// Markov model one observation at a time. All probabilities are in log
// space; a transition missing from the map has log probability -inf.
//
// For each state of the current time step, message[state] holds the
// log probability of the most likely sequence ending in that state.
type ViterbiAlgorithm struct {
	message        map[int]float64
	last           map[int]*backPointer
	prevCandidates []int
	broken         bool
}

func NewViterbiAlgorithm() *ViterbiAlgorithm {
	return &ViterbiAlgorithm{}
}

// Start seeds the decoder with the candidates of the first observation,
// using their emission log probabilities as initial state
// probabilities. Calling Start on a running decoder begins a fresh
// sequence, which is how the matcher restarts after a break.
func (v *ViterbiAlgorithm) Start(observation int, candidates []int, emissionLogProb map[int]float64) {
	v.message = make(map[int]float64, len(candidates))
	v.last = make(map[int]*backPointer, len(candidates))
	v.broken = false

	for _, state := range candidates {
		v.message[state] = emissionLogProb[state]
		v.last[state] = &backPointer{
			state:       state,
			observation: observation,
			prev:        nil,
		}
	}

	v.prevCandidates = make([]int, len(candidates))
	copy(v.prevCandidates, candidates)
}

// NextStep extends every surviving sequence with the candidates of the
// next observation. When no candidate is reachable the decoder reports
// a break and leaves its state untouched.
func (v *ViterbiAlgorithm) NextStep(observation int, candidates []int,
	emissionLogProb map[int]float64, transitionLogProb map[Transition]float64) error {

	if v.message == nil {
		return errors.New("viterbi: Start must be called before NextStep")
	}
	if v.broken {
		return errHMMBreak
	}

	newMessage := make(map[int]float64, len(candidates))
	newLast := make(map[int]*backPointer, len(candidates))

	for _, curState := range candidates {
		maxLogProb := math.Inf(-1)
		maxPrevState := -1

		for _, prevState := range v.prevCandidates {
			transition, ok := transitionLogProb[NewTransition(prevState, curState)]
			if !ok {
				continue
			}
			logProb := v.message[prevState] + transition
			if logProb > maxLogProb {
				maxLogProb = logProb
				maxPrevState = prevState
			}
		}

		newMessage[curState] = maxLogProb + emissionLogProb[curState]
		if maxPrevState != -1 {
			newLast[curState] = &backPointer{
				state:       curState,
				observation: observation,
				prev:        v.last[maxPrevState],
			}
		}
	}

	if hmmBreak(newMessage) {
		v.broken = true
		return errHMMBreak
	}

	v.message = newMessage
	v.last = newLast
	v.prevCandidates = make([]int, len(candidates))
	copy(v.prevCandidates, candidates)

	return nil
}

// IsBroken reports whether the last forward step broke the model.
func (v *ViterbiAlgorithm) IsBroken() bool {
	return v.broken
}

// MostLikelySequence returns the jointly most likely state sequence
// accumulated since the last Start, oldest step first.
func (v *ViterbiAlgorithm) MostLikelySequence() []SequenceState {
	if v.message == nil {
		return nil
	}

	bestState := -1
	maxLogProb := math.Inf(-1)
	for state, logProb := range v.message {
		if logProb > maxLogProb {
			maxLogProb = logProb
			bestState = state
		}
	}
	if bestState == -1 {
		return nil
	}

	sequence := make([]SequenceState, 0)
	for bp := v.last[bestState]; bp != nil; bp = bp.prev {
		sequence = append(sequence, SequenceState{
			State:       bp.state,
			Observation: bp.observation,
		})
	}

	return util.ReverseG(sequence)
}

// hmmBreak reports whether the message is empty or every candidate has
// zero probability, either of which dead-ends the forward pass.
func hmmBreak(message map[int]float64) bool {
	for _, logProb := range message {
		if !math.IsInf(logProb, -1) {
			return false
		}
	}
	return true
}
