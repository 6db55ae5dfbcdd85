package types

// QueryPhase is the per-request state of the retrieval+synthesis pipeline.
// A query advances embedding → searching → filtering → synthesizing → done,
// may finish at filtering when no eligible results remain, and may move to
// failed from any non-terminal phase.
type QueryPhase string

const (
	QueryPhaseEmbedding    QueryPhase = "embedding"
	QueryPhaseSearching    QueryPhase = "searching"
	QueryPhaseFiltering    QueryPhase = "filtering"
	QueryPhaseSynthesizing QueryPhase = "synthesizing"
	QueryPhaseDone         QueryPhase = "done"
	QueryPhaseFailed       QueryPhase = "failed"
)

var queryPhaseTransitions = map[QueryPhase][]QueryPhase{
	QueryPhaseEmbedding:    {QueryPhaseSearching, QueryPhaseFailed},
	QueryPhaseSearching:    {QueryPhaseFiltering, QueryPhaseFailed},
	QueryPhaseFiltering:    {QueryPhaseSynthesizing, QueryPhaseDone, QueryPhaseFailed},
	QueryPhaseSynthesizing: {QueryPhaseDone, QueryPhaseFailed},
}

// IsValid checks if the query phase is valid
func (p QueryPhase) IsValid() bool {
	switch p {
	case QueryPhaseEmbedding,
		QueryPhaseSearching,
		QueryPhaseFiltering,
		QueryPhaseSynthesizing,
		QueryPhaseDone,
		QueryPhaseFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the phase ends the query lifecycle
func (p QueryPhase) IsTerminal() bool {
	return p == QueryPhaseDone || p == QueryPhaseFailed
}

// CanTransition reports whether moving from this phase to next is a legal
// state machine step.
func (p QueryPhase) CanTransition(next QueryPhase) bool {
	for _, allowed := range queryPhaseTransitions[p] {
		if next == allowed {
			return true
		}
	}
	return false
}

// String returns the string representation of the query phase
func (p QueryPhase) String() string {
	return string(p)
}
