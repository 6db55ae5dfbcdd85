package usecase

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/service/retrieval"
	"github.com/govern-lab/mnemosyne/pkg/service/synthesis"
	"github.com/govern-lab/mnemosyne/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// QueryUseCase runs the retrieval+synthesis entry point. Each query is
// strictly ordered embed → search → filter → synthesize, tracked by the
// query phase state machine.
type QueryUseCase struct {
	retrieval *retrieval.Engine
	synthesis *synthesis.Engine
}

// NewQueryUseCase creates a new QueryUseCase instance
func NewQueryUseCase(retrievalEngine *retrieval.Engine, synthesisEngine *synthesis.Engine) *QueryUseCase {
	return &QueryUseCase{
		retrieval: retrievalEngine,
		synthesis: synthesisEngine,
	}
}

// QueryOutput is the result of one retrieval+synthesis run
type QueryOutput struct {
	QueryID string
	// Answer is nil when the query produced no results to synthesize over
	Answer  *model.SynthesizedAnswer
	Results []*model.RetrievalResult
	// NoAccessibleResults marks a query where candidates existed but the
	// privacy filter denied every one. The accompanying error is
	// ErrPrivacyDenied; this is an answer about access, not a failure.
	NoAccessibleResults bool
	CandidateCount      int
	DeniedCount         int
	Phase               types.QueryPhase
}

// Query retrieves ranked chunks for the request and synthesizes an answer
// over them. When every candidate is privacy-denied the output is returned
// alongside ErrPrivacyDenied so callers can tell "nothing you may see"
// from an empty corpus or a degraded provider.
func (uc *QueryUseCase) Query(ctx context.Context, req *model.QueryRequest) (*QueryOutput, error) {
	queryID := uuid.New().String()
	phase := newPhaseTracker(ctx, queryID)
	out := &QueryOutput{QueryID: queryID}

	retrieved, err := uc.retrieval.Retrieve(ctx, queryID, req)
	if err != nil {
		out.Phase = phase.fail()
		return nil, goerr.Wrap(err, "retrieval failed", goerr.V(model.QueryIDKey, queryID))
	}
	phase.advance(types.QueryPhaseSearching)
	phase.advance(types.QueryPhaseFiltering)

	out.Results = retrieved.Results
	out.CandidateCount = retrieved.CandidateCount
	out.DeniedCount = retrieved.DeniedCount

	if len(retrieved.Results) == 0 {
		out.Phase = phase.advance(types.QueryPhaseDone)
		if retrieved.CandidateCount > 0 {
			out.NoAccessibleResults = true
			return out, goerr.Wrap(model.ErrPrivacyDenied, "no accessible results for requester tier",
				goerr.V(model.QueryIDKey, queryID),
				goerr.V("denied", retrieved.DeniedCount),
				goerr.V("tier", req.RequesterTier))
		}
		return out, nil
	}

	phase.advance(types.QueryPhaseSynthesizing)
	answer, err := uc.synthesis.Synthesize(ctx, req.Query, retrieved.Results, req.Mode)
	if err != nil {
		out.Phase = phase.fail()
		return nil, goerr.Wrap(err, "synthesis failed", goerr.V(model.QueryIDKey, queryID))
	}

	out.Answer = answer
	out.Phase = phase.advance(types.QueryPhaseDone)
	return out, nil
}

// phaseTracker enforces the query phase state machine and logs every
// transition under the query ID.
type phaseTracker struct {
	logger  *slog.Logger
	queryID string
	current types.QueryPhase
}

func newPhaseTracker(ctx context.Context, queryID string) *phaseTracker {
	t := &phaseTracker{
		logger:  logging.From(ctx),
		queryID: queryID,
		current: types.QueryPhaseEmbedding,
	}
	t.logger.Debug("query phase", model.QueryIDKey, queryID, "phase", t.current)
	return t
}

// advance moves to the next phase. Illegal transitions are programming
// errors; they are logged and the machine stays put.
func (t *phaseTracker) advance(next types.QueryPhase) types.QueryPhase {
	if !t.current.CanTransition(next) {
		t.logger.Error("illegal query phase transition",
			model.QueryIDKey, t.queryID,
			"from", t.current,
			"to", next)
		return t.current
	}
	t.current = next
	t.logger.Debug("query phase", model.QueryIDKey, t.queryID, "phase", t.current)
	return t.current
}

func (t *phaseTracker) fail() types.QueryPhase {
	return t.advance(types.QueryPhaseFailed)
}
