package usecase

import (
	"context"

	"github.com/govern-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/service/correlator"
	"github.com/govern-lab/mnemosyne/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultTopKPerSession is how many of a session's newest chunks feed the
// cross-session correlation when no count is given.
const DefaultTopKPerSession = 50

// CorrelateUseCase relates the knowledge of two research sessions
type CorrelateUseCase struct {
	repo   interfaces.Repository
	engine *correlator.Engine
	topK   int
}

// NewCorrelateUseCase creates a new CorrelateUseCase instance
func NewCorrelateUseCase(repo interfaces.Repository, engine *correlator.Engine, topKPerSession int) *CorrelateUseCase {
	if topKPerSession <= 0 {
		topKPerSession = DefaultTopKPerSession
	}
	return &CorrelateUseCase{
		repo:   repo,
		engine: engine,
		topK:   topKPerSession,
	}
}

// CorrelationOutput reports the edges found between two sessions plus the
// chunk counts that fed the comparison
type CorrelationOutput struct {
	SessionA    model.SessionID
	SessionB    model.SessionID
	ChunkCountA int
	ChunkCountB int
	Edges       []model.CorrelationEdge
}

// CorrelateSessions compares the newest chunks of two sessions pairwise.
// A session with nothing indexed yields an empty edge set, not an error;
// naming the same session twice is an invalid filter.
func (uc *CorrelateUseCase) CorrelateSessions(ctx context.Context, sessionA, sessionB model.SessionID, topKPerSession int) (*CorrelationOutput, error) {
	if sessionA == "" || sessionB == "" {
		return nil, goerr.Wrap(model.ErrInvalidFilter, "both session IDs are required")
	}
	if sessionA == sessionB {
		return nil, goerr.Wrap(model.ErrInvalidFilter, "correlation requires two distinct sessions",
			goerr.V(model.SessionIDKey, sessionA))
	}
	if topKPerSession <= 0 {
		topKPerSession = uc.topK
	}

	chunksA, err := uc.repo.Chunk().ListBySession(ctx, sessionA, topKPerSession)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list session chunks",
			goerr.V(model.SessionIDKey, sessionA))
	}
	chunksB, err := uc.repo.Chunk().ListBySession(ctx, sessionB, topKPerSession)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list session chunks",
			goerr.V(model.SessionIDKey, sessionB))
	}

	out := &CorrelationOutput{
		SessionA:    sessionA,
		SessionB:    sessionB,
		ChunkCountA: len(chunksA),
		ChunkCountB: len(chunksB),
	}
	if len(chunksA) == 0 || len(chunksB) == 0 {
		logging.From(ctx).Info("session correlation skipped, one side has no indexed chunks",
			"session_a", sessionA, "chunks_a", len(chunksA),
			"session_b", sessionB, "chunks_b", len(chunksB))
		return out, nil
	}

	edges, err := uc.engine.Correlate(ctx, chunkIDs(chunksA), chunkIDs(chunksB))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to correlate sessions",
			goerr.V("session_a", sessionA),
			goerr.V("session_b", sessionB))
	}
	out.Edges = edges

	logging.From(ctx).Info("sessions correlated",
		"session_a", sessionA,
		"session_b", sessionB,
		"edges", len(edges))
	return out, nil
}
