package retrieval

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"

	"github.com/govern-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/service/privacy"
	"github.com/govern-lab/mnemosyne/pkg/utils/logging"
)

// QueryEmbedder embeds query text into the chunk embedding space. The
// same adapter serves ingestion and querying; a different one would put
// queries in a foreign space and make every similarity meaningless.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Weights blend similarity, recency and quality into the ranking score
type Weights struct {
	Similarity float64
	Recency    float64
	Quality    float64
}

// DefaultWeights returns the standard ranking blend
func DefaultWeights() Weights {
	return Weights{Similarity: 0.7, Recency: 0.2, Quality: 0.1}
}

// Retrieval defaults
const (
	DefaultOverFetchFactor = 3
	DefaultRecencyHalfLife = 30 * 24 * time.Hour
)

// Result is the retrieval outcome handed to synthesis
type Result struct {
	Results []*model.RetrievalResult
	// CandidateCount is the ranked pool size before privacy filtering
	CandidateCount int
	// DeniedCount counts pool entries the privacy filter rejected
	DeniedCount int
	// Sessions lists the scopes that were searched
	Sessions []model.SessionID
}

// Engine retrieves ranked, privacy-filtered chunks for a query
type Engine struct {
	embedder QueryEmbedder
	index    interfaces.VectorIndex
	repo     interfaces.Repository
	filter   *privacy.Filter

	overFetch   int
	weights     Weights
	halfLife    time.Duration
	knownTracks map[string]bool
}

// Option is a functional option for Engine configuration
type Option func(*Engine)

// WithOverFetchFactor tunes how far past topK the index is queried
func WithOverFetchFactor(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.overFetch = n
		}
	}
}

// WithWeights overrides the ranking blend
func WithWeights(w Weights) Option {
	return func(e *Engine) {
		e.weights = w
	}
}

// WithRecencyHalfLife tunes the exponential recency decay
func WithRecencyHalfLife(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.halfLife = d
		}
	}
}

// WithKnownTracks enables track filter validation against the policy's
// track list. Without it any track value is accepted.
func WithKnownTracks(tracks []string) Option {
	return func(e *Engine) {
		e.knownTracks = make(map[string]bool, len(tracks))
		for _, track := range tracks {
			e.knownTracks[track] = true
		}
	}
}

// New creates a retrieval Engine
func New(embedder QueryEmbedder, index interfaces.VectorIndex, repo interfaces.Repository, filter *privacy.Filter, opts ...Option) (*Engine, error) {
	if embedder == nil {
		return nil, goerr.New("query embedder is required")
	}
	if index == nil {
		return nil, goerr.New("vector index is required")
	}
	if repo == nil {
		return nil, goerr.New("repository is required")
	}
	if filter == nil {
		return nil, goerr.New("privacy filter is required")
	}

	e := &Engine{
		embedder:  embedder,
		index:     index,
		repo:      repo,
		filter:    filter,
		overFetch: DefaultOverFetchFactor,
		weights:   DefaultWeights(),
		halfLife:  DefaultRecencyHalfLife,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Retrieve embeds the query, searches every session scope, re-ranks the
// over-fetched pool and applies the privacy filter. Results are ordered
// by weighted score and capped at the request's topK.
func (e *Engine) Retrieve(ctx context.Context, queryID string, req *model.QueryRequest) (*Result, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := e.checkTrack(req.Filters); err != nil {
		return nil, err
	}

	// Query embedding and session scope resolution are independent, so
	// they run concurrently.
	var vector []float32
	sessions := req.Sessions()
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		v, err := e.embedder.EmbedQuery(egCtx, req.Query)
		if err != nil {
			return goerr.Wrap(err, "failed to embed query")
		}
		vector = v
		return nil
	})
	if len(sessions) == 0 {
		eg.Go(func() error {
			all, err := e.repo.Document().ListSessions(egCtx)
			if err != nil {
				return goerr.Wrap(err, "failed to resolve session scopes")
			}
			sessions = all
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if len(sessions) == 0 {
		return &Result{}, nil
	}

	matches, err := e.searchScopes(ctx, vector, sessions, req.Filters, req.TopK*e.overFetch)
	if err != nil {
		return nil, err
	}

	candidates, err := e.loadCandidates(ctx, matches)
	if err != nil {
		return nil, err
	}
	e.rank(candidates)

	results, denied := e.applyPrivacy(ctx, queryID, candidates, req)
	return &Result{
		Results:        results,
		CandidateCount: len(candidates),
		DeniedCount:    denied,
		Sessions:       sessions,
	}, nil
}

func (e *Engine) checkTrack(filters *model.RetrievalFilters) error {
	if filters == nil || filters.Track == "" || e.knownTracks == nil {
		return nil
	}
	if !e.knownTracks[filters.Track] {
		return goerr.Wrap(model.ErrInvalidFilter, "unknown track",
			goerr.V("track", filters.Track))
	}
	return nil
}

// searchScopes queries every session scope concurrently and merges the
// match sets.
func (e *Engine) searchScopes(ctx context.Context, vector []float32, sessions []model.SessionID, filters *model.RetrievalFilters, limit int) ([]*model.VectorMatch, error) {
	matchSets := make([][]*model.VectorMatch, len(sessions))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, session := range sessions {
		eg.Go(func() error {
			matches, err := e.index.Search(egCtx, vector, limit, filters.VectorFilter(session))
			if err != nil {
				return goerr.Wrap(err, "vector search failed",
					goerr.V(model.SessionIDKey, session))
			}
			matchSets[i] = matches
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var merged []*model.VectorMatch
	for _, set := range matchSets {
		merged = append(merged, set...)
	}
	return merged, nil
}

// loadCandidates joins vector matches with their metadata rows. A match
// with no row is drift between index and store; it is logged as an
// orphan for the reconciliation sweep and skipped.
func (e *Engine) loadCandidates(ctx context.Context, matches []*model.VectorMatch) ([]*model.RetrievalResult, error) {
	if len(matches) == 0 {
		return nil, nil
	}

	similarity := make(map[model.ChunkID]float64, len(matches))
	order := make([]model.ChunkID, 0, len(matches))
	for _, m := range matches {
		prev, seen := similarity[m.ChunkID]
		if !seen {
			order = append(order, m.ChunkID)
		}
		if !seen || m.Similarity > prev {
			similarity[m.ChunkID] = m.Similarity
		}
	}

	chunks, err := e.repo.Chunk().GetBatch(ctx, order)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load chunk metadata")
	}
	byID := make(map[model.ChunkID]*model.Chunk, len(chunks))
	for _, chunk := range chunks {
		byID[chunk.ID] = chunk
	}

	now := time.Now().UTC()
	candidates := make([]*model.RetrievalResult, 0, len(order))
	for _, id := range order {
		chunk, ok := byID[id]
		if !ok {
			logging.From(ctx).Warn("orphan vector match skipped",
				"chunk_id", id)
			continue
		}
		candidates = append(candidates, &model.RetrievalResult{
			Chunk:           chunk,
			SimilarityScore: similarity[id],
			Recency:         e.recency(now, chunk.CreatedAt),
			OriginSession:   chunk.SessionID,
		})
	}
	return candidates, nil
}

// recency decays exponentially with age, halving every half-life
func (e *Engine) recency(now, createdAt time.Time) float64 {
	if createdAt.IsZero() {
		return 0
	}
	age := now.Sub(createdAt)
	if age <= 0 {
		return 1
	}
	return math.Pow(0.5, float64(age)/float64(e.halfLife))
}

func (e *Engine) rank(candidates []*model.RetrievalResult) {
	for _, c := range candidates {
		c.WeightedScore = e.weights.Similarity*c.SimilarityScore +
			e.weights.Recency*c.Recency +
			e.weights.Quality*c.Chunk.QualityScore
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].WeightedScore != candidates[j].WeightedScore {
			return candidates[i].WeightedScore > candidates[j].WeightedScore
		}
		return candidates[i].Chunk.ID < candidates[j].Chunk.ID
	})
}

// applyPrivacy walks the ranked pool keeping allowed and redacted
// results until topK is reached. A denied candidate is skipped and the
// next-best pool entry takes its place, so the result count only shrinks
// when the pool is exhausted.
func (e *Engine) applyPrivacy(ctx context.Context, queryID string, candidates []*model.RetrievalResult, req *model.QueryRequest) ([]*model.RetrievalResult, int) {
	results := make([]*model.RetrievalResult, 0, req.TopK)
	denied := 0
	for _, candidate := range candidates {
		if len(results) >= req.TopK {
			break
		}
		if e.filter.Apply(ctx, queryID, candidate, req.RequesterTier) == types.PrivacyDecisionDeny {
			denied++
			continue
		}
		results = append(results, candidate)
	}
	return results, denied
}
