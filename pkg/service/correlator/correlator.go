package correlator

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/govern-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/service/stance"
	"github.com/govern-lab/mnemosyne/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultThreshold is the minimum clamped cosine similarity for a
// chunk pair to become a correlation edge.
const DefaultThreshold = 0.75

// Engine finds relationships between two chunk sets by pairwise
// embedding comparison. Runs are cached order-insensitively, so the
// same pair of sets in either order is computed once.
type Engine struct {
	index      interfaces.VectorIndex
	chunks     interfaces.ChunkRepository
	cache      interfaces.CorrelationRepository
	classifier stance.Classifier
	threshold  float64
}

// Option configures the correlation engine
type Option func(*Engine)

// WithThreshold overrides the similarity threshold
func WithThreshold(threshold float64) Option {
	return func(e *Engine) {
		e.threshold = threshold
	}
}

// WithClassifier replaces the lexicon stance classifier, typically with
// an LLM-backed one.
func WithClassifier(classifier stance.Classifier) Option {
	return func(e *Engine) {
		e.classifier = classifier
	}
}

// New creates a correlation engine. A nil cache disables caching and
// every call recomputes, which only tests should do.
func New(index interfaces.VectorIndex, chunks interfaces.ChunkRepository, cache interfaces.CorrelationRepository, opts ...Option) (*Engine, error) {
	if index == nil {
		return nil, goerr.New("vector index is required")
	}
	if chunks == nil {
		return nil, goerr.New("chunk repository is required")
	}

	engine := &Engine{
		index:      index,
		chunks:     chunks,
		cache:      cache,
		classifier: stance.NewLexiconClassifier(),
		threshold:  DefaultThreshold,
	}
	for _, opt := range opts {
		opt(engine)
	}

	if engine.threshold <= 0 || engine.threshold > 1 {
		return nil, goerr.New("correlation threshold must be in (0, 1]",
			goerr.V("threshold", engine.threshold))
	}

	return engine, nil
}

// Correlate finds edges between two chunk sets. Swapping the arguments
// yields the same edges with source and target exchanged.
func (e *Engine) Correlate(ctx context.Context, setA, setB []model.ChunkID) ([]model.CorrelationEdge, error) {
	first := dedupeSorted(setA)
	second := dedupeSorted(setB)
	if len(first) == 0 || len(second) == 0 {
		return nil, goerr.New("both chunk sets must be non-empty")
	}

	// Canonical direction: the lexicographically smaller set is the
	// source side, so either argument order computes and caches one run.
	swapped := false
	if joinIDs(second) < joinIDs(first) {
		first, second = second, first
		swapped = true
	}

	key := model.NewCorrelationKey(first, second)
	logger := logging.From(ctx)

	if e.cache != nil {
		cached, err := e.cache.GetSet(ctx, key)
		if err == nil {
			return orient(cached.Edges, swapped), nil
		}
		if !errors.Is(err, interfaces.ErrNotFound) {
			logger.Warn("correlation cache read failed, recomputing",
				logging.ErrAttr(err))
		}
	}

	edges, err := e.compute(ctx, first, second)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		set := &model.CorrelationSet{
			Key:       key,
			Edges:     edges,
			ChunkIDs:  union(first, second),
			CreatedAt: time.Now(),
		}
		if err := e.cache.PutSet(ctx, set); err != nil {
			logger.Warn("correlation cache write failed",
				logging.ErrAttr(err))
		}
	}

	return orient(edges, swapped), nil
}

func (e *Engine) compute(ctx context.Context, source, target []model.ChunkID) ([]model.CorrelationEdge, error) {
	ids := union(source, target)
	entries, err := e.index.Fetch(ctx, ids)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch embeddings for correlation")
	}
	byID := make(map[model.ChunkID]*model.VectorEntry, len(entries))
	for _, entry := range entries {
		byID[entry.ChunkID] = entry
	}
	if len(byID) < len(ids) {
		logging.From(ctx).Warn("chunks without indexed embeddings skipped in correlation",
			"requested", len(ids),
			"indexed", len(byID))
	}

	type pair struct {
		source     model.ChunkID
		target     model.ChunkID
		similarity float64
	}
	var pairs []pair
	for _, src := range source {
		srcEntry, ok := byID[src]
		if !ok {
			continue
		}
		for _, tgt := range target {
			if src == tgt {
				continue
			}
			tgtEntry, ok := byID[tgt]
			if !ok {
				continue
			}
			similarity := model.ClampSimilarity(model.CosineSimilarity(srcEntry.Embedding, tgtEntry.Embedding))
			if similarity < e.threshold {
				continue
			}
			pairs = append(pairs, pair{source: src, target: tgt, similarity: similarity})
		}
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	involved := map[model.ChunkID]bool{}
	for _, p := range pairs {
		involved[p.source] = true
		involved[p.target] = true
	}
	involvedIDs := make([]model.ChunkID, 0, len(involved))
	for id := range involved {
		involvedIDs = append(involvedIDs, id)
	}
	sort.Slice(involvedIDs, func(i, j int) bool { return involvedIDs[i] < involvedIDs[j] })

	stances, err := e.classifyChunks(ctx, involvedIDs)
	if err != nil {
		return nil, err
	}

	edges := make([]model.CorrelationEdge, 0, len(pairs))
	for _, p := range pairs {
		edges = append(edges, model.CorrelationEdge{
			SourceChunkID: p.source,
			TargetChunkID: p.target,
			RelationType:  relationFor(stances[p.source], stances[p.target]),
			Confidence:    p.similarity,
			SessionPair:   [2]model.SessionID{byID[p.source].SessionID, byID[p.target].SessionID},
		})
	}
	return edges, nil
}

func (e *Engine) classifyChunks(ctx context.Context, ids []model.ChunkID) (map[model.ChunkID]stance.Stance, error) {
	chunks, err := e.chunks.GetBatch(ctx, ids)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load chunk texts for stance comparison")
	}
	texts := make(map[model.ChunkID]string, len(chunks))
	for _, chunk := range chunks {
		texts[chunk.ID] = chunk.Text
	}

	logger := logging.From(ctx)
	stances := make(map[model.ChunkID]stance.Stance, len(ids))
	for _, id := range ids {
		text, ok := texts[id]
		if !ok {
			stances[id] = stance.Neutral
			continue
		}
		position, err := e.classifier.Classify(ctx, text)
		if err != nil {
			logger.Warn("stance classification failed, treating as neutral",
				"chunkID", id,
				logging.ErrAttr(err))
			position = stance.Neutral
		}
		stances[id] = position
	}
	return stances, nil
}

// relationFor maps a stance comparison onto an edge type: same stance
// corroborates, opposing stances contradict, a neutral side against a
// positioned one leaves only the shared theme.
func relationFor(a, b stance.Stance) types.RelationType {
	switch {
	case a == b:
		return types.RelationTypeSupportive
	case a.Opposes(b):
		return types.RelationTypeContradictory
	default:
		return types.RelationTypeThematic
	}
}

func orient(edges []model.CorrelationEdge, swapped bool) []model.CorrelationEdge {
	if !swapped {
		return edges
	}
	out := make([]model.CorrelationEdge, len(edges))
	for i, edge := range edges {
		out[i] = edge.Swapped()
	}
	return out
}

func dedupeSorted(ids []model.ChunkID) []model.ChunkID {
	out := make([]model.ChunkID, 0, len(ids))
	seen := make(map[model.ChunkID]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func joinIDs(ids []model.ChunkID) string {
	var sb strings.Builder
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(string(id))
	}
	return sb.String()
}

func union(a, b []model.ChunkID) []model.ChunkID {
	seen := make(map[model.ChunkID]bool, len(a)+len(b))
	out := make([]model.ChunkID, 0, len(a)+len(b))
	for _, set := range [][]model.ChunkID{a, b} {
		for _, id := range set {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
