package model

import (
	"math"
	"time"
)

// VectorEntry is the tuple stored in the vector index: the embedding, the
// chunk it belongs to, and the few metadata fields the index filters on.
type VectorEntry struct {
	ChunkID   ChunkID
	Embedding []float32
	SessionID SessionID
	Track     string
	CreatedAt time.Time
}

// VectorFilter restricts a nearest-neighbor search. Zero values mean no
// restriction on that field. A search is scoped to at most one session;
// cross-session retrieval issues one search per session and merges.
type VectorFilter struct {
	SessionID SessionID
	Track     string
	Since     time.Time
	Until     time.Time
}

// Matches reports whether the entry passes the filter. Index backends
// that cannot push a predicate down evaluate it with this.
func (f *VectorFilter) Matches(e *VectorEntry) bool {
	if f == nil {
		return true
	}
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if f.Track != "" && e.Track != f.Track {
		return false
	}
	if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.CreatedAt.After(f.Until) {
		return false
	}
	return true
}

// VectorMatch is one nearest-neighbor search hit. Similarity is already
// normalized to [0,1] by the index backend.
type VectorMatch struct {
	ChunkID    ChunkID
	Similarity float64
}

// CosineSimilarity computes the raw cosine between two vectors, zero when
// dimensions differ or either vector has zero norm.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return dot / denom
}

// ClampSimilarity maps raw cosine into [0,1]. Negative cosines flatten to
// zero rather than being rescaled, so thresholds keep cosine semantics.
func ClampSimilarity(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
