package model

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/govern-lab/mnemosyne/pkg/domain/types"
)

// CorrelationEdge is a discovered relationship between two chunks,
// possibly from different research sessions.
type CorrelationEdge struct {
	SourceChunkID ChunkID
	TargetChunkID ChunkID
	RelationType  types.RelationType
	Confidence    float64
	SessionPair   [2]SessionID
}

// Swapped returns the edge with source and target exchanged
func (e CorrelationEdge) Swapped() CorrelationEdge {
	return CorrelationEdge{
		SourceChunkID: e.TargetChunkID,
		TargetChunkID: e.SourceChunkID,
		RelationType:  e.RelationType,
		Confidence:    e.Confidence,
		SessionPair:   [2]SessionID{e.SessionPair[1], e.SessionPair[0]},
	}
}

// CorrelationKey identifies a cached correlation run by the pair of
// chunk-id sets it covered, regardless of argument order.
type CorrelationKey string

// NewCorrelationKey derives the order-insensitive cache key for two chunk
// sets. Each set is sorted and the two set digests are combined in
// lexicographic order, so (A,B) and (B,A) share a key.
func NewCorrelationKey(setA, setB []ChunkID) CorrelationKey {
	digestA := chunkSetDigest(setA)
	digestB := chunkSetDigest(setB)
	if digestB < digestA {
		digestA, digestB = digestB, digestA
	}
	sum := sha256.Sum256([]byte(digestA + "|" + digestB))
	return CorrelationKey(hex.EncodeToString(sum[:]))
}

func chunkSetDigest(set []ChunkID) string {
	ids := make([]string, 0, len(set))
	for _, id := range set {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, ",")))
	return hex.EncodeToString(sum[:])
}

// CorrelationSet is a cached correlation run: the edges found between two
// chunk sets plus every chunk ID the run referenced, kept for
// invalidation when a chunk is deleted or re-embedded.
type CorrelationSet struct {
	Key       CorrelationKey
	Edges     []CorrelationEdge
	ChunkIDs  []ChunkID
	CreatedAt time.Time
}

// References reports whether the cached run involved the given chunk
func (s *CorrelationSet) References(id ChunkID) bool {
	for _, ref := range s.ChunkIDs {
		if ref == id {
			return true
		}
	}
	return false
}
