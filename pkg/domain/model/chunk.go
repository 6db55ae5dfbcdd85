package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/govern-lab/mnemosyne/pkg/domain/types"
)

// DefaultEmbeddingDimension is the dimension of the embedding vector.
// Gemini text-embedding-004 uses 768 dimensions.
const DefaultEmbeddingDimension = 768

// ChunkID is a content-addressed identifier for Chunk: the SHA-256 of the
// normalized chunk text. The same text yields the same ID in any session
// and across re-ingestion, which keeps correlation caching valid.
type ChunkID string

// NormalizeChunkText lowercases the text and collapses all whitespace runs
// to single spaces. Chunk identity is computed over this form.
func NormalizeChunkText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// NewChunkID derives the content-addressed ID for the given chunk text
func NewChunkID(text string) ChunkID {
	sum := sha256.Sum256([]byte(NormalizeChunkText(text)))
	return ChunkID(hex.EncodeToString(sum[:]))
}

// String returns the string representation of the chunk ID
func (c ChunkID) String() string {
	return string(c)
}

// Chunk is a bounded span of a document's text plus its embedding vector.
// A chunk is owned by exactly one document; when two documents produce
// identical text the later ingest takes ownership. Privacy and quality
// fields are denormalized from the owning document so that ranking and
// filtering never need a join.
type Chunk struct {
	ID                 ChunkID
	DocumentID         DocumentID
	Text               string `masq:"secret"`
	Position           int
	TokenCount         int
	Embedding          []float32
	SessionID          SessionID
	PrivacyLevel       types.PrivacyTier
	PartiallyShareable bool
	QualityScore       float64
	Metadata           map[string]string
	CreatedAt          time.Time
}

// Topics extracts the topic tags from chunk metadata
func (c *Chunk) Topics() []string {
	var topics []string
	for key := range c.Metadata {
		if name, ok := strings.CutPrefix(key, "topic:"); ok {
			topics = append(topics, name)
		}
	}
	return topics
}
