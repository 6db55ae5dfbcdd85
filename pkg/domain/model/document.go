package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
)

// DocumentID is a UUID-based identifier for Document
type DocumentID string

// NewDocumentID generates a new UUID v4 DocumentID
func NewDocumentID() DocumentID {
	return DocumentID(uuid.New().String())
}

// NewAuthorHash pseudonymizes an author identity. Only the hash is ever
// stored; the same author yields the same hash so contributions stay
// linkable without naming anyone.
func NewAuthorHash(author string) string {
	if author == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(author))
	return hex.EncodeToString(sum[:])[:16]
}

// SessionID identifies a research session. Sessions are external
// identifiers provided by callers, not entities managed here.
type SessionID string

// String returns the string representation of the session ID
func (s SessionID) String() string {
	return string(s)
}

// Document represents a raw research document accepted for ingestion.
// A document is immutable once validated; re-ingestion supersedes it with
// a new document, the old one is never edited in place.
type Document struct {
	ID                 DocumentID
	SourceType         types.SourceType
	Title              string
	RawText            string `masq:"secret"`
	SessionID          SessionID
	Track              string
	AuthorHash         string
	Topics             []string
	PrivacyLevel       types.PrivacyTier
	PartiallyShareable bool
	QualityScore       float64
	Status             types.DocumentStatus
	// StatusDetail holds the operator-readable reason for rejected,
	// partially indexed, and embedding-failed documents.
	StatusDetail string
	ChunkCount   int
	CreatedAt    time.Time
	IndexedAt    time.Time
}

// Metadata returns the key-value metadata propagated onto every chunk of
// this document.
func (d *Document) Metadata() map[string]string {
	meta := map[string]string{
		"session":     string(d.SessionID),
		"source_type": d.SourceType.String(),
	}
	if d.Track != "" {
		meta["track"] = d.Track
	}
	if d.AuthorHash != "" {
		meta["author_hash"] = d.AuthorHash
	}
	for i, topic := range d.Topics {
		if i >= maxTopicTags {
			break
		}
		meta["topic:"+topic] = "true"
	}
	return meta
}

const maxTopicTags = 8
