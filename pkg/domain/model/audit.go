package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
)

// AuditID is a UUID-based identifier for AuditRecord
type AuditID string

// NewAuditID generates a new UUID v4 AuditID
func NewAuditID() AuditID {
	return AuditID(uuid.New().String())
}

// AuditRecord captures one privacy filter decision. Records are written
// fire-and-forget so the retrieval path never waits on the audit store.
type AuditRecord struct {
	ID            AuditID
	QueryID       string
	ChunkID       ChunkID
	RequesterTier types.PrivacyTier
	Decision      types.PrivacyDecision
	At            time.Time
}
