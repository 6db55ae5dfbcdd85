package types

// DocumentStatus represents the lifecycle state of an ingested document
type DocumentStatus string

const (
	// DocumentStatusIngesting is set when the document record is created
	// and chunks are still staged, not yet visible to readers.
	DocumentStatusIngesting DocumentStatus = "ingesting"
	// DocumentStatusIndexed means vectors and metadata are both stored.
	DocumentStatusIndexed DocumentStatus = "indexed"
	// DocumentStatusRejected means validation scored the document below
	// the quality threshold. No chunks exist.
	DocumentStatusRejected DocumentStatus = "rejected"
	// DocumentStatusPartiallyIndexed means one of the vector or metadata
	// writes succeeded and the other failed, and rollback also failed.
	// Documents in this state are picked up by reconciliation.
	DocumentStatusPartiallyIndexed DocumentStatus = "partially_indexed"
	// DocumentStatusEmbeddingFailed means embedding could not be obtained
	// after retries, or reconciliation gave the document up for re-ingest.
	DocumentStatusEmbeddingFailed DocumentStatus = "embedding_failed"
)

// AllDocumentStatuses returns all valid document statuses
func AllDocumentStatuses() []DocumentStatus {
	return []DocumentStatus{
		DocumentStatusIngesting,
		DocumentStatusIndexed,
		DocumentStatusRejected,
		DocumentStatusPartiallyIndexed,
		DocumentStatusEmbeddingFailed,
	}
}

// IsValid checks if the document status is valid
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusIngesting,
		DocumentStatusIndexed,
		DocumentStatusRejected,
		DocumentStatusPartiallyIndexed,
		DocumentStatusEmbeddingFailed:
		return true
	default:
		return false
	}
}

// NeedsReconciliation reports whether the status marks the document for
// the reconciliation sweep.
func (s DocumentStatus) NeedsReconciliation() bool {
	return s == DocumentStatusPartiallyIndexed
}

// String returns the string representation of the document status
func (s DocumentStatus) String() string {
	return string(s)
}
