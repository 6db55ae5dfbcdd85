package interfaces

// Repository defines the interface for metadata persistence. The vector
// index is deliberately a separate service (VectorIndex); the ingest path
// writes both and reconciles when only one side lands.
type Repository interface {
	Document() DocumentRepository
	Chunk() ChunkRepository
	Correlation() CorrelationRepository
	Audit() AuditRepository

	Close() error
}
