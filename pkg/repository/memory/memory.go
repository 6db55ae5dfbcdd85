package memory

import (
	"github.com/govern-lab/mnemosyne/pkg/domain/interfaces"
)

type Memory struct {
	document    *documentRepository
	chunk       *chunkRepository
	correlation *correlationRepository
	audit       *auditRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		document:    newDocumentRepository(),
		chunk:       newChunkRepository(),
		correlation: newCorrelationRepository(),
		audit:       newAuditRepository(),
	}
}

func (m *Memory) Document() interfaces.DocumentRepository {
	return m.document
}

func (m *Memory) Chunk() interfaces.ChunkRepository {
	return m.chunk
}

func (m *Memory) Correlation() interfaces.CorrelationRepository {
	return m.correlation
}

func (m *Memory) Audit() interfaces.AuditRepository {
	return m.audit
}

func (m *Memory) Close() error {
	return nil
}
