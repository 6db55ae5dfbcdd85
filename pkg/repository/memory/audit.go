package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
)

type auditRepository struct {
	mu      sync.RWMutex
	records map[model.ChunkID][]*model.AuditRecord
}

func newAuditRepository() *auditRepository {
	return &auditRepository{
		records: make(map[model.ChunkID][]*model.AuditRecord),
	}
}

func copyAuditRecord(a *model.AuditRecord) *model.AuditRecord {
	copied := *a
	return &copied
}

func (r *auditRepository) Put(ctx context.Context, record *model.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := copyAuditRecord(record)
	if stored.ID == "" {
		stored.ID = model.NewAuditID()
	}
	if stored.At.IsZero() {
		stored.At = time.Now().UTC()
	}

	r.records[stored.ChunkID] = append(r.records[stored.ChunkID], stored)
	return nil
}

func (r *auditRepository) ListByChunk(ctx context.Context, chunkID model.ChunkID, limit int) ([]*model.AuditRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.records[chunkID]
	result := make([]*model.AuditRecord, 0, len(bucket))
	for _, rec := range bucket {
		result = append(result, copyAuditRecord(rec))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].At.After(result[j].At)
	})

	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}

	return result, nil
}
