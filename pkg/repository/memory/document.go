package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

type documentRepository struct {
	mu   sync.RWMutex
	docs map[model.DocumentID]*model.Document
}

func newDocumentRepository() *documentRepository {
	return &documentRepository{
		docs: make(map[model.DocumentID]*model.Document),
	}
}

// copyDocument creates a deep copy of a document record
func copyDocument(d *model.Document) *model.Document {
	copied := &model.Document{
		ID:                 d.ID,
		SourceType:         d.SourceType,
		Title:              d.Title,
		RawText:            d.RawText,
		SessionID:          d.SessionID,
		Track:              d.Track,
		AuthorHash:         d.AuthorHash,
		PrivacyLevel:       d.PrivacyLevel,
		PartiallyShareable: d.PartiallyShareable,
		QualityScore:       d.QualityScore,
		Status:             d.Status,
		StatusDetail:       d.StatusDetail,
		ChunkCount:         d.ChunkCount,
		CreatedAt:          d.CreatedAt,
		IndexedAt:          d.IndexedAt,
	}

	if d.Topics != nil {
		copied.Topics = make([]string, len(d.Topics))
		copy(copied.Topics, d.Topics)
	}

	return copied
}

func (r *documentRepository) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := copyDocument(doc)
	if created.ID == "" {
		created.ID = model.NewDocumentID()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	r.docs[created.ID] = created
	return copyDocument(created), nil
}

func (r *documentRepository) Get(ctx context.Context, id model.DocumentID) (*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, exists := r.docs[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "document not found", goerr.V("id", id))
	}

	return copyDocument(doc), nil
}

func (r *documentRepository) ListBySession(ctx context.Context, session model.SessionID) ([]*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Document
	for _, d := range r.docs {
		if d.SessionID == session {
			result = append(result, copyDocument(d))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *documentRepository) ListByStatus(ctx context.Context, status types.DocumentStatus) ([]*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Document
	for _, d := range r.docs {
		if d.Status == status {
			result = append(result, copyDocument(d))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *documentRepository) UpdateStatus(ctx context.Context, id model.DocumentID, status types.DocumentStatus, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, exists := r.docs[id]
	if !exists {
		return goerr.Wrap(ErrNotFound, "document not found", goerr.V("id", id))
	}

	doc.Status = status
	doc.StatusDetail = detail
	return nil
}

func (r *documentRepository) MarkIndexed(ctx context.Context, id model.DocumentID, chunkCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, exists := r.docs[id]
	if !exists {
		return goerr.Wrap(ErrNotFound, "document not found", goerr.V("id", id))
	}

	doc.Status = types.DocumentStatusIndexed
	doc.StatusDetail = ""
	doc.ChunkCount = chunkCount
	doc.IndexedAt = time.Now().UTC()
	return nil
}

func (r *documentRepository) Delete(ctx context.Context, id model.DocumentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.docs[id]; !exists {
		return goerr.Wrap(ErrNotFound, "document not found", goerr.V("id", id))
	}

	delete(r.docs, id)
	return nil
}

func (r *documentRepository) ListSessions(ctx context.Context) ([]model.SessionID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[model.SessionID]bool)
	var sessions []model.SessionID
	for _, d := range r.docs {
		if d.SessionID == "" || seen[d.SessionID] {
			continue
		}
		seen[d.SessionID] = true
		sessions = append(sessions, d.SessionID)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i] < sessions[j]
	})

	return sessions, nil
}
