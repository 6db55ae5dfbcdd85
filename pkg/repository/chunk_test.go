package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/govern-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/repository/memory"
)

func newTestChunk(docID model.DocumentID, session model.SessionID, position int, text string) *model.Chunk {
	return &model.Chunk{
		ID:                 model.NewChunkID(text),
		DocumentID:         docID,
		Text:               text,
		Position:           position,
		TokenCount:         len(text) / 4,
		SessionID:          session,
		PrivacyLevel:       types.PrivacyTierSelective,
		PartiallyShareable: true,
		QualityScore:       0.7,
		Metadata:           map[string]string{"session": string(session), "source_type": "upload"},
	}
}

func runChunkRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("PutBatch and Get roundtrip", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		session := newTestSession()
		docID := model.NewDocumentID()
		text := fmt.Sprintf("Participatory budgeting pilots showed higher turnout among renters. %d", time.Now().UnixNano())
		chunk := newTestChunk(docID, session, 0, text)
		chunk.Embedding = []float32{0.1, 0.2, 0.3}

		if err := repo.Chunk().PutBatch(ctx, []*model.Chunk{chunk}); err != nil {
			t.Fatalf("failed to put chunks: %v", err)
		}

		retrieved, err := repo.Chunk().Get(ctx, chunk.ID)
		if err != nil {
			t.Fatalf("failed to get chunk: %v", err)
		}

		if retrieved.Text != text {
			t.Errorf("expected Text=%s, got %s", text, retrieved.Text)
		}
		if retrieved.DocumentID != docID {
			t.Errorf("expected DocumentID=%s, got %s", docID, retrieved.DocumentID)
		}
		if retrieved.PrivacyLevel != types.PrivacyTierSelective {
			t.Errorf("expected PrivacyLevel=%s, got %s", types.PrivacyTierSelective, retrieved.PrivacyLevel)
		}
		if retrieved.Metadata["session"] != string(session) {
			t.Errorf("expected session metadata %s, got %s", session, retrieved.Metadata["session"])
		}
		// Reconciliation rebuilds lost vectors from the stored row, so
		// the embedding must survive the round trip.
		if len(retrieved.Embedding) != 3 {
			t.Fatalf("expected stored embedding of 3 values, got %d", len(retrieved.Embedding))
		}
		for i, v := range []float32{0.1, 0.2, 0.3} {
			if retrieved.Embedding[i] != v {
				t.Errorf("expected Embedding[%d]=%v, got %v", i, v, retrieved.Embedding[i])
			}
		}
		if retrieved.CreatedAt.IsZero() {
			t.Error("expected non-zero CreatedAt")
		}
	})

	t.Run("PutBatch with same content transfers ownership", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		session := newTestSession()
		text := fmt.Sprintf("Identical chunk text shared by two documents. %d", time.Now().UnixNano())

		first := newTestChunk(model.NewDocumentID(), session, 0, text)
		if err := repo.Chunk().PutBatch(ctx, []*model.Chunk{first}); err != nil {
			t.Fatalf("failed to put first chunk: %v", err)
		}

		second := newTestChunk(model.NewDocumentID(), session, 2, text)
		if err := repo.Chunk().PutBatch(ctx, []*model.Chunk{second}); err != nil {
			t.Fatalf("failed to put second chunk: %v", err)
		}

		if first.ID != second.ID {
			t.Fatalf("expected identical content to share an ID, got %s and %s", first.ID, second.ID)
		}

		retrieved, err := repo.Chunk().Get(ctx, first.ID)
		if err != nil {
			t.Fatalf("failed to get chunk: %v", err)
		}
		if retrieved.DocumentID != second.DocumentID {
			t.Errorf("expected ownership transferred to %s, got %s", second.DocumentID, retrieved.DocumentID)
		}
		if retrieved.Position != 2 {
			t.Errorf("expected Position=2 after replacement, got %d", retrieved.Position)
		}

		// The earlier owner keeps nothing; deletion by the first document
		// must not remove the chunk.
		deleted, err := repo.Chunk().DeleteByDocument(ctx, first.DocumentID)
		if err != nil {
			t.Fatalf("failed to delete by document: %v", err)
		}
		if len(deleted) != 0 {
			t.Errorf("expected no chunks removed for the superseded owner, got %d", len(deleted))
		}
		if _, err := repo.Chunk().Get(ctx, first.ID); err != nil {
			t.Errorf("chunk must survive deletion by the superseded owner: %v", err)
		}
	})

	t.Run("Get returns error for non-existent chunk", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Chunk().Get(ctx, model.NewChunkID(fmt.Sprintf("absent %d", time.Now().UnixNano())))
		if !errors.Is(err, interfaces.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("GetBatch skips missing chunks", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		session := newTestSession()
		docID := model.NewDocumentID()
		present := newTestChunk(docID, session, 0, fmt.Sprintf("Present chunk. %d", time.Now().UnixNano()))
		if err := repo.Chunk().PutBatch(ctx, []*model.Chunk{present}); err != nil {
			t.Fatalf("failed to put chunk: %v", err)
		}

		missing := model.NewChunkID(fmt.Sprintf("never stored %d", time.Now().UnixNano()))
		chunks, err := repo.Chunk().GetBatch(ctx, []model.ChunkID{present.ID, missing})
		if err != nil {
			t.Fatalf("failed to get batch: %v", err)
		}

		if len(chunks) != 1 {
			t.Fatalf("expected 1 chunk, got %d", len(chunks))
		}
		if chunks[0].ID != present.ID {
			t.Errorf("expected chunk %s, got %s", present.ID, chunks[0].ID)
		}
	})

	t.Run("ListByDocument returns chunks in position order", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		session := newTestSession()
		docID := model.NewDocumentID()
		nonce := time.Now().UnixNano()

		var batch []*model.Chunk
		for _, position := range []int{2, 0, 1} {
			batch = append(batch, newTestChunk(docID, session, position,
				fmt.Sprintf("Chunk at position %d of nonce %d.", position, nonce)))
		}
		if err := repo.Chunk().PutBatch(ctx, batch); err != nil {
			t.Fatalf("failed to put chunks: %v", err)
		}

		chunks, err := repo.Chunk().ListByDocument(ctx, docID)
		if err != nil {
			t.Fatalf("failed to list by document: %v", err)
		}

		if len(chunks) != 3 {
			t.Fatalf("expected 3 chunks, got %d", len(chunks))
		}
		for i, c := range chunks {
			if c.Position != i {
				t.Errorf("expected position %d at index %d, got %d", i, i, c.Position)
			}
		}
	})

	t.Run("ListBySession returns newest chunks first with limit", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		session := newTestSession()
		docID := model.NewDocumentID()
		base := time.Now().Add(-3 * time.Hour).UTC().Truncate(time.Second)
		nonce := time.Now().UnixNano()

		var batch []*model.Chunk
		for i := 0; i < 3; i++ {
			chunk := newTestChunk(docID, session, i, fmt.Sprintf("Session chunk %d of nonce %d.", i, nonce))
			chunk.CreatedAt = base.Add(time.Duration(i) * time.Hour)
			batch = append(batch, chunk)
		}
		if err := repo.Chunk().PutBatch(ctx, batch); err != nil {
			t.Fatalf("failed to put chunks: %v", err)
		}

		chunks, err := repo.Chunk().ListBySession(ctx, session, 2)
		if err != nil {
			t.Fatalf("failed to list by session: %v", err)
		}

		if len(chunks) != 2 {
			t.Fatalf("expected 2 chunks, got %d", len(chunks))
		}
		if chunks[0].ID != batch[2].ID {
			t.Errorf("expected newest chunk first, got %s", chunks[0].ID)
		}
	})

	t.Run("DeleteByDocument removes owned chunks and returns their IDs", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		session := newTestSession()
		docID := model.NewDocumentID()
		otherDocID := model.NewDocumentID()
		nonce := time.Now().UnixNano()

		owned := []*model.Chunk{
			newTestChunk(docID, session, 0, fmt.Sprintf("Owned chunk zero of nonce %d.", nonce)),
			newTestChunk(docID, session, 1, fmt.Sprintf("Owned chunk one of nonce %d.", nonce)),
		}
		other := newTestChunk(otherDocID, session, 0, fmt.Sprintf("Chunk of another document, nonce %d.", nonce))

		if err := repo.Chunk().PutBatch(ctx, append(owned, other)); err != nil {
			t.Fatalf("failed to put chunks: %v", err)
		}

		deleted, err := repo.Chunk().DeleteByDocument(ctx, docID)
		if err != nil {
			t.Fatalf("failed to delete by document: %v", err)
		}

		if len(deleted) != 2 {
			t.Fatalf("expected 2 deleted chunk IDs, got %d", len(deleted))
		}
		for _, c := range owned {
			if _, err := repo.Chunk().Get(ctx, c.ID); !errors.Is(err, interfaces.ErrNotFound) {
				t.Errorf("expected chunk %s removed, got %v", c.ID, err)
			}
		}
		if _, err := repo.Chunk().Get(ctx, other.ID); err != nil {
			t.Errorf("chunk of another document must survive: %v", err)
		}
	})
}

func TestMemoryChunkRepository(t *testing.T) {
	runChunkRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		return memory.New()
	})
}

func TestFirestoreChunkRepository(t *testing.T) {
	runChunkRepositoryTest(t, newFirestoreDocumentRepository)
}
