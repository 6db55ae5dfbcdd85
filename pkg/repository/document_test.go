package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/govern-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/repository/firestore"
	"github.com/govern-lab/mnemosyne/pkg/repository/memory"
)

func newTestSession() model.SessionID {
	return model.SessionID(fmt.Sprintf("session-%d", time.Now().UnixNano()))
}

func runDocumentRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Create assigns ID and timestamp", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		doc := &model.Document{
			SourceType:         types.SourceTypeUpload,
			Title:              "Ranked choice voting analysis",
			RawText:            "Ranked choice voting changes incentive structures for candidates seeking broad support.",
			SessionID:          newTestSession(),
			Track:              "electoral-reform",
			AuthorHash:         "a1b2c3d4",
			Topics:             []string{"voting", "incentives"},
			PrivacyLevel:       types.PrivacyTierSelective,
			PartiallyShareable: true,
			QualityScore:       0.82,
			Status:             types.DocumentStatusIngesting,
		}

		created, err := repo.Document().Create(ctx, doc)
		if err != nil {
			t.Fatalf("failed to create document: %v", err)
		}

		if created.ID == "" {
			t.Error("expected non-empty ID")
		}
		if created.Title != doc.Title {
			t.Errorf("expected Title=%s, got %s", doc.Title, created.Title)
		}
		if created.SessionID != doc.SessionID {
			t.Errorf("expected SessionID=%s, got %s", doc.SessionID, created.SessionID)
		}
		if created.Status != types.DocumentStatusIngesting {
			t.Errorf("expected Status=%s, got %s", types.DocumentStatusIngesting, created.Status)
		}
		if created.CreatedAt.IsZero() {
			t.Error("expected non-zero CreatedAt")
		}
	})

	t.Run("Create with provided ID preserves it", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		customID := model.DocumentID(fmt.Sprintf("custom-id-%d", time.Now().UnixNano()))

		created, err := repo.Document().Create(ctx, &model.Document{
			ID:           customID,
			SourceType:   types.SourceTypeManual,
			Title:        "Custom ID document",
			RawText:      "Manually entered note for identifier handling.",
			SessionID:    newTestSession(),
			PrivacyLevel: types.PrivacyTierMinimal,
			Status:       types.DocumentStatusIngesting,
		})
		if err != nil {
			t.Fatalf("failed to create document: %v", err)
		}

		if created.ID != customID {
			t.Errorf("expected ID=%s, got %s", customID, created.ID)
		}
	})

	t.Run("Get retrieves existing document", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		doc := &model.Document{
			SourceType:         types.SourceTypeForumSync,
			Title:              "Deliberation thread on quorum rules",
			RawText:            "The quorum discussion raised concerns about minority veto power in committee votes.",
			SessionID:          newTestSession(),
			Track:              "governance",
			Topics:             []string{"quorum", "committees"},
			PrivacyLevel:       types.PrivacyTierHigh,
			PartiallyShareable: false,
			QualityScore:       0.61,
			Status:             types.DocumentStatusIngesting,
		}

		created, err := repo.Document().Create(ctx, doc)
		if err != nil {
			t.Fatalf("failed to create document: %v", err)
		}

		retrieved, err := repo.Document().Get(ctx, created.ID)
		if err != nil {
			t.Fatalf("failed to get document: %v", err)
		}

		if retrieved.ID != created.ID {
			t.Errorf("expected ID=%s, got %s", created.ID, retrieved.ID)
		}
		if retrieved.RawText != doc.RawText {
			t.Errorf("expected RawText=%s, got %s", doc.RawText, retrieved.RawText)
		}
		if retrieved.PrivacyLevel != types.PrivacyTierHigh {
			t.Errorf("expected PrivacyLevel=%s, got %s", types.PrivacyTierHigh, retrieved.PrivacyLevel)
		}
		if retrieved.QualityScore != doc.QualityScore {
			t.Errorf("expected QualityScore=%f, got %f", doc.QualityScore, retrieved.QualityScore)
		}
		if len(retrieved.Topics) != 2 {
			t.Errorf("expected 2 topics, got %d", len(retrieved.Topics))
		}
	})

	t.Run("Get returns error for non-existent document", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Document().Get(ctx, "non-existent-id")
		if err == nil {
			t.Error("expected error for non-existent document")
		}
		if !errors.Is(err, interfaces.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListBySession returns documents newest first", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		session := newTestSession()
		base := time.Now().Add(-2 * time.Hour).UTC().Truncate(time.Second)

		older, err := repo.Document().Create(ctx, &model.Document{
			SourceType:   types.SourceTypeUpload,
			Title:        "Older document",
			RawText:      "First upload in this session.",
			SessionID:    session,
			PrivacyLevel: types.PrivacyTierMinimal,
			Status:       types.DocumentStatusIngesting,
			CreatedAt:    base,
		})
		if err != nil {
			t.Fatalf("failed to create older document: %v", err)
		}

		newer, err := repo.Document().Create(ctx, &model.Document{
			SourceType:   types.SourceTypeUpload,
			Title:        "Newer document",
			RawText:      "Second upload in this session.",
			SessionID:    session,
			PrivacyLevel: types.PrivacyTierMinimal,
			Status:       types.DocumentStatusIngesting,
			CreatedAt:    base.Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("failed to create newer document: %v", err)
		}

		// Different session must not appear.
		if _, err := repo.Document().Create(ctx, &model.Document{
			SourceType:   types.SourceTypeUpload,
			Title:        "Unrelated document",
			RawText:      "Upload in another session.",
			SessionID:    newTestSession(),
			PrivacyLevel: types.PrivacyTierMinimal,
			Status:       types.DocumentStatusIngesting,
		}); err != nil {
			t.Fatalf("failed to create unrelated document: %v", err)
		}

		docs, err := repo.Document().ListBySession(ctx, session)
		if err != nil {
			t.Fatalf("failed to list documents: %v", err)
		}

		if len(docs) != 2 {
			t.Fatalf("expected 2 documents, got %d", len(docs))
		}
		if docs[0].ID != newer.ID {
			t.Errorf("expected newest document first, got %s", docs[0].ID)
		}
		if docs[1].ID != older.ID {
			t.Errorf("expected oldest document last, got %s", docs[1].ID)
		}
	})

	t.Run("ListByStatus finds documents in a lifecycle state", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		degraded, err := repo.Document().Create(ctx, &model.Document{
			SourceType:   types.SourceTypeUpload,
			Title:        "Degraded document",
			RawText:      "Vectors landed but metadata write failed.",
			SessionID:    newTestSession(),
			PrivacyLevel: types.PrivacyTierMinimal,
			Status:       types.DocumentStatusPartiallyIndexed,
			StatusDetail: "metadata write failed",
		})
		if err != nil {
			t.Fatalf("failed to create degraded document: %v", err)
		}

		healthy, err := repo.Document().Create(ctx, &model.Document{
			SourceType:   types.SourceTypeUpload,
			Title:        "Healthy document",
			RawText:      "Fully indexed document.",
			SessionID:    newTestSession(),
			PrivacyLevel: types.PrivacyTierMinimal,
			Status:       types.DocumentStatusIndexed,
		})
		if err != nil {
			t.Fatalf("failed to create healthy document: %v", err)
		}

		docs, err := repo.Document().ListByStatus(ctx, types.DocumentStatusPartiallyIndexed)
		if err != nil {
			t.Fatalf("failed to list by status: %v", err)
		}

		foundDegraded := false
		for _, d := range docs {
			if d.ID == degraded.ID {
				foundDegraded = true
			}
			if d.ID == healthy.ID {
				t.Error("indexed document must not appear in partially_indexed list")
			}
		}
		if !foundDegraded {
			t.Error("degraded document not found in list")
		}
	})

	t.Run("UpdateStatus sets status and detail", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Document().Create(ctx, &model.Document{
			SourceType:   types.SourceTypeUpload,
			Title:        "Status transition document",
			RawText:      "Document used to exercise status updates.",
			SessionID:    newTestSession(),
			PrivacyLevel: types.PrivacyTierMinimal,
			Status:       types.DocumentStatusIngesting,
		})
		if err != nil {
			t.Fatalf("failed to create document: %v", err)
		}

		if err := repo.Document().UpdateStatus(ctx, created.ID, types.DocumentStatusEmbeddingFailed, "provider exhausted retries"); err != nil {
			t.Fatalf("failed to update status: %v", err)
		}

		retrieved, err := repo.Document().Get(ctx, created.ID)
		if err != nil {
			t.Fatalf("failed to get document: %v", err)
		}

		if retrieved.Status != types.DocumentStatusEmbeddingFailed {
			t.Errorf("expected Status=%s, got %s", types.DocumentStatusEmbeddingFailed, retrieved.Status)
		}
		if retrieved.StatusDetail != "provider exhausted retries" {
			t.Errorf("expected StatusDetail set, got %q", retrieved.StatusDetail)
		}
	})

	t.Run("UpdateStatus returns error for non-existent document", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		err := repo.Document().UpdateStatus(ctx, "non-existent-id", types.DocumentStatusIndexed, "")
		if err == nil {
			t.Error("expected error for non-existent document")
		}
		if !errors.Is(err, interfaces.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("MarkIndexed sets chunk count and timestamp", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Document().Create(ctx, &model.Document{
			SourceType:   types.SourceTypeUpload,
			Title:        "Indexed document",
			RawText:      "Document that completes the ingest pipeline.",
			SessionID:    newTestSession(),
			PrivacyLevel: types.PrivacyTierMinimal,
			Status:       types.DocumentStatusIngesting,
			StatusDetail: "in flight",
		})
		if err != nil {
			t.Fatalf("failed to create document: %v", err)
		}

		if err := repo.Document().MarkIndexed(ctx, created.ID, 3); err != nil {
			t.Fatalf("failed to mark indexed: %v", err)
		}

		retrieved, err := repo.Document().Get(ctx, created.ID)
		if err != nil {
			t.Fatalf("failed to get document: %v", err)
		}

		if retrieved.Status != types.DocumentStatusIndexed {
			t.Errorf("expected Status=%s, got %s", types.DocumentStatusIndexed, retrieved.Status)
		}
		if retrieved.ChunkCount != 3 {
			t.Errorf("expected ChunkCount=3, got %d", retrieved.ChunkCount)
		}
		if retrieved.IndexedAt.IsZero() {
			t.Error("expected non-zero IndexedAt")
		}
		if retrieved.StatusDetail != "" {
			t.Errorf("expected StatusDetail cleared, got %q", retrieved.StatusDetail)
		}
	})

	t.Run("Delete removes existing document", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Document().Create(ctx, &model.Document{
			SourceType:   types.SourceTypeUpload,
			Title:        "To be deleted",
			RawText:      "This document will be deleted.",
			SessionID:    newTestSession(),
			PrivacyLevel: types.PrivacyTierMinimal,
			Status:       types.DocumentStatusIndexed,
		})
		if err != nil {
			t.Fatalf("failed to create document: %v", err)
		}

		if err := repo.Document().Delete(ctx, created.ID); err != nil {
			t.Fatalf("failed to delete document: %v", err)
		}

		_, err = repo.Document().Get(ctx, created.ID)
		if !errors.Is(err, interfaces.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("Delete returns error for non-existent document", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		err := repo.Document().Delete(ctx, "non-existent-id")
		if !errors.Is(err, interfaces.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListSessions includes sessions of stored documents", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		sessionA := newTestSession()
		sessionB := newTestSession()

		for _, session := range []model.SessionID{sessionA, sessionA, sessionB} {
			if _, err := repo.Document().Create(ctx, &model.Document{
				SourceType:   types.SourceTypeUpload,
				Title:        "Session member",
				RawText:      "Document contributing a session.",
				SessionID:    session,
				PrivacyLevel: types.PrivacyTierMinimal,
				Status:       types.DocumentStatusIndexed,
			}); err != nil {
				t.Fatalf("failed to create document: %v", err)
			}
		}

		sessions, err := repo.Document().ListSessions(ctx)
		if err != nil {
			t.Fatalf("failed to list sessions: %v", err)
		}

		foundA, foundB := false, false
		countA := 0
		for _, s := range sessions {
			if s == sessionA {
				foundA = true
				countA++
			}
			if s == sessionB {
				foundB = true
			}
		}
		if !foundA || !foundB {
			t.Errorf("expected both sessions in list, foundA=%v foundB=%v", foundA, foundB)
		}
		if countA != 1 {
			t.Errorf("expected session to appear once, got %d", countA)
		}
	})
}

func newFirestoreDocumentRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	ctx := context.Background()
	repo, err := firestore.New(ctx, projectID, databaseID)
	if err != nil {
		t.Fatalf("failed to create firestore repository: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close firestore repository: %v", err)
		}
	})
	return repo
}

func TestMemoryDocumentRepository(t *testing.T) {
	runDocumentRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		return memory.New()
	})
}

func TestFirestoreDocumentRepository(t *testing.T) {
	runDocumentRepositoryTest(t, newFirestoreDocumentRepository)
}
