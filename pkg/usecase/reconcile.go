package usecase

import (
	"context"
	"time"

	"github.com/govern-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/service/chunker"
	"github.com/govern-lab/mnemosyne/pkg/service/embedding"
	"github.com/govern-lab/mnemosyne/pkg/service/notify"
	"github.com/govern-lab/mnemosyne/pkg/service/worker"
	"github.com/govern-lab/mnemosyne/pkg/utils/async"
	"github.com/govern-lab/mnemosyne/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultStaleThreshold is how old an ingesting document must be before a
// sweep treats its ingest as abandoned.
const DefaultStaleThreshold = 10 * time.Minute

// ReconcileUseCase repairs documents left inconsistent by interrupted
// ingestion. It implements worker.Reconciler; the background worker and
// the one-shot reconcile command both run this sweep.
type ReconcileUseCase struct {
	repo           interfaces.Repository
	index          interfaces.VectorIndex
	embedder       *embedding.Adapter
	chunker        *chunker.Chunker
	notifier       *notify.Service
	staleThreshold time.Duration
}

// NewReconcileUseCase creates a new ReconcileUseCase instance
func NewReconcileUseCase(repo interfaces.Repository, index interfaces.VectorIndex, svc *Services, notifySvc *notify.Service, staleThreshold time.Duration) *ReconcileUseCase {
	if staleThreshold <= 0 {
		staleThreshold = DefaultStaleThreshold
	}
	return &ReconcileUseCase{
		repo:           repo,
		index:          index,
		embedder:       svc.Embedder,
		chunker:        svc.Chunker,
		notifier:       notifySvc,
		staleThreshold: staleThreshold,
	}
}

type reconcileOutcome int

const (
	outcomeRecovered reconcileOutcome = iota
	outcomeRolledBack
)

// Reconcile scans for partially indexed documents and stale ingesting
// markers and re-drives each flush to a consistent state. Per-document
// failures are counted and the sweep continues.
func (uc *ReconcileUseCase) Reconcile(ctx context.Context) (*worker.Report, error) {
	logger := logging.From(ctx)
	report := &worker.Report{}

	partial, err := uc.repo.Document().ListByStatus(ctx, types.DocumentStatusPartiallyIndexed)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list partially indexed documents")
	}

	ingesting, err := uc.repo.Document().ListByStatus(ctx, types.DocumentStatusIngesting)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list ingesting documents")
	}
	cutoff := time.Now().Add(-uc.staleThreshold)
	docs := partial
	for _, doc := range ingesting {
		if doc.CreatedAt.Before(cutoff) {
			docs = append(docs, doc)
		}
	}

	for _, doc := range docs {
		report.Scanned++
		outcome, err := uc.reconcileDocument(ctx, doc)
		if err != nil {
			report.Failed++
			logger.Error("document reconciliation failed",
				model.DocumentIDKey, doc.ID,
				"status", doc.Status,
				logging.ErrAttr(err))
			continue
		}
		switch outcome {
		case outcomeRecovered:
			report.Recovered++
		case outcomeRolledBack:
			report.RolledBack++
		}
	}

	if report.Scanned > 0 && uc.notifier.Enabled() {
		r := *report
		async.Dispatch(ctx, func(ctx context.Context) error {
			return uc.notifier.NotifyReconcileOutcome(ctx, r.Scanned, r.Recovered, r.RolledBack, r.Failed)
		})
	}

	return report, nil
}

// reconcileDocument re-drives one document's flush. Metadata present but
// vectors missing: re-upsert, re-embedding when the rows carry no vector.
// Metadata absent: delete whatever vectors landed and give the document up
// for re-ingest. Both present: just the indexed mark was lost.
func (uc *ReconcileUseCase) reconcileDocument(ctx context.Context, doc *model.Document) (reconcileOutcome, error) {
	chunks, err := uc.repo.Chunk().ListByDocument(ctx, doc.ID)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list document chunks")
	}

	if len(chunks) == 0 {
		return uc.rollBack(ctx, doc)
	}
	return uc.recover(ctx, doc, chunks)
}

// recover ensures every chunk row has an indexed vector, then marks the
// document indexed.
func (uc *ReconcileUseCase) recover(ctx context.Context, doc *model.Document, chunks []*model.Chunk) (reconcileOutcome, error) {
	logger := logging.From(ctx)
	ids := chunkIDs(chunks)

	entries, err := uc.index.Fetch(ctx, ids)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to fetch indexed vectors")
	}
	indexed := make(map[model.ChunkID]bool, len(entries))
	for _, entry := range entries {
		indexed[entry.ChunkID] = true
	}

	var missing []*model.Chunk
	for _, chunk := range chunks {
		if !indexed[chunk.ID] {
			missing = append(missing, chunk)
		}
	}

	if len(missing) > 0 {
		upserts, err := uc.rebuildEntries(ctx, missing)
		if err != nil {
			return 0, err
		}
		if err := uc.index.Upsert(ctx, upserts); err != nil {
			return 0, goerr.Wrap(err, "failed to re-upsert vectors",
				goerr.V("missing", len(missing)))
		}
		uc.invalidateCorrelationsFor(ctx, missing)
		logger.Info("missing vectors restored",
			model.DocumentIDKey, doc.ID,
			"restored", len(missing))
	}

	if err := uc.repo.Document().MarkIndexed(ctx, doc.ID, len(chunks)); err != nil {
		return 0, goerr.Wrap(err, "failed to mark document indexed")
	}
	return outcomeRecovered, nil
}

// rebuildEntries turns chunk rows back into vector entries, re-embedding
// the rows whose stored embedding is gone.
func (uc *ReconcileUseCase) rebuildEntries(ctx context.Context, chunks []*model.Chunk) ([]*model.VectorEntry, error) {
	var texts []string
	var reembed []int
	entries := make([]*model.VectorEntry, len(chunks))

	for i, chunk := range chunks {
		entries[i] = &model.VectorEntry{
			ChunkID:   chunk.ID,
			Embedding: chunk.Embedding,
			SessionID: chunk.SessionID,
			Track:     chunk.Metadata["track"],
			CreatedAt: chunk.CreatedAt,
		}
		if len(chunk.Embedding) == 0 {
			texts = append(texts, chunk.Text)
			reembed = append(reembed, i)
		}
	}

	if len(texts) > 0 {
		vectors, err := uc.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to re-embed chunks",
				goerr.V("chunks", len(texts)))
		}
		for j, i := range reembed {
			entries[i].Embedding = vectors[j]
		}
	}
	return entries, nil
}

// rollBack removes whatever vectors a metadata-less document left in the
// index and marks it for re-ingest. The chunk IDs are re-derived from the
// raw text; content addressing makes that exact.
func (uc *ReconcileUseCase) rollBack(ctx context.Context, doc *model.Document) (reconcileOutcome, error) {
	pieces := uc.chunker.Split(doc.RawText)
	ids := make([]model.ChunkID, len(pieces))
	for i, piece := range pieces {
		ids[i] = model.NewChunkID(piece.Text)
	}

	if len(ids) > 0 {
		entries, err := uc.index.Fetch(ctx, ids)
		if err != nil {
			return 0, goerr.Wrap(err, "failed to probe for orphan vectors")
		}
		orphans, err := uc.trueOrphans(ctx, entries)
		if err != nil {
			return 0, err
		}
		if len(orphans) > 0 {
			if err := uc.index.Delete(ctx, orphans); err != nil {
				return 0, goerr.Wrap(err, "failed to delete orphan vectors",
					goerr.V("orphans", len(orphans)))
			}
			logging.From(ctx).Info("orphan vectors removed",
				model.DocumentIDKey, doc.ID,
				"orphans", len(orphans))
		}
	}

	detail := "reconciliation rolled the document back for re-ingest"
	if err := uc.repo.Document().UpdateStatus(ctx, doc.ID, types.DocumentStatusEmbeddingFailed, detail); err != nil {
		return 0, goerr.Wrap(err, "failed to mark document embedding_failed")
	}
	return outcomeRolledBack, nil
}

// trueOrphans filters indexed entries down to those with no metadata row
// anywhere. Content-addressed IDs are shared across documents, so a
// vector here may be owned by another document with identical text; those
// must survive the rollback.
func (uc *ReconcileUseCase) trueOrphans(ctx context.Context, entries []*model.VectorEntry) ([]model.ChunkID, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	candidates := make([]model.ChunkID, len(entries))
	for i, entry := range entries {
		candidates[i] = entry.ChunkID
	}

	rows, err := uc.repo.Chunk().GetBatch(ctx, candidates)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to check orphan candidates")
	}
	owned := make(map[model.ChunkID]bool, len(rows))
	for _, row := range rows {
		owned[row.ID] = true
	}

	var orphans []model.ChunkID
	for _, id := range candidates {
		if !owned[id] {
			orphans = append(orphans, id)
		}
	}
	return orphans, nil
}

func (uc *ReconcileUseCase) invalidateCorrelationsFor(ctx context.Context, chunks []*model.Chunk) {
	dropped, err := uc.repo.Correlation().InvalidateByChunks(ctx, chunkIDs(chunks))
	if err != nil {
		logging.From(ctx).Warn("correlation cache invalidation failed",
			logging.ErrAttr(err))
		return
	}
	if dropped > 0 {
		logging.From(ctx).Info("correlation cache invalidated",
			"dropped_sets", dropped)
	}
}
