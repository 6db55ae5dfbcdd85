package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/govern-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/service/archive"
	"github.com/govern-lab/mnemosyne/pkg/service/chunker"
	"github.com/govern-lab/mnemosyne/pkg/service/embedding"
	"github.com/govern-lab/mnemosyne/pkg/service/notify"
	"github.com/govern-lab/mnemosyne/pkg/service/validator"
	"github.com/govern-lab/mnemosyne/pkg/utils/async"
	"github.com/govern-lab/mnemosyne/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// IngestUseCase owns the document lifecycle: validation, chunking,
// embedding, the atomic staging flush, and deletion.
type IngestUseCase struct {
	repo      interfaces.Repository
	index     interfaces.VectorIndex
	validator *validator.Validator
	chunker   *chunker.Chunker
	embedder  *embedding.Adapter
	archive   *archive.Service
	notifier  *notify.Service
	threshold float64
}

// NewIngestUseCase creates a new IngestUseCase instance
func NewIngestUseCase(repo interfaces.Repository, index interfaces.VectorIndex, svc *Services, archiveSvc *archive.Service, notifySvc *notify.Service, threshold float64) *IngestUseCase {
	if threshold <= 0 {
		threshold = validator.DefaultQualityThreshold
	}
	return &IngestUseCase{
		repo:      repo,
		index:     index,
		validator: svc.Validator,
		chunker:   svc.Chunker,
		embedder:  svc.Embedder,
		archive:   archiveSvc,
		notifier:  notifySvc,
		threshold: threshold,
	}
}

// IngestInput represents input for ingesting a document
type IngestInput struct {
	Title      string
	Text       string
	SourceType types.SourceType
	SessionID  model.SessionID
	Track      string
	// Author is pseudonymized before storage; the raw value is never kept
	Author             string
	Topics             []string
	PrivacyLevel       types.PrivacyTier
	PartiallyShareable bool
}

func (in *IngestInput) normalize() {
	in.Text = strings.TrimSpace(in.Text)
	if in.SourceType == "" {
		in.SourceType = types.SourceTypeUpload
	}
	if in.PrivacyLevel == "" {
		in.PrivacyLevel = types.PrivacyTierSelective
	}
}

func (in *IngestInput) validate() error {
	if in.Text == "" {
		return goerr.New("document text is required")
	}
	if in.SessionID == "" {
		return goerr.New("session ID is required")
	}
	if !in.SourceType.IsValid() {
		return goerr.New("invalid source type", goerr.V("source_type", in.SourceType))
	}
	if !in.PrivacyLevel.IsValid() {
		return goerr.New("invalid privacy level", goerr.V("privacy_level", in.PrivacyLevel))
	}
	return nil
}

// ProcessingResult reports the outcome of one ingestion
type ProcessingResult struct {
	Document   *model.Document
	ChunkCount int
	// RejectedReason is set when the document was stored with status
	// rejected; the accompanying error is ErrRejectedLowQuality.
	RejectedReason string
}

// Ingest runs a document through validation, chunking and embedding, then
// flushes staged chunks and vectors atomically. On quality rejection the
// returned result still carries the stored document so callers can show
// what was rejected and why.
func (uc *IngestUseCase) Ingest(ctx context.Context, input IngestInput) (*ProcessingResult, error) {
	input.normalize()
	if err := input.validate(); err != nil {
		return nil, err
	}

	logger := logging.From(ctx)
	now := time.Now().UTC()

	doc := &model.Document{
		ID:                 model.NewDocumentID(),
		SourceType:         input.SourceType,
		Title:              input.Title,
		RawText:            input.Text,
		SessionID:          input.SessionID,
		Track:              input.Track,
		AuthorHash:         model.NewAuthorHash(input.Author),
		Topics:             input.Topics,
		PrivacyLevel:       input.PrivacyLevel,
		PartiallyShareable: input.PartiallyShareable,
		Status:             types.DocumentStatusIngesting,
		CreatedAt:          now,
	}

	assessment := uc.validator.Evaluate(doc)
	doc.QualityScore = assessment.QualityScore

	if doc.QualityScore < uc.threshold {
		reason := fmt.Sprintf("quality score %.2f below threshold %.2f (flags: %s)",
			doc.QualityScore, uc.threshold, strings.Join(assessment.Flags, ","))
		doc.Status = types.DocumentStatusRejected
		doc.StatusDetail = reason
		stored, err := uc.repo.Document().Create(ctx, doc)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to store rejected document")
		}
		return &ProcessingResult{Document: stored, RejectedReason: reason},
			goerr.Wrap(model.ErrRejectedLowQuality, reason,
				goerr.V(model.DocumentIDKey, stored.ID),
				goerr.V("score", doc.QualityScore))
	}

	stored, err := uc.repo.Document().Create(ctx, doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create document record")
	}
	doc = stored

	uc.archiveRawText(ctx, doc)

	pieces := uc.chunker.Split(doc.RawText)
	if len(pieces) == 0 {
		reason := "no chunks produced from document text"
		if err := uc.repo.Document().UpdateStatus(ctx, doc.ID, types.DocumentStatusRejected, reason); err != nil {
			logger.Error("failed to mark empty document rejected",
				logging.ErrAttr(err), model.DocumentIDKey, doc.ID)
		}
		doc.Status = types.DocumentStatusRejected
		doc.StatusDetail = reason
		return &ProcessingResult{Document: doc, RejectedReason: reason},
			goerr.Wrap(model.ErrRejectedLowQuality, reason, goerr.V(model.DocumentIDKey, doc.ID))
	}

	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Text
	}
	vectors, err := uc.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		detail := "embedding failed: " + err.Error()
		if updateErr := uc.repo.Document().UpdateStatus(ctx, doc.ID, types.DocumentStatusEmbeddingFailed, detail); updateErr != nil {
			logger.Error("failed to mark document embedding_failed",
				logging.ErrAttr(updateErr), model.DocumentIDKey, doc.ID)
		}
		return nil, goerr.Wrap(err, "failed to embed document chunks",
			goerr.V(model.DocumentIDKey, doc.ID),
			goerr.V("chunks", len(pieces)))
	}

	chunks, entries := uc.stage(doc, pieces, vectors, now)

	if err := uc.flush(ctx, doc, chunks, entries); err != nil {
		return nil, err
	}

	uc.invalidateCorrelations(ctx, chunkIDs(chunks))

	doc.Status = types.DocumentStatusIndexed
	doc.ChunkCount = len(chunks)
	doc.IndexedAt = time.Now().UTC()

	logger.Info("document indexed",
		model.DocumentIDKey, doc.ID,
		model.SessionIDKey, doc.SessionID,
		"chunks", len(chunks),
		"quality_score", doc.QualityScore)

	return &ProcessingResult{Document: doc, ChunkCount: len(chunks)}, nil
}

// stage builds the per-document staging buffer. Windows that normalize to
// identical text collapse into one chunk; the content-addressed ID makes
// the duplicate invisible anyway.
func (uc *IngestUseCase) stage(doc *model.Document, pieces []chunker.Chunk, vectors [][]float32, now time.Time) ([]*model.Chunk, []*model.VectorEntry) {
	meta := doc.Metadata()
	seen := make(map[model.ChunkID]bool, len(pieces))
	chunks := make([]*model.Chunk, 0, len(pieces))
	entries := make([]*model.VectorEntry, 0, len(pieces))

	for i, piece := range pieces {
		id := model.NewChunkID(piece.Text)
		if seen[id] {
			continue
		}
		seen[id] = true

		chunks = append(chunks, &model.Chunk{
			ID:                 id,
			DocumentID:         doc.ID,
			Text:               piece.Text,
			Position:           piece.Position,
			TokenCount:         piece.TokenCount,
			Embedding:          vectors[i],
			SessionID:          doc.SessionID,
			PrivacyLevel:       doc.PrivacyLevel,
			PartiallyShareable: doc.PartiallyShareable,
			QualityScore:       doc.QualityScore,
			Metadata:           meta,
			CreatedAt:          now,
		})
		entries = append(entries, &model.VectorEntry{
			ChunkID:   id,
			Embedding: vectors[i],
			SessionID: doc.SessionID,
			Track:     doc.Track,
			CreatedAt: now,
		})
	}
	return chunks, entries
}

// flush makes the staged document visible: vector upsert, then chunk
// metadata, then the indexed mark. A reader never observes a subset of a
// document's chunks; partial failure rolls the landed side back or, when
// rollback fails too, degrades to partially_indexed for reconciliation.
func (uc *IngestUseCase) flush(ctx context.Context, doc *model.Document, chunks []*model.Chunk, entries []*model.VectorEntry) error {
	logger := logging.From(ctx)

	if err := uc.index.Upsert(ctx, entries); err != nil {
		detail := "vector upsert failed: " + err.Error()
		if updateErr := uc.repo.Document().UpdateStatus(ctx, doc.ID, types.DocumentStatusIngesting, detail); updateErr != nil {
			logger.Error("failed to record vector upsert failure",
				logging.ErrAttr(updateErr), model.DocumentIDKey, doc.ID)
		}
		return goerr.Wrap(err, "failed to upsert vectors",
			goerr.V(model.DocumentIDKey, doc.ID))
	}

	if err := uc.repo.Chunk().PutBatch(ctx, chunks); err != nil {
		ids := chunkIDs(chunks)
		if rollbackErr := uc.index.Delete(ctx, ids); rollbackErr != nil {
			return uc.degrade(ctx, doc, 0, len(chunks),
				fmt.Sprintf("chunk metadata write failed (%s) and vector rollback failed (%s)",
					err.Error(), rollbackErr.Error()))
		}
		detail := "chunk metadata write failed, vectors rolled back: " + err.Error()
		if updateErr := uc.repo.Document().UpdateStatus(ctx, doc.ID, types.DocumentStatusIngesting, detail); updateErr != nil {
			logger.Error("failed to record metadata write failure",
				logging.ErrAttr(updateErr), model.DocumentIDKey, doc.ID)
		}
		return goerr.Wrap(err, "failed to store chunk metadata",
			goerr.V(model.DocumentIDKey, doc.ID))
	}

	if err := uc.repo.Document().MarkIndexed(ctx, doc.ID, len(chunks)); err != nil {
		return uc.degrade(ctx, doc, len(chunks), len(chunks),
			"chunks stored but indexed mark failed: "+err.Error())
	}

	return nil
}

// degrade records a partially indexed document and raises the operator
// notification. This path is never silent.
func (uc *IngestUseCase) degrade(ctx context.Context, doc *model.Document, indexed, expected int, detail string) error {
	logger := logging.From(ctx)

	if err := uc.repo.Document().UpdateStatus(ctx, doc.ID, types.DocumentStatusPartiallyIndexed, detail); err != nil {
		logger.Error("failed to mark document partially_indexed",
			logging.ErrAttr(err), model.DocumentIDKey, doc.ID)
	}
	doc.Status = types.DocumentStatusPartiallyIndexed
	doc.StatusDetail = detail

	if uc.notifier.Enabled() {
		notifyDoc := *doc
		async.Dispatch(ctx, func(ctx context.Context) error {
			return uc.notifier.NotifyPartiallyIndexed(ctx, &notifyDoc, indexed, expected)
		})
	}

	return goerr.Wrap(model.ErrPartiallyIndexed, detail,
		goerr.V(model.DocumentIDKey, doc.ID),
		goerr.V("expected_chunks", expected))
}

func (uc *IngestUseCase) archiveRawText(ctx context.Context, doc *model.Document) {
	if !uc.archive.Enabled() {
		return
	}
	id, text := doc.ID, doc.RawText
	async.Dispatch(ctx, func(ctx context.Context) error {
		if err := uc.archive.Put(ctx, id, text); err != nil {
			logging.From(ctx).Warn("raw text archive failed",
				logging.ErrAttr(err), model.DocumentIDKey, id)
		}
		return nil
	})
}

// invalidateCorrelations drops cached correlation sets that reference any
// of the given chunks. Content-addressed IDs mean a re-ingest of identical
// text reuses the ID, so cached sets must not outlive the new embedding.
func (uc *IngestUseCase) invalidateCorrelations(ctx context.Context, ids []model.ChunkID) {
	dropped, err := uc.repo.Correlation().InvalidateByChunks(ctx, ids)
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

// IngestNote ingests a manual note through the standard pipeline. The
// assist agent's ingest tool runs on this.
func (uc *IngestUseCase) IngestNote(ctx context.Context, title, text string, session model.SessionID, privacy types.PrivacyTier) (*model.Document, error) {
	result, err := uc.Ingest(ctx, IngestInput{
		Title:        title,
		Text:         text,
		SourceType:   types.SourceTypeManual,
		SessionID:    session,
		PrivacyLevel: privacy,
	})
	if err != nil {
		return nil, err
	}
	return result.Document, nil
}

// GetDocument retrieves a document record by ID
func (uc *IngestUseCase) GetDocument(ctx context.Context, id model.DocumentID) (*model.Document, error) {
	doc, err := uc.repo.Document().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get document", goerr.V(model.DocumentIDKey, id))
	}
	return doc, nil
}

// DeleteDocument removes a document, the chunks it still owns, their
// vectors, and every cached correlation that referenced them. Vectors go
// first so a failure never leaves unreachable metadata behind orphaned
// index entries.
func (uc *IngestUseCase) DeleteDocument(ctx context.Context, id model.DocumentID) error {
	if _, err := uc.repo.Document().Get(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to load document for deletion",
			goerr.V(model.DocumentIDKey, id))
	}

	owned, err := uc.repo.Chunk().ListByDocument(ctx, id)
	if err != nil {
		return goerr.Wrap(err, "failed to list document chunks",
			goerr.V(model.DocumentIDKey, id))
	}
	ids := chunkIDs(owned)

	if len(ids) > 0 {
		if err := uc.index.Delete(ctx, ids); err != nil {
			return goerr.Wrap(err, "failed to delete vectors",
				goerr.V(model.DocumentIDKey, id))
		}
	}

	deleted, err := uc.repo.Chunk().DeleteByDocument(ctx, id)
	if err != nil {
		return goerr.Wrap(err, "failed to delete chunk metadata",
			goerr.V(model.DocumentIDKey, id))
	}
	uc.invalidateCorrelations(ctx, deleted)

	if err := uc.repo.Document().Delete(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to delete document record",
			goerr.V(model.DocumentIDKey, id))
	}

	logging.From(ctx).Info("document deleted",
		model.DocumentIDKey, id,
		"chunks", len(deleted))
	return nil
}

func chunkIDs(chunks []*model.Chunk) []model.ChunkID {
	ids := make([]model.ChunkID, len(chunks))
	for i, chunk := range chunks {
		ids[i] = chunk.ID
	}
	return ids
}
