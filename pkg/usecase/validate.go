package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/govern-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// validateSessionChunkCap bounds how many chunk rows per session the orphan
// scan examines, so validation never transfers a whole corpus.
const validateSessionChunkCap = 500

// ValidationIssue represents a single inconsistency found during a store
// consistency check
type ValidationIssue struct {
	DocumentID model.DocumentID
	// ChunkID is empty for document-level issues
	ChunkID  model.ChunkID
	Message  string
	Expected string
	Actual   string
}

// ValidationResult holds the results of a store consistency check
type ValidationResult struct {
	// Documents is how many document records were examined
	Documents int
	Issues    []ValidationIssue
}

// HasIssues returns true if there are any validation issues
func (r *ValidationResult) HasIssues() bool {
	return len(r.Issues) > 0
}

// AddIssue adds a validation issue to the result
func (r *ValidationResult) AddIssue(issue ValidationIssue) {
	r.Issues = append(r.Issues, issue)
}

// StoreValidator runs read-only consistency checks over a repository and
// vector index pair. It needs no provider clients, so operator tooling can
// run it against a store without LLM credentials.
type StoreValidator struct {
	repo           interfaces.Repository
	index          interfaces.VectorIndex
	staleThreshold time.Duration
}

// NewStoreValidator creates a store validator. A non-positive stale
// threshold falls back to the default.
func NewStoreValidator(repo interfaces.Repository, index interfaces.VectorIndex, staleThreshold time.Duration) *StoreValidator {
	if staleThreshold <= 0 {
		staleThreshold = DefaultStaleThreshold
	}
	return &StoreValidator{
		repo:           repo,
		index:          index,
		staleThreshold: staleThreshold,
	}
}

// ValidateStore checks that document records, chunk rows and indexed
// vectors agree with each other. It reads only; repairs belong to the
// reconciliation sweep.
func (uc *UseCases) ValidateStore(ctx context.Context) (*ValidationResult, error) {
	return NewStoreValidator(uc.repo, uc.index, uc.staleThreshold).Validate(ctx)
}

// Validate runs every consistency check and collects the issues
func (v *StoreValidator) Validate(ctx context.Context) (*ValidationResult, error) {
	result := &ValidationResult{}

	if err := v.validateIndexed(ctx, result); err != nil {
		return nil, err
	}
	if err := v.validateDegraded(ctx, result); err != nil {
		return nil, err
	}
	if err := v.validateOrphanChunks(ctx, result); err != nil {
		return nil, err
	}

	return result, nil
}

// validateIndexed checks every indexed document against its chunk rows and
// their vectors.
func (v *StoreValidator) validateIndexed(ctx context.Context, result *ValidationResult) error {
	docs, err := v.repo.Document().ListByStatus(ctx, types.DocumentStatusIndexed)
	if err != nil {
		return goerr.Wrap(err, "failed to list indexed documents")
	}

	for _, doc := range docs {
		result.Documents++

		chunks, err := v.repo.Chunk().ListByDocument(ctx, doc.ID)
		if err != nil {
			return goerr.Wrap(err, "failed to list document chunks",
				goerr.V(model.DocumentIDKey, doc.ID))
		}

		if len(chunks) != doc.ChunkCount {
			result.AddIssue(ValidationIssue{
				DocumentID: doc.ID,
				Message:    "indexed document chunk count disagrees with its rows",
				Expected:   fmt.Sprint(doc.ChunkCount),
				Actual:     fmt.Sprint(len(chunks)),
			})
		}
		if len(chunks) == 0 {
			continue
		}

		entries, err := v.index.Fetch(ctx, chunkIDs(chunks))
		if err != nil {
			return goerr.Wrap(err, "failed to fetch indexed vectors",
				goerr.V(model.DocumentIDKey, doc.ID))
		}
		indexed := make(map[model.ChunkID]bool, len(entries))
		for _, entry := range entries {
			indexed[entry.ChunkID] = true
		}
		for _, chunk := range chunks {
			if !indexed[chunk.ID] {
				result.AddIssue(ValidationIssue{
					DocumentID: doc.ID,
					ChunkID:    chunk.ID,
					Message:    "chunk row has no indexed vector",
					Expected:   "vector entry",
					Actual:     "missing",
				})
			}
		}
	}

	return nil
}

// validateDegraded reports documents the reconciliation sweep would pick
// up: partially indexed ones and ingest markers past the stale threshold.
func (v *StoreValidator) validateDegraded(ctx context.Context, result *ValidationResult) error {
	partial, err := v.repo.Document().ListByStatus(ctx, types.DocumentStatusPartiallyIndexed)
	if err != nil {
		return goerr.Wrap(err, "failed to list partially indexed documents")
	}
	for _, doc := range partial {
		result.Documents++
		result.AddIssue(ValidationIssue{
			DocumentID: doc.ID,
			Message:    "document needs reconciliation",
			Expected:   string(types.DocumentStatusIndexed),
			Actual:     string(doc.Status),
		})
	}

	ingesting, err := v.repo.Document().ListByStatus(ctx, types.DocumentStatusIngesting)
	if err != nil {
		return goerr.Wrap(err, "failed to list ingesting documents")
	}
	cutoff := time.Now().Add(-v.staleThreshold)
	for _, doc := range ingesting {
		if !doc.CreatedAt.Before(cutoff) {
			continue
		}
		result.Documents++
		result.AddIssue(ValidationIssue{
			DocumentID: doc.ID,
			Message:    "ingest marker is stale",
			Expected:   string(types.DocumentStatusIndexed),
			Actual:     string(doc.Status),
		})
	}

	return nil
}

// validateOrphanChunks walks each session's newest chunk rows and flags
// rows whose owning document record is gone.
func (v *StoreValidator) validateOrphanChunks(ctx context.Context, result *ValidationResult) error {
	sessions, err := v.repo.Document().ListSessions(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to list sessions")
	}

	seen := make(map[model.DocumentID]bool)
	for _, session := range sessions {
		chunks, err := v.repo.Chunk().ListBySession(ctx, session, validateSessionChunkCap)
		if err != nil {
			return goerr.Wrap(err, "failed to list session chunks",
				goerr.V(model.SessionIDKey, session))
		}
		for _, chunk := range chunks {
			if seen[chunk.DocumentID] {
				continue
			}
			seen[chunk.DocumentID] = true

			_, err := v.repo.Document().Get(ctx, chunk.DocumentID)
			if err == nil {
				continue
			}
			if !errors.Is(err, interfaces.ErrNotFound) {
				return goerr.Wrap(err, "failed to resolve chunk owner",
					goerr.V(model.ChunkIDKey, chunk.ID))
			}
			result.AddIssue(ValidationIssue{
				DocumentID: chunk.DocumentID,
				ChunkID:    chunk.ID,
				Message:    "chunk row references a missing document",
				Expected:   "document record",
				Actual:     "missing",
			})
		}
	}

	return nil
}
