package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/govern-lab/mnemosyne/pkg/agent/tool"
	"github.com/govern-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

// documentStatusTool reports the processing state of an ingested document
type documentStatusTool struct {
	repo interfaces.Repository
}

func (t *documentStatusTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "document_status",
		Description: "Look up a document's processing status, chunk count, and quality score by document ID.",
		Parameters: map[string]*gollem.Parameter{
			"document_id": {
				Type:        gollem.TypeString,
				Description: "Document ID to look up",
				Required:    true,
			},
		},
	}
}

func (t *documentStatusTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	id, _ := args["document_id"].(string)
	if id == "" {
		return nil, fmt.Errorf("document_id is required")
	}

	tool.Update(ctx, fmt.Sprintf("Checking document: %s", id))

	doc, err := t.repo.Document().Get(ctx, model.DocumentID(id))
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, fmt.Errorf("document not found: %s", id)
		}
		return nil, goerr.Wrap(err, "failed to get document", goerr.V(model.DocumentIDKey, id))
	}

	out := map[string]any{
		"document_id":   string(doc.ID),
		"title":         doc.Title,
		"status":        string(doc.Status),
		"session":       string(doc.SessionID),
		"chunk_count":   doc.ChunkCount,
		"quality_score": doc.QualityScore,
		"created_at":    doc.CreatedAt.Format(time.RFC3339),
	}
	if doc.StatusDetail != "" {
		out["status_detail"] = doc.StatusDetail
	}
	if !doc.IndexedAt.IsZero() {
		out["indexed_at"] = doc.IndexedAt.Format(time.RFC3339)
	}
	return out, nil
}
