package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/govern-lab/mnemosyne/pkg/agent/tool"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

// ingestNoteTool stores an agent-authored note through the standard
// ingestion pipeline
type ingestNoteTool struct {
	ingestor NoteIngestor
	session  model.SessionID
}

func (t *ingestNoteTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "ingest_note",
		Description: "Store a research note in the knowledge base. The note is chunked, embedded, and indexed like any uploaded document.",
		Parameters: map[string]*gollem.Parameter{
			"title": {
				Type:        gollem.TypeString,
				Description: "Note title",
				Required:    true,
			},
			"text": {
				Type:        gollem.TypeString,
				Description: "Note body text",
				Required:    true,
			},
			"session": {
				Type:        gollem.TypeString,
				Description: "Session to store the note under (default: the current session)",
				Required:    false,
			},
			"privacy_level": {
				Type:        gollem.TypeString,
				Description: "Privacy tier for the note: minimal, selective, high, or maximum (default: selective)",
				Required:    false,
			},
		},
	}
}

func (t *ingestNoteTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	title, _ := args["title"].(string)
	text, _ := args["text"].(string)
	if title == "" || text == "" {
		return nil, fmt.Errorf("title and text are required")
	}

	session := t.session
	if v, ok := args["session"].(string); ok && v != "" {
		session = model.SessionID(v)
	}

	var privacy types.PrivacyTier
	if v, ok := args["privacy_level"].(string); ok && v != "" {
		tier, err := types.ParsePrivacyTier(v)
		if err != nil {
			return nil, fmt.Errorf("invalid privacy_level: %s", v)
		}
		privacy = tier
	}

	tool.Update(ctx, fmt.Sprintf("Ingesting note: %s", title))

	doc, err := t.ingestor.IngestNote(ctx, title, text, session, privacy)
	if err != nil {
		if errors.Is(err, model.ErrRejectedLowQuality) {
			return nil, fmt.Errorf("note rejected: quality score below the ingestion threshold")
		}
		return nil, goerr.Wrap(err, "failed to ingest note", goerr.V("title", title))
	}

	return map[string]any{
		"document_id": string(doc.ID),
		"status":      string(doc.Status),
		"chunk_count": doc.ChunkCount,
	}, nil
}
