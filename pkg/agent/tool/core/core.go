package core

import (
	"context"
	"fmt"

	"github.com/govern-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/service/correlator"
	"github.com/govern-lab/mnemosyne/pkg/service/retrieval"
	"github.com/m-mizutani/gollem"
)

// NoteIngestor ingests a manual note through the standard document
// pipeline. Implemented by the ingest use case.
type NoteIngestor interface {
	IngestNote(ctx context.Context, title, text string, session model.SessionID, privacy types.PrivacyTier) (*model.Document, error)
}

// New builds the knowledge tools for an assist agent session. The
// requester tier gates every search the agent performs; the session
// scopes searches and note ingestion unless the agent widens them.
func New(repo interfaces.Repository, retrievalEngine *retrieval.Engine, correlatorEngine *correlator.Engine, ingestor NoteIngestor, tier types.PrivacyTier, session model.SessionID) []gollem.Tool {
	return []gollem.Tool{
		&searchKnowledgeTool{engine: retrievalEngine, tier: tier, session: session},
		&correlateSessionsTool{chunks: repo.Chunk(), engine: correlatorEngine},
		&documentStatusTool{repo: repo},
		&ingestNoteTool{ingestor: ingestor, session: session},
	}
}

func extractInt(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%s is required", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("%s must be an integer, got %T", key, v)
	}
}

func extractStrings(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
