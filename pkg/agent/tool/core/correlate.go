package core

import (
	"context"
	"fmt"

	"github.com/govern-lab/mnemosyne/pkg/agent/tool"
	"github.com/govern-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/service/correlator"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

const defaultCorrelateLimit = 50

// correlateSessionsTool discovers relationships between the knowledge of
// two research sessions
type correlateSessionsTool struct {
	chunks interfaces.ChunkRepository
	engine *correlator.Engine
}

func (t *correlateSessionsTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "correlate_sessions",
		Description: "Compare two research sessions and report supportive, contradictory, and thematic relationships between their chunks.",
		Parameters: map[string]*gollem.Parameter{
			"session_a": {
				Type:        gollem.TypeString,
				Description: "First session ID",
				Required:    true,
			},
			"session_b": {
				Type:        gollem.TypeString,
				Description: "Second session ID",
				Required:    true,
			},
			"top_k": {
				Type:        gollem.TypeInteger,
				Description: "Maximum number of chunks to consider per session (default: 50)",
				Required:    false,
			},
		},
	}
}

func (t *correlateSessionsTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	sessionA, _ := args["session_a"].(string)
	sessionB, _ := args["session_b"].(string)
	if sessionA == "" || sessionB == "" {
		return nil, fmt.Errorf("session_a and session_b are required")
	}
	if sessionA == sessionB {
		return nil, fmt.Errorf("session_a and session_b must be distinct")
	}

	tool.Update(ctx, fmt.Sprintf("Correlating sessions: %s and %s", sessionA, sessionB))

	limit := defaultCorrelateLimit
	if v, err := extractInt(args, "top_k"); err == nil && v > 0 {
		limit = v
	}

	chunksA, err := t.chunks.ListBySession(ctx, model.SessionID(sessionA), limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list chunks", goerr.V(model.SessionIDKey, sessionA))
	}
	chunksB, err := t.chunks.ListBySession(ctx, model.SessionID(sessionB), limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list chunks", goerr.V(model.SessionIDKey, sessionB))
	}

	out := map[string]any{
		"chunk_count_a": len(chunksA),
		"chunk_count_b": len(chunksB),
		"edges":         []map[string]any{},
	}
	if len(chunksA) == 0 || len(chunksB) == 0 {
		return out, nil
	}

	edges, err := t.engine.Correlate(ctx, chunkIDsOf(chunksA), chunkIDsOf(chunksB))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to correlate sessions",
			goerr.V("session_a", sessionA),
			goerr.V("session_b", sessionB))
	}

	items := make([]map[string]any, len(edges))
	for i, edge := range edges {
		items[i] = map[string]any{
			"source_chunk_id": string(edge.SourceChunkID),
			"target_chunk_id": string(edge.TargetChunkID),
			"relation":        string(edge.RelationType),
			"confidence":      edge.Confidence,
			"sessions":        []string{string(edge.SessionPair[0]), string(edge.SessionPair[1])},
		}
	}
	out["edges"] = items
	return out, nil
}

func chunkIDsOf(chunks []*model.Chunk) []model.ChunkID {
	ids := make([]model.ChunkID, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}
