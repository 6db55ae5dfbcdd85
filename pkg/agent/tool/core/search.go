package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/govern-lab/mnemosyne/pkg/agent/tool"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/service/retrieval"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

const defaultSearchLimit = 5

// searchKnowledgeTool retrieves ranked, privacy-filtered chunks for a query
type searchKnowledgeTool struct {
	engine  *retrieval.Engine
	tier    types.PrivacyTier
	session model.SessionID
}

func (t *searchKnowledgeTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "search_knowledge",
		Description: "Search the knowledge base for chunks relevant to the query. Results are ranked and already filtered to what the requester's privacy tier may see.",
		Parameters: map[string]*gollem.Parameter{
			"query": {
				Type:        gollem.TypeString,
				Description: "Search query text",
				Required:    true,
			},
			"limit": {
				Type:        gollem.TypeInteger,
				Description: "Maximum number of results to return (default: 5)",
				Required:    false,
			},
			"sessions": {
				Type:        gollem.TypeArray,
				Description: "Restrict the search to these session IDs",
				Required:    false,
				Items: &gollem.Parameter{
					Type: gollem.TypeString,
				},
			},
			"cross_session": {
				Type:        gollem.TypeBoolean,
				Description: "Search every indexed session instead of the current one",
				Required:    false,
			},
		},
	}
}

func (t *searchKnowledgeTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	tool.Update(ctx, fmt.Sprintf("Searching knowledge: %s", query))

	limit := defaultSearchLimit
	if v, err := extractInt(args, "limit"); err == nil && v > 0 {
		limit = v
	}
	crossSession, _ := args["cross_session"].(bool)

	req := &model.QueryRequest{
		Query:         query,
		RequesterTier: t.tier,
		SessionID:     t.session,
		CrossSession:  crossSession,
		TopK:          limit,
	}
	if sessions := extractStrings(args, "sessions"); len(sessions) > 0 {
		filters := &model.RetrievalFilters{}
		for _, s := range sessions {
			filters.Sessions = append(filters.Sessions, model.SessionID(s))
		}
		req.Filters = filters
	}

	result, err := t.engine.Retrieve(ctx, uuid.New().String(), req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search knowledge",
			goerr.V("query", query))
	}

	items := make([]map[string]any, len(result.Results))
	for i, r := range result.Results {
		items[i] = map[string]any{
			"chunk_id":    string(r.Chunk.ID),
			"document_id": string(r.Chunk.DocumentID),
			"session":     string(r.OriginSession),
			"score":       r.WeightedScore,
			"similarity":  r.SimilarityScore,
			"decision":    r.Decision.String(),
			"text":        r.DisplayText(),
		}
	}
	return map[string]any{
		"results": items,
		"denied":  result.DeniedCount,
	}, nil
}
