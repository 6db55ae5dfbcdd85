package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/govern-lab/mnemosyne/pkg/agent/tool/core"
	"github.com/govern-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/service/correlator"
	"github.com/govern-lab/mnemosyne/pkg/service/retrieval"
	"github.com/govern-lab/mnemosyne/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

// ErrLLMNotConfigured is returned when no generation client is configured
var ErrLLMNotConfigured = goerr.New("generation client is not configured")

// AssistUseCase runs a single-prompt agent session over the knowledge
// base. The agent is one entry point over the same use cases; it adds no
// orchestration of its own.
type AssistUseCase struct {
	repo       interfaces.Repository
	llmClient  gollem.LLMClient
	retrieval  *retrieval.Engine
	correlator *correlator.Engine
	ingest     *IngestUseCase
}

// NewAssistUseCase creates a new AssistUseCase instance
func NewAssistUseCase(repo interfaces.Repository, llmClient gollem.LLMClient, retrievalEngine *retrieval.Engine, correlatorEngine *correlator.Engine, ingest *IngestUseCase) *AssistUseCase {
	return &AssistUseCase{
		repo:       repo,
		llmClient:  llmClient,
		retrieval:  retrievalEngine,
		correlator: correlatorEngine,
		ingest:     ingest,
	}
}

// AssistInput represents input for one assist session
type AssistInput struct {
	Prompt string
	// SessionID scopes searches and note ingestion; empty means
	// cross-session.
	SessionID model.SessionID
	// Tier is the requester's clearance; empty falls back to minimal
	Tier types.PrivacyTier
}

// RunAssist executes the agent with the knowledge tools and returns its
// final text. Every tool call is logged through the middleware.
func (uc *AssistUseCase) RunAssist(ctx context.Context, input AssistInput) (string, error) {
	if uc.llmClient == nil {
		return "", ErrLLMNotConfigured
	}
	if strings.TrimSpace(input.Prompt) == "" {
		return "", goerr.New("prompt is required")
	}
	if input.Tier == "" {
		input.Tier = types.PrivacyTierMinimal
	}
	if !input.Tier.IsValid() {
		return "", goerr.New("invalid requester tier", goerr.V("tier", input.Tier))
	}

	logger := logging.From(ctx)
	tools := core.New(uc.repo, uc.retrieval, uc.correlator, uc.ingest, input.Tier, input.SessionID)

	agent := gollem.New(uc.llmClient,
		gollem.WithSystemPrompt(buildAssistSystemPrompt(input)),
		gollem.WithTools(tools...),
		gollem.WithToolMiddleware(
			func(next gollem.ToolHandler) gollem.ToolHandler {
				return func(ctx context.Context, req *gollem.ToolExecRequest) (*gollem.ToolExecResponse, error) {
					logger.Info("agent tool call", "tool", req.Tool.Name)
					resp, err := next(ctx, req)
					if resp != nil && resp.Error != nil {
						logger.Warn("agent tool failed",
							"tool", req.Tool.Name,
							logging.ErrAttr(resp.Error))
					}
					return resp, err
				}
			},
		),
	)

	resp, err := agent.Execute(ctx, gollem.Text(input.Prompt))
	if err != nil {
		return "", goerr.Wrap(err, "failed to execute assist agent")
	}

	return strings.Join(resp.Texts, "\n"), nil
}

func buildAssistSystemPrompt(input AssistInput) string {
	var sb strings.Builder
	sb.WriteString("You are a research assistant over a governance research knowledge base.\n")
	sb.WriteString("Use the provided tools to search indexed documents, compare sessions, check document status, and record notes.\n\n")
	sb.WriteString("## Instructions:\n")
	sb.WriteString("1. Ground every claim in tool results; cite chunk IDs when you quote or summarize retrieved text.\n")
	sb.WriteString("2. If a search returns nothing accessible, say so plainly instead of speculating.\n")
	sb.WriteString("3. Never reveal or restate redacted content beyond the sanitized excerpt the tools return.\n\n")
	sb.WriteString("## Requester:\n")
	fmt.Fprintf(&sb, "- Privacy tier: %s\n", input.Tier)
	if input.SessionID != "" {
		fmt.Fprintf(&sb, "- Session: %s\n", input.SessionID)
	} else {
		sb.WriteString("- Session: none (searches span all sessions)\n")
	}
	return sb.String()
}
