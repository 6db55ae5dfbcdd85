package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/claude"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gollem/llm/openai"
	"github.com/urfave/cli/v3"

	"github.com/govern-lab/mnemosyne/pkg/service/embedding"
	"github.com/govern-lab/mnemosyne/pkg/service/synthesis"
)

// LLM holds configuration for the gollem backends. Any subset may be
// configured; fallback order is fixed as Gemini, OpenAI, Claude.
type LLM struct {
	geminiProject  string
	geminiLocation string
	openaiAPIKey   string
	claudeAPIKey   string
}

// Flags returns CLI flags for LLM backend configuration
func (x *LLM) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini API",
			Category:    "LLM",
			Sources:     cli.EnvVars("MNEMOSYNE_GEMINI_PROJECT"),
			Destination: &x.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini API",
			Category:    "LLM",
			Value:       "us-central1",
			Sources:     cli.EnvVars("MNEMOSYNE_GEMINI_LOCATION"),
			Destination: &x.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Category:    "LLM",
			Sources:     cli.EnvVars("MNEMOSYNE_OPENAI_API_KEY"),
			Destination: &x.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "claude-api-key",
			Usage:       "Anthropic API key",
			Category:    "LLM",
			Sources:     cli.EnvVars("MNEMOSYNE_CLAUDE_API_KEY"),
			Destination: &x.claudeAPIKey,
		},
	}
}

func (x LLM) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("gemini-project", x.geminiProject),
		slog.String("gemini-location", x.geminiLocation),
		slog.Int("openai-api-key.len", len(x.openaiAPIKey)),
		slog.Int("claude-api-key.len", len(x.claudeAPIKey)),
	)
}

// IsConfigured returns true when at least one backend is configured
func (x *LLM) IsConfigured() bool {
	return x.geminiProject != "" || x.openaiAPIKey != "" || x.claudeAPIKey != ""
}

// Backends returns the names of the configured backends in fallback order
func (x *LLM) Backends() []string {
	var names []string
	if x.geminiProject != "" {
		names = append(names, "gemini")
	}
	if x.openaiAPIKey != "" {
		names = append(names, "openai")
	}
	if x.claudeAPIKey != "" {
		names = append(names, "claude")
	}
	return names
}

// LLMClients carries the configured gollem clients in fallback order
type LLMClients struct {
	clients []namedClient
}

type namedClient struct {
	name   string
	client gollem.LLMClient
}

// Configure creates gollem clients for every configured backend.
// Returns an empty bundle when nothing is configured.
func (x *LLM) Configure(ctx context.Context) (*LLMClients, error) {
	bundle := &LLMClients{}

	if x.geminiProject != "" {
		client, err := gemini.New(ctx, x.geminiProject, x.geminiLocation)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Gemini client")
		}
		bundle.clients = append(bundle.clients, namedClient{name: "gemini", client: client})
	}

	if x.openaiAPIKey != "" {
		client, err := openai.New(ctx, x.openaiAPIKey)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create OpenAI client")
		}
		bundle.clients = append(bundle.clients, namedClient{name: "openai", client: client})
	}

	if x.claudeAPIKey != "" {
		client, err := claude.New(ctx, x.claudeAPIKey)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Claude client")
		}
		bundle.clients = append(bundle.clients, namedClient{name: "claude", client: client})
	}

	return bundle, nil
}

// IsConfigured returns true when at least one client was created
func (c *LLMClients) IsConfigured() bool {
	return len(c.clients) > 0
}

// Primary returns the first configured client, nil when none is
func (c *LLMClients) Primary() gollem.LLMClient {
	if len(c.clients) == 0 {
		return nil
	}
	return c.clients[0].client
}

// EmbeddingProviders returns the clients as an ordered embedding
// provider list
func (c *LLMClients) EmbeddingProviders() []embedding.Provider {
	providers := make([]embedding.Provider, 0, len(c.clients))
	for _, nc := range c.clients {
		providers = append(providers, embedding.Provider{Name: nc.name, Client: nc.client})
	}
	return providers
}

// Generators returns the clients as an ordered synthesis provider list
func (c *LLMClients) Generators() []synthesis.Generator {
	generators := make([]synthesis.Generator, 0, len(c.clients))
	for _, nc := range c.clients {
		generators = append(generators, synthesis.NewLLMGenerator(nc.name, nc.client))
	}
	return generators
}
