package synthesis

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

// llmGenerator adapts one gollem client into a Generator
type llmGenerator struct {
	name   string
	client gollem.LLMClient
}

// NewLLMGenerator wraps a configured gollem client as a synthesis
// provider. The name identifies the provider in logs and answers.
func NewLLMGenerator(name string, client gollem.LLMClient) Generator {
	return &llmGenerator{name: name, client: client}
}

func (g *llmGenerator) Name() string {
	return g.name
}

// Generate runs one JSON-constrained generation and returns the raw
// response body.
func (g *llmGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	session, err := g.client.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(answerSchema()),
		gollem.WithSessionSystemPrompt(systemPrompt),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(userPrompt))
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content from LLM")
	}
	if len(resp.Texts) == 0 {
		return "", goerr.New("LLM returned no text content")
	}

	return resp.Texts[0], nil
}

// answerSchema constrains the generation to a single answer field
func answerSchema() *gollem.Parameter {
	return &gollem.Parameter{
		Title:       "SynthesizedAnswer",
		Description: "Answer composed from the provided source excerpts",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"answer": {
				Type:        gollem.TypeString,
				Description: "The answer text, grounded in the excerpts",
				Required:    true,
			},
		},
	}
}
