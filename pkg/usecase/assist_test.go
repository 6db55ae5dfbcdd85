package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"

	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/repository/memory"
	"github.com/govern-lab/mnemosyne/pkg/usecase"
)

// mockLLMSession is a mock gollem Session for testing
type mockLLMSession struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockLLMSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	return s.GenerateContent(ctx, input...)
}

func (s *mockLLMSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return s.GenerateStream(ctx, input...)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	if s.generateContentFn != nil {
		return s.generateContentFn(ctx, input...)
	}
	return &gollem.Response{
		Texts: []string{"The quorum policy requires two thirds of seated delegates."},
	}, nil
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

// mockLLMClient is a mock gollem LLMClient for testing
type mockLLMClient struct {
	newSessionFn func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error)
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	if c.newSessionFn != nil {
		return c.newSessionFn(ctx, options...)
	}
	return &mockLLMSession{}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

func TestRunAssist(t *testing.T) {
	ctx := context.Background()

	t.Run("agent answer is returned as text", func(t *testing.T) {
		uc := newUseCases(t, memory.New(), memory.NewVectorIndex(), &stubEmbedClient{}, nil,
			usecase.WithLLM(&mockLLMClient{}))

		answer, err := uc.Assist.RunAssist(ctx, usecase.AssistInput{
			Prompt:    "What does the quorum policy require?",
			SessionID: testSessionID,
			Tier:      types.PrivacyTierHigh,
		})
		gt.NoError(t, err).Required()
		gt.Value(t, answer).Equal("The quorum policy requires two thirds of seated delegates.")
	})

	t.Run("missing generation client is reported", func(t *testing.T) {
		uc := newUseCases(t, memory.New(), memory.NewVectorIndex(), &stubEmbedClient{}, nil)

		_, err := uc.Assist.RunAssist(ctx, usecase.AssistInput{Prompt: "anything"})
		gt.Error(t, err)
		gt.Value(t, errors.Is(err, usecase.ErrLLMNotConfigured)).Equal(true)
	})

	t.Run("empty prompt is rejected", func(t *testing.T) {
		uc := newUseCases(t, memory.New(), memory.NewVectorIndex(), &stubEmbedClient{}, nil,
			usecase.WithLLM(&mockLLMClient{}))

		_, err := uc.Assist.RunAssist(ctx, usecase.AssistInput{Prompt: "   "})
		gt.Error(t, err)
	})

	t.Run("invalid tier is rejected", func(t *testing.T) {
		uc := newUseCases(t, memory.New(), memory.NewVectorIndex(), &stubEmbedClient{}, nil,
			usecase.WithLLM(&mockLLMClient{}))

		_, err := uc.Assist.RunAssist(ctx, usecase.AssistInput{
			Prompt: "anything",
			Tier:   types.PrivacyTier("secret"),
		})
		gt.Error(t, err)
	})

	t.Run("session failure is wrapped", func(t *testing.T) {
		client := &mockLLMClient{
			newSessionFn: func(_ context.Context, _ ...gollem.SessionOption) (gollem.Session, error) {
				return nil, errors.New("quota exhausted")
			},
		}
		uc := newUseCases(t, memory.New(), memory.NewVectorIndex(), &stubEmbedClient{}, nil,
			usecase.WithLLM(client))

		_, err := uc.Assist.RunAssist(ctx, usecase.AssistInput{Prompt: "anything"})
		gt.Error(t, err)
	})
}

func TestAssistSystemPrompt(t *testing.T) {
	t.Run("scoped session names the session", func(t *testing.T) {
		prompt := usecase.BuildAssistSystemPrompt(usecase.AssistInput{
			SessionID: "session-review",
			Tier:      types.PrivacyTierHigh,
		})
		gt.Value(t, strings.Contains(prompt, "Privacy tier: high")).Equal(true)
		gt.Value(t, strings.Contains(prompt, "Session: session-review")).Equal(true)
		gt.Value(t, strings.Contains(prompt, "cite chunk IDs")).Equal(true)
	})

	t.Run("unscoped session spans all sessions", func(t *testing.T) {
		prompt := usecase.BuildAssistSystemPrompt(usecase.AssistInput{
			Tier: types.PrivacyTierMinimal,
		})
		gt.Value(t, strings.Contains(prompt, "searches span all sessions")).Equal(true)
	})
}
