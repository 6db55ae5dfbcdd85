package synthesis_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/service/synthesis"
	"github.com/m-mizutani/gt"
)

type stubGenerator struct {
	name       string
	response   string
	err        error
	calls      int
	lastSystem string
	lastUser   string
}

func (g *stubGenerator) Name() string {
	return g.name
}

func (g *stubGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	g.calls++
	g.lastSystem = systemPrompt
	g.lastUser = userPrompt
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

// blockingGenerator never answers until the context expires
type blockingGenerator struct {
	name string
}

func (g *blockingGenerator) Name() string {
	return g.name
}

func (g *blockingGenerator) Generate(ctx context.Context, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func answerJSON(text string) string {
	return fmt.Sprintf(`{"answer":%q}`, text)
}

func newResult(id, text string, score float64) *model.RetrievalResult {
	return &model.RetrievalResult{
		Chunk: &model.Chunk{
			ID:        model.ChunkID(id),
			Text:      text,
			SessionID: "session-1",
		},
		SimilarityScore: score,
		WeightedScore:   score,
		Decision:        types.PrivacyDecisionAllow,
		OriginSession:   "session-1",
	}
}

func redactedResult(id, raw, sanitized string, score float64) *model.RetrievalResult {
	result := newResult(id, raw, score)
	result.Decision = types.PrivacyDecisionRedact
	result.SanitizedText = sanitized
	return result
}

func newEngine(t *testing.T, generators []synthesis.Generator, opts ...synthesis.Option) *synthesis.Engine {
	t.Helper()
	engine, err := synthesis.New(generators, opts...)
	gt.NoError(t, err).Required()
	return engine
}

func TestSynthesize(t *testing.T) {
	ctx := context.Background()

	t.Run("detailed mode cites every window result", func(t *testing.T) {
		gen := &stubGenerator{name: "primary", response: answerJSON("The assembly reached consensus on the budget [1][2].")}
		engine := newEngine(t, []synthesis.Generator{gen})

		results := []*model.RetrievalResult{
			newResult("chunk-1", "The assembly approved the participatory budget allocation.", 0.9),
			newResult("chunk-2", "Delegates confirmed the budget schedule for next quarter.", 0.8),
		}

		answer, err := engine.Synthesize(ctx, "What was decided about the budget?", results, types.SynthesisModeDetailed)
		gt.NoError(t, err).Required()
		gt.Value(t, answer.Text).Equal("The assembly reached consensus on the budget [1][2].")
		gt.Value(t, answer.Provider).Equal("primary")
		gt.Value(t, answer.Mode).Equal(types.SynthesisModeDetailed)
		gt.Array(t, answer.Citations).Length(2)
		gt.Value(t, answer.Citations[0].ChunkID).Equal(model.ChunkID("chunk-1"))
		gt.Value(t, answer.Citations[1].ChunkID).Equal(model.ChunkID("chunk-2"))
		gt.Bool(t, answer.Redacted).False()
		gt.Number(t, answer.Confidence).Greater(0)

		gt.Value(t, gen.calls).Equal(1)
		gt.Value(t, strings.Contains(gen.lastUser, "What was decided about the budget?")).Equal(true)
		gt.Value(t, strings.Contains(gen.lastUser, results[0].Chunk.Text)).Equal(true)
		gt.Value(t, strings.Contains(gen.lastUser, results[1].Chunk.Text)).Equal(true)
		gt.Value(t, strings.Contains(gen.lastSystem, "Cover every excerpt")).Equal(true)
	})

	t.Run("summary mode caps citations at three", func(t *testing.T) {
		gen := &stubGenerator{name: "primary", response: answerJSON("Short summary.")}
		engine := newEngine(t, []synthesis.Generator{gen})

		var results []*model.RetrievalResult
		for i := 0; i < 5; i++ {
			results = append(results, newResult(
				fmt.Sprintf("chunk-%d", i),
				fmt.Sprintf("Excerpt number %d about procedure.", i),
				0.9-float64(i)*0.1,
			))
		}

		answer, err := engine.Synthesize(ctx, "Summarize the procedure.", results, types.SynthesisModeSummary)
		gt.NoError(t, err).Required()
		gt.Array(t, answer.Citations).Length(3)
		gt.Value(t, answer.Citations[0].ChunkID).Equal(model.ChunkID("chunk-0"))
		gt.Value(t, strings.Contains(gen.lastSystem, "at most three sentences")).Equal(true)
	})

	t.Run("analytical mode groups excerpts by stance", func(t *testing.T) {
		gen := &stubGenerator{name: "primary", response: answerJSON("Positions diverge on enforcement.")}
		engine := newEngine(t, []synthesis.Generator{gen})

		results := []*model.RetrievalResult{
			newResult("chunk-pro", "Most delegates support the proposal and cite clear benefits.", 0.9),
			newResult("chunk-con", "A minority opposes the draft over enforcement concerns.", 0.8),
			newResult("chunk-bg", "The session opened with a reading of the agenda.", 0.7),
		}

		answer, err := engine.Synthesize(ctx, "Where do positions diverge?", results, types.SynthesisModeAnalytical)
		gt.NoError(t, err).Required()
		gt.Value(t, answer.Mode).Equal(types.SynthesisModeAnalytical)

		gt.Value(t, strings.Contains(gen.lastUser, "Supportive positions")).Equal(true)
		gt.Value(t, strings.Contains(gen.lastUser, "Opposing positions")).Equal(true)
		gt.Value(t, strings.Contains(gen.lastUser, "Neutral background")).Equal(true)
		gt.Value(t, strings.Contains(gen.lastSystem, "Contrast the positions")).Equal(true)
	})

	t.Run("falls back to next provider on failure", func(t *testing.T) {
		primary := &stubGenerator{name: "primary", err: errors.New("quota exceeded")}
		secondary := &stubGenerator{name: "secondary", response: answerJSON("Fallback answer.")}
		engine := newEngine(t, []synthesis.Generator{primary, secondary})

		results := []*model.RetrievalResult{newResult("chunk-1", "Some deliberation text.", 0.9)}
		answer, err := engine.Synthesize(ctx, "What happened?", results, types.SynthesisModeSummary)
		gt.NoError(t, err).Required()
		gt.Value(t, answer.Text).Equal("Fallback answer.")
		gt.Value(t, answer.Provider).Equal("secondary")
		gt.Value(t, primary.calls).Equal(1)
		gt.Value(t, secondary.calls).Equal(1)
	})

	t.Run("malformed response falls through to next provider", func(t *testing.T) {
		primary := &stubGenerator{name: "primary", response: "not json at all"}
		secondary := &stubGenerator{name: "secondary", response: answerJSON("Recovered answer.")}
		engine := newEngine(t, []synthesis.Generator{primary, secondary})

		results := []*model.RetrievalResult{newResult("chunk-1", "Some deliberation text.", 0.9)}
		answer, err := engine.Synthesize(ctx, "What happened?", results, types.SynthesisModeSummary)
		gt.NoError(t, err).Required()
		gt.Value(t, answer.Provider).Equal("secondary")
	})

	t.Run("all providers failing yields ErrSynthesisUnavailable", func(t *testing.T) {
		primary := &stubGenerator{name: "primary", err: errors.New("down")}
		secondary := &stubGenerator{name: "secondary", err: errors.New("also down")}
		engine := newEngine(t, []synthesis.Generator{primary, secondary})

		results := []*model.RetrievalResult{newResult("chunk-1", "Some deliberation text.", 0.9)}
		_, err := engine.Synthesize(ctx, "What happened?", results, types.SynthesisModeSummary)
		gt.Error(t, err).Is(model.ErrSynthesisUnavailable)
		gt.Value(t, primary.calls).Equal(1)
		gt.Value(t, secondary.calls).Equal(1)
	})

	t.Run("timed out providers yield ErrSynthesisUnavailable", func(t *testing.T) {
		engine := newEngine(t,
			[]synthesis.Generator{&blockingGenerator{name: "slow-1"}, &blockingGenerator{name: "slow-2"}},
			synthesis.WithTimeout(10*time.Millisecond),
		)

		results := []*model.RetrievalResult{newResult("chunk-1", "Some deliberation text.", 0.9)}
		_, err := engine.Synthesize(ctx, "What happened?", results, types.SynthesisModeSummary)
		gt.Error(t, err).Is(model.ErrSynthesisUnavailable)
	})

	t.Run("token budget drops lowest ranked results", func(t *testing.T) {
		gen := &stubGenerator{name: "primary", response: answerJSON("Budgeted answer.")}
		engine := newEngine(t, []synthesis.Generator{gen}, synthesis.WithTokenBudget(10))

		results := []*model.RetrievalResult{
			newResult("chunk-top", "one two three four five six", 0.9),
			newResult("chunk-mid", "seven eight nine ten eleven twelve", 0.8),
			newResult("chunk-low", "thirteen fourteen fifteen sixteen", 0.7),
		}

		answer, err := engine.Synthesize(ctx, "What happened?", results, types.SynthesisModeDetailed)
		gt.NoError(t, err).Required()
		gt.Array(t, answer.Citations).Length(1)
		gt.Value(t, answer.Citations[0].ChunkID).Equal(model.ChunkID("chunk-top"))
		gt.Value(t, strings.Contains(gen.lastUser, "one two three")).Equal(true)
		gt.Value(t, strings.Contains(gen.lastUser, "seven eight nine")).Equal(false)
	})

	t.Run("oversized top result is still used", func(t *testing.T) {
		gen := &stubGenerator{name: "primary", response: answerJSON("Answer from one oversized excerpt.")}
		engine := newEngine(t, []synthesis.Generator{gen}, synthesis.WithTokenBudget(3))

		results := []*model.RetrievalResult{
			newResult("chunk-big", "this excerpt alone exceeds the whole budget", 0.9),
			newResult("chunk-next", "never packed", 0.8),
		}

		answer, err := engine.Synthesize(ctx, "What happened?", results, types.SynthesisModeDetailed)
		gt.NoError(t, err).Required()
		gt.Array(t, answer.Citations).Length(1)
		gt.Value(t, answer.Citations[0].ChunkID).Equal(model.ChunkID("chunk-big"))
	})

	t.Run("redacted results contribute sanitized text only", func(t *testing.T) {
		gen := &stubGenerator{name: "primary", response: answerJSON("Answer built from sanitized sources.")}
		engine := newEngine(t, []synthesis.Generator{gen})

		results := []*model.RetrievalResult{
			newResult("chunk-open", "Open minutes of the plenary session.", 0.9),
			redactedResult("chunk-private", "Contact chair@example.org for the raw tally.", "Contact the chair for the raw tally.", 0.8),
		}

		answer, err := engine.Synthesize(ctx, "How is the tally obtained?", results, types.SynthesisModeDetailed)
		gt.NoError(t, err).Required()
		gt.Bool(t, answer.Redacted).True()
		gt.Value(t, strings.Contains(gen.lastUser, "chair@example.org")).Equal(false)
		gt.Value(t, strings.Contains(gen.lastUser, "Contact the chair")).Equal(true)
		gt.Array(t, answer.Citations).Length(2)
		gt.Value(t, strings.Contains(answer.Citations[1].Snippet, "chair@example.org")).Equal(false)
	})

	t.Run("redaction discounts confidence", func(t *testing.T) {
		gen := &stubGenerator{name: "primary", response: answerJSON("Answer.")}
		engine := newEngine(t, []synthesis.Generator{gen})

		open := []*model.RetrievalResult{
			newResult("chunk-1", "First open excerpt.", 0.8),
			newResult("chunk-2", "Second open excerpt.", 0.8),
		}
		withRedaction := []*model.RetrievalResult{
			newResult("chunk-1", "First open excerpt.", 0.8),
			redactedResult("chunk-2", "Second excerpt raw.", "Second excerpt sanitized.", 0.8),
		}

		openAnswer, err := engine.Synthesize(ctx, "What happened?", open, types.SynthesisModeSummary)
		gt.NoError(t, err).Required()
		redactedAnswer, err := engine.Synthesize(ctx, "What happened?", withRedaction, types.SynthesisModeSummary)
		gt.NoError(t, err).Required()

		gt.Number(t, redactedAnswer.Confidence).Less(openAnswer.Confidence)
	})

	t.Run("empty results are rejected", func(t *testing.T) {
		gen := &stubGenerator{name: "primary", response: answerJSON("unused")}
		engine := newEngine(t, []synthesis.Generator{gen})

		_, err := engine.Synthesize(ctx, "What happened?", nil, types.SynthesisModeSummary)
		gt.Error(t, err)
		gt.Value(t, gen.calls).Equal(0)
	})
}

func TestNewEngine(t *testing.T) {
	t.Run("requires at least one provider", func(t *testing.T) {
		_, err := synthesis.New(nil)
		gt.Error(t, err)
	})

	t.Run("rejects nil provider", func(t *testing.T) {
		_, err := synthesis.New([]synthesis.Generator{nil})
		gt.Error(t, err)
	})

	t.Run("rejects non-positive budget", func(t *testing.T) {
		_, err := synthesis.New(
			[]synthesis.Generator{&stubGenerator{name: "p"}},
			synthesis.WithTokenBudget(0),
		)
		gt.Error(t, err)
	})
}
