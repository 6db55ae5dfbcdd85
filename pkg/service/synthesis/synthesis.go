package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/service/chunker"
	"github.com/govern-lab/mnemosyne/pkg/service/stance"
	"github.com/govern-lab/mnemosyne/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const (
	// DefaultTokenBudget caps how many tokens of retrieved text are
	// packed into one generation context.
	DefaultTokenBudget = 4000

	// DefaultTimeout bounds a single provider call
	DefaultTimeout = 30 * time.Second

	// DefaultRedactionPenalty discounts confidence when any contributing
	// result was redacted.
	DefaultRedactionPenalty = 0.85

	summaryMaxCitations = 3
	snippetMaxRunes     = 160

	// corroborationTarget is the result count at which breadth stops
	// raising confidence.
	corroborationTarget = 5.0

	similarityShare = 0.6
	breadthShare    = 0.4
)

// Generator produces one JSON answer body from a system and user
// prompt. Implementations wrap a single configured provider.
type Generator interface {
	Name() string
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// answerResponse is the JSON body every provider must return
type answerResponse struct {
	Answer string `json:"answer"`
}

// Engine composes answers from ranked retrieval results. Providers are
// tried in constructor order and the first usable answer wins.
type Engine struct {
	generators       []Generator
	tokenizer        chunker.Tokenizer
	classifier       stance.Classifier
	tokenBudget      int
	timeout          time.Duration
	redactionPenalty float64
}

// Option configures the synthesis engine
type Option func(*Engine)

// WithTokenBudget overrides the context token budget
func WithTokenBudget(budget int) Option {
	return func(e *Engine) {
		e.tokenBudget = budget
	}
}

// WithTimeout overrides the per-provider call timeout
func WithTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		e.timeout = timeout
	}
}

// WithTokenizer overrides the tokenizer used for budget accounting
func WithTokenizer(tokenizer chunker.Tokenizer) Option {
	return func(e *Engine) {
		e.tokenizer = tokenizer
	}
}

// WithClassifier overrides the stance classifier used by the
// analytical mode.
func WithClassifier(classifier stance.Classifier) Option {
	return func(e *Engine) {
		e.classifier = classifier
	}
}

// WithRedactionPenalty overrides the confidence discount applied when
// redacted results contribute to the answer.
func WithRedactionPenalty(penalty float64) Option {
	return func(e *Engine) {
		e.redactionPenalty = penalty
	}
}

// New creates a synthesis engine over an ordered provider list
func New(generators []Generator, opts ...Option) (*Engine, error) {
	if len(generators) == 0 {
		return nil, goerr.New("at least one synthesis provider is required")
	}
	for i, generator := range generators {
		if generator == nil {
			return nil, goerr.New("synthesis provider must not be nil", goerr.V("index", i))
		}
	}

	engine := &Engine{
		generators:       generators,
		tokenizer:        chunker.NewWordTokenizer(),
		classifier:       stance.NewLexiconClassifier(),
		tokenBudget:      DefaultTokenBudget,
		timeout:          DefaultTimeout,
		redactionPenalty: DefaultRedactionPenalty,
	}
	for _, opt := range opts {
		opt(engine)
	}

	if engine.tokenBudget <= 0 {
		return nil, goerr.New("token budget must be positive", goerr.V("budget", engine.tokenBudget))
	}

	return engine, nil
}

// Synthesize composes one answer from ranked results. Results must
// already be privacy filtered; redacted entries contribute only their
// sanitized text. When every provider fails the caller gets
// ErrSynthesisUnavailable, never a partial answer.
func (e *Engine) Synthesize(ctx context.Context, query string, results []*model.RetrievalResult, mode types.SynthesisMode) (*model.SynthesizedAnswer, error) {
	mode = mode.Normalize()
	if query == "" {
		return nil, goerr.New("query text is required")
	}
	if len(results) == 0 {
		return nil, goerr.New("no retrieval results to synthesize from")
	}

	window := e.contextWindow(results)
	systemPrompt := buildSystemPrompt(mode)
	userPrompt := e.buildUserPrompt(ctx, query, window, mode)

	logger := logging.From(ctx)
	var lastErr error
	for _, generator := range e.generators {
		raw, err := e.generate(ctx, generator, systemPrompt, userPrompt)
		if err != nil {
			lastErr = err
			logger.Warn("synthesis provider failed, trying next",
				"provider", generator.Name(),
				logging.ErrAttr(err))
			continue
		}

		var parsed answerResponse
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			lastErr = goerr.Wrap(err, "malformed synthesis response",
				goerr.V("provider", generator.Name()))
			logger.Warn("synthesis provider returned malformed JSON, trying next",
				"provider", generator.Name(),
				logging.ErrAttr(err))
			continue
		}
		if strings.TrimSpace(parsed.Answer) == "" {
			lastErr = goerr.New("synthesis returned an empty answer",
				goerr.V("provider", generator.Name()))
			continue
		}

		return e.compose(parsed.Answer, window, mode, generator.Name()), nil
	}

	return nil, goerr.Wrap(model.ErrSynthesisUnavailable, "all synthesis providers failed",
		goerr.V("providers", len(e.generators)),
		goerr.V("cause", lastErr.Error()))
}

func (e *Engine) generate(ctx context.Context, generator Generator, systemPrompt, userPrompt string) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := generator.Generate(genCtx, systemPrompt, userPrompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", goerr.Wrap(model.ErrProviderTimeout, "synthesis provider timed out",
				goerr.V("provider", generator.Name()),
				goerr.V("timeout", e.timeout))
		}
		return "", goerr.Wrap(err, "synthesis generation failed",
			goerr.V("provider", generator.Name()))
	}
	return raw, nil
}

// contextWindow keeps the highest ranked results that fit the token
// budget. The top result is always kept so an oversized first hit
// still yields an answer.
func (e *Engine) contextWindow(results []*model.RetrievalResult) []*model.RetrievalResult {
	window := make([]*model.RetrievalResult, 0, len(results))
	used := 0
	for _, result := range results {
		cost := len(e.tokenizer.Tokenize(result.DisplayText()))
		if len(window) > 0 && used+cost > e.tokenBudget {
			break
		}
		window = append(window, result)
		used += cost
	}
	return window
}

func (e *Engine) compose(answer string, window []*model.RetrievalResult, mode types.SynthesisMode, provider string) *model.SynthesizedAnswer {
	redacted := false
	for _, result := range window {
		if result.Decision == types.PrivacyDecisionRedact {
			redacted = true
			break
		}
	}

	limit := len(window)
	if mode == types.SynthesisModeSummary && limit > summaryMaxCitations {
		limit = summaryMaxCitations
	}
	citations := make([]model.Citation, 0, limit)
	for _, result := range window[:limit] {
		citations = append(citations, model.Citation{
			ChunkID: result.Chunk.ID,
			Snippet: snippet(result.DisplayText()),
			Score:   result.WeightedScore,
		})
	}

	return &model.SynthesizedAnswer{
		Text:       answer,
		Citations:  citations,
		Confidence: e.confidence(window, redacted),
		Mode:       mode,
		Provider:   provider,
		Redacted:   redacted,
	}
}

// confidence blends the mean similarity of the context window with how
// many results corroborate the answer. Redacted contributions discount
// the whole answer.
func (e *Engine) confidence(window []*model.RetrievalResult, redacted bool) float64 {
	if len(window) == 0 {
		return 0
	}

	var sum float64
	for _, result := range window {
		sum += result.SimilarityScore
	}
	similarity := sum / float64(len(window))

	breadth := float64(len(window)) / corroborationTarget
	if breadth > 1 {
		breadth = 1
	}

	confidence := similarity*similarityShare + breadth*breadthShare
	if redacted {
		confidence *= e.redactionPenalty
	}
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// snippet trims a citation excerpt to a display length
func snippet(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= snippetMaxRunes {
		return string(runes)
	}
	return string(runes[:snippetMaxRunes])
}

// buildSystemPrompt creates the fixed instruction block for one mode
func buildSystemPrompt(mode types.SynthesisMode) string {
	var sb strings.Builder

	sb.WriteString("You are a research assistant for deliberative governance archives. Compose an answer to the question using only the provided source excerpts.\n\n")
	sb.WriteString("## Instructions:\n\n")
	sb.WriteString("1. Ground every statement in the excerpts. Never state facts the excerpts do not contain.\n")
	sb.WriteString("2. If the excerpts do not answer the question, say so plainly.\n")
	sb.WriteString("3. Refer to excerpts by their bracketed numbers, e.g. [2].\n")

	switch mode {
	case types.SynthesisModeSummary:
		sb.WriteString("4. Answer in at most three sentences, keeping only the most important points.\n")
	case types.SynthesisModeDetailed:
		sb.WriteString("4. Cover every excerpt that bears on the question and cite each one you use.\n")
	case types.SynthesisModeAnalytical:
		sb.WriteString("4. Contrast the positions the excerpts take: where they agree, where they conflict, and what remains open.\n")
	}

	return sb.String()
}

// buildUserPrompt packs the question and the context window. The
// analytical mode presents excerpts grouped by stance.
func (e *Engine) buildUserPrompt(ctx context.Context, query string, window []*model.RetrievalResult, mode types.SynthesisMode) string {
	var sb strings.Builder

	sb.WriteString("## Question:\n\n")
	sb.WriteString(query)
	sb.WriteString("\n\n")

	if mode == types.SynthesisModeAnalytical {
		e.writeGroupedExcerpts(ctx, &sb, window)
	} else {
		writeExcerpts(&sb, window)
	}

	return sb.String()
}

func writeExcerpts(sb *strings.Builder, window []*model.RetrievalResult) {
	sb.WriteString("## Source Excerpts:\n\n")
	for i, result := range window {
		writeExcerpt(sb, i, result)
	}
}

func (e *Engine) writeGroupedExcerpts(ctx context.Context, sb *strings.Builder, window []*model.RetrievalResult) {
	groups := map[stance.Stance][]int{}
	for i, result := range window {
		position, err := e.classifier.Classify(ctx, result.DisplayText())
		if err != nil {
			logging.From(ctx).Warn("stance classification failed, treating as neutral",
				logging.ErrAttr(err))
			position = stance.Neutral
		}
		groups[position] = append(groups[position], i)
	}

	sb.WriteString("## Source Excerpts by Position:\n\n")
	writeGroup(sb, "Supportive positions", groups[stance.Positive], window)
	writeGroup(sb, "Opposing positions", groups[stance.Negative], window)
	writeGroup(sb, "Neutral background", groups[stance.Neutral], window)
}

func writeGroup(sb *strings.Builder, heading string, indexes []int, window []*model.RetrievalResult) {
	if len(indexes) == 0 {
		return
	}
	fmt.Fprintf(sb, "### %s:\n\n", heading)
	for _, i := range indexes {
		writeExcerpt(sb, i, window[i])
	}
}

func writeExcerpt(sb *strings.Builder, index int, result *model.RetrievalResult) {
	fmt.Fprintf(sb, "[%d] (session: %s, score: %.2f)\n", index+1, result.OriginSession, result.WeightedScore)
	sb.WriteString(result.DisplayText())
	sb.WriteString("\n\n")
}
