package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/utils/logging"
)

// Client is the embedding surface of an LLM backend. gollem.LLMClient
// satisfies it, and tests substitute a deterministic stub.
type Client interface {
	GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error)
}

// Provider couples a backend with the name it is configured under
type Provider struct {
	Name   string
	Client Client
}

// Defaults for batch geometry and retry
const (
	DefaultBatchSize = 16
	DefaultTimeout   = 30 * time.Second

	defaultBackoffBase = 500 * time.Millisecond
	defaultMaxAttempts = 3
	backoffFactor      = 2
)

// Adapter generates embeddings through an ordered provider list with
// bounded batches, per-call timeouts, and per-item retry when a batch
// fails. Every provider is asked for the same dimension; ingestion and
// query embedding share one adapter so similarity scores stay in a
// single embedding space.
type Adapter struct {
	providers []Provider
	dimension int

	batchSize   int
	timeout     time.Duration
	backoffBase time.Duration
	maxAttempts int
}

// Option is a functional option for Adapter configuration
type Option func(*Adapter)

// WithBatchSize bounds how many texts one provider call carries
func WithBatchSize(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithTimeout bounds each provider call
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithBackoff tunes the per-item retry schedule
func WithBackoff(base time.Duration, maxAttempts int) Option {
	return func(a *Adapter) {
		if base > 0 {
			a.backoffBase = base
		}
		if maxAttempts > 0 {
			a.maxAttempts = maxAttempts
		}
	}
}

// New creates an Adapter over the given providers in priority order
func New(dimension int, providers []Provider, opts ...Option) (*Adapter, error) {
	if dimension <= 0 {
		return nil, goerr.New("embedding dimension must be positive",
			goerr.V("dimension", dimension))
	}
	if len(providers) == 0 {
		return nil, goerr.New("at least one embedding provider is required")
	}
	for _, p := range providers {
		if p.Client == nil {
			return nil, goerr.New("embedding provider has no client",
				goerr.V("provider", p.Name))
		}
	}

	a := &Adapter{
		providers:   providers,
		dimension:   dimension,
		batchSize:   DefaultBatchSize,
		timeout:     DefaultTimeout,
		backoffBase: defaultBackoffBase,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Dimension returns the embedding dimension every provider is held to
func (a *Adapter) Dimension() int {
	return a.dimension
}

// EmbedTexts embeds every text, preserving order. Texts are sent in
// bounded batches; a failed batch degrades to per-item retry with
// exponential backoff before the whole call reports failure.
func (a *Adapter) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += a.batchSize {
		end := start + a.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vectors, err := a.tryProviders(ctx, batch)
		if err != nil {
			logging.From(ctx).Warn("embedding batch failed, retrying per item",
				"batch_start", start,
				"batch_size", len(batch),
				logging.ErrAttr(err))
			vectors, err = a.embedItems(ctx, batch)
			if err != nil {
				return nil, err
			}
		}
		for i, vec := range vectors {
			results[start+i] = vec
		}
	}
	return results, nil
}

// EmbedQuery embeds a single query text
func (a *Adapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := a.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// embedItems retries each text on its own after a batch failure
func (a *Adapter) embedItems(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := a.retryItem(ctx, text)
		if err != nil {
			return nil, goerr.Wrap(model.ErrEmbeddingFailed, "per-item retries exhausted",
				goerr.V("item", i),
				goerr.V("attempts", a.maxAttempts),
				goerr.V("cause", err.Error()))
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (a *Adapter) retryItem(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	backoff := a.backoffBase
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, goerr.Wrap(ctx.Err(), "embedding retry cancelled")
			case <-time.After(backoff):
			}
			backoff *= backoffFactor
		}

		vectors, err := a.tryProviders(ctx, []string{text})
		if err != nil {
			lastErr = err
			continue
		}
		return vectors[0], nil
	}
	return nil, lastErr
}

// tryProviders walks the provider list in priority order until one call
// succeeds
func (a *Adapter) tryProviders(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for _, p := range a.providers {
		vectors, err := a.call(ctx, p, texts)
		if err != nil {
			lastErr = err
			if len(a.providers) > 1 {
				logging.From(ctx).Warn("embedding provider failed, trying next",
					"provider", p.Name,
					logging.ErrAttr(err))
			}
			continue
		}
		return vectors, nil
	}
	return nil, lastErr
}

// call runs one provider call under the adapter timeout and converts the
// response, rejecting vectors that leave the configured embedding space.
func (a *Adapter) call(ctx context.Context, p Provider, texts []string) ([][]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	embeddings, err := p.Client.GenerateEmbedding(callCtx, a.dimension, texts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, goerr.Wrap(model.ErrProviderTimeout, "embedding call timed out",
				goerr.V("provider", p.Name),
				goerr.V("timeout", a.timeout))
		}
		return nil, goerr.Wrap(err, "embedding call failed", goerr.V("provider", p.Name))
	}

	if len(embeddings) != len(texts) {
		return nil, goerr.New("embedding count mismatch",
			goerr.V("provider", p.Name),
			goerr.V("want", len(texts)),
			goerr.V("got", len(embeddings)))
	}

	vectors := make([][]float32, len(embeddings))
	for i, emb := range embeddings {
		if len(emb) != a.dimension {
			return nil, goerr.New("embedding dimension mismatch",
				goerr.V("provider", p.Name),
				goerr.V("want", a.dimension),
				goerr.V("got", len(emb)))
		}
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}
