package embedding_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/service/embedding"
)

// stubClient returns deterministic vectors and can fail a fixed number of
// leading calls.
type stubClient struct {
	failures   int
	calls      int
	batchSizes []int
}

func (s *stubClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	s.calls++
	s.batchSizes = append(s.batchSizes, len(input))
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("provider unavailable")
	}

	out := make([][]float64, len(input))
	for i, text := range input {
		vec := make([]float64, dimension)
		vec[0] = float64(len(text))
		out[i] = vec
	}
	return out, nil
}

// shortClient returns vectors of the wrong dimension
type shortClient struct{}

func (s *shortClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	out := make([][]float64, len(input))
	for i := range input {
		out[i] = make([]float64, dimension/2)
	}
	return out, nil
}

// blockingClient never answers before the call deadline
type blockingClient struct{}

func (b *blockingClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

const testDimension = 8

func newAdapter(t *testing.T, client embedding.Client, opts ...embedding.Option) *embedding.Adapter {
	t.Helper()
	adapter, err := embedding.New(testDimension, []embedding.Provider{
		{Name: "stub", Client: client},
	}, opts...)
	gt.NoError(t, err).Required()
	return adapter
}

func TestEmbedTexts(t *testing.T) {
	ctx := context.Background()

	t.Run("texts are embedded in bounded batches", func(t *testing.T) {
		stub := &stubClient{}
		adapter := newAdapter(t, stub)

		texts := make([]string, 40)
		for i := range texts {
			texts[i] = "text"
		}

		vectors, err := adapter.EmbedTexts(ctx, texts)
		gt.NoError(t, err).Required()
		gt.Array(t, vectors).Length(40)
		for _, vec := range vectors {
			gt.Value(t, len(vec)).Equal(testDimension)
		}
		gt.Value(t, stub.batchSizes).Equal([]int{16, 16, 8})
	})

	t.Run("batch failure degrades to per-item retry", func(t *testing.T) {
		stub := &stubClient{failures: 1}
		adapter := newAdapter(t, stub, embedding.WithBackoff(time.Millisecond, 3))

		vectors, err := adapter.EmbedTexts(ctx, []string{"one", "two", "three"})
		gt.NoError(t, err).Required()
		gt.Array(t, vectors).Length(3)
		gt.Value(t, stub.batchSizes).Equal([]int{3, 1, 1, 1})
	})

	t.Run("exhausted retries surface embedding failure", func(t *testing.T) {
		stub := &stubClient{failures: 100}
		adapter := newAdapter(t, stub, embedding.WithBackoff(time.Millisecond, 2))

		_, err := adapter.EmbedTexts(ctx, []string{"one"})
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, model.ErrEmbeddingFailed)).True()
	})

	t.Run("fallback provider serves when the primary fails", func(t *testing.T) {
		primary := &stubClient{failures: 100}
		secondary := &stubClient{}
		adapter, err := embedding.New(testDimension, []embedding.Provider{
			{Name: "primary", Client: primary},
			{Name: "secondary", Client: secondary},
		})
		gt.NoError(t, err).Required()

		vectors, err := adapter.EmbedTexts(ctx, []string{"one", "two"})
		gt.NoError(t, err).Required()
		gt.Array(t, vectors).Length(2)
		gt.Value(t, primary.calls).Equal(1)
		gt.Value(t, secondary.calls).Equal(1)
	})

	t.Run("wrong dimension vectors are rejected", func(t *testing.T) {
		adapter := newAdapter(t, &shortClient{}, embedding.WithBackoff(time.Millisecond, 2))

		_, err := adapter.EmbedTexts(ctx, []string{"one"})
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, model.ErrEmbeddingFailed)).True()
	})

	t.Run("blocked provider fails within the call timeout", func(t *testing.T) {
		adapter := newAdapter(t, &blockingClient{},
			embedding.WithTimeout(10*time.Millisecond),
			embedding.WithBackoff(time.Millisecond, 1))

		_, err := adapter.EmbedTexts(ctx, []string{"one"})
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, model.ErrEmbeddingFailed)).True()
	})

	t.Run("no texts is a no-op", func(t *testing.T) {
		adapter := newAdapter(t, &stubClient{})
		vectors, err := adapter.EmbedTexts(ctx, nil)
		gt.NoError(t, err)
		gt.Array(t, vectors).Length(0)
	})
}

func TestEmbedQuery(t *testing.T) {
	ctx := context.Background()
	adapter := newAdapter(t, &stubClient{})

	vec, err := adapter.EmbedQuery(ctx, "what did the committee decide")
	gt.NoError(t, err).Required()
	gt.Value(t, len(vec)).Equal(testDimension)
}

func TestNewAdapter(t *testing.T) {
	t.Run("dimension must be positive", func(t *testing.T) {
		_, err := embedding.New(0, []embedding.Provider{{Name: "stub", Client: &stubClient{}}})
		gt.Error(t, err)
	})

	t.Run("at least one provider is required", func(t *testing.T) {
		_, err := embedding.New(testDimension, nil)
		gt.Error(t, err)
	})

	t.Run("providers must carry a client", func(t *testing.T) {
		_, err := embedding.New(testDimension, []embedding.Provider{{Name: "empty"}})
		gt.Error(t, err)
	})
}
