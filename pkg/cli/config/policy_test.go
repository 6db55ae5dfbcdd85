package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/govern-lab/mnemosyne/pkg/cli/config"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.toml")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultPolicy(t *testing.T) {
	policy := config.DefaultPolicy()
	gt.NoError(t, policy.Validate())

	gt.Value(t, policy.Chunking.WindowTokens).Equal(500)
	gt.Value(t, policy.Chunking.OverlapTokens).Equal(50)
	gt.Value(t, policy.Chunking.MinChunkTokens).Equal(50)
	gt.Value(t, policy.Quality.Threshold).Equal(0.4)
	gt.Value(t, policy.Retrieval.OverFetchFactor).Equal(3)
	gt.Value(t, policy.Correlation.Threshold).Equal(0.75)
	gt.Value(t, policy.Providers.BatchSize).Equal(16)
	gt.Value(t, time.Duration(policy.Providers.Timeout)).Equal(30 * time.Second)
}

func TestLoadPolicy(t *testing.T) {
	t.Run("overrides merge over defaults", func(t *testing.T) {
		path := writePolicy(t, `
[chunking]
window_tokens = 200
overlap_tokens = 20
min_chunk_tokens = 30

[retrieval]
similarity_weight = 0.5
recency_weight = 0.3
quality_weight = 0.2
known_tracks = ["plenary", "workshop"]

[providers]
timeout = "10s"
`)
		policy, err := config.LoadPolicy(path)
		gt.NoError(t, err).Required()

		gt.Value(t, policy.Chunking.WindowTokens).Equal(200)
		gt.Value(t, policy.Retrieval.SimilarityWeight).Equal(0.5)
		gt.Value(t, policy.Retrieval.KnownTracks).Equal([]string{"plenary", "workshop"})
		gt.Value(t, time.Duration(policy.Providers.Timeout)).Equal(10 * time.Second)

		// untouched sections keep their defaults
		gt.Value(t, policy.Quality.Threshold).Equal(0.4)
		gt.Value(t, policy.Correlation.Threshold).Equal(0.75)
	})

	t.Run("missing file is ErrPolicyNotFound", func(t *testing.T) {
		_, err := config.LoadPolicy(filepath.Join(t.TempDir(), "absent.toml"))
		gt.Error(t, err)
		gt.Value(t, errors.Is(err, config.ErrPolicyNotFound)).Equal(true)
	})

	t.Run("overlap wider than window is rejected", func(t *testing.T) {
		path := writePolicy(t, `
[chunking]
window_tokens = 100
overlap_tokens = 100
`)
		_, err := config.LoadPolicy(path)
		gt.Error(t, err)
		gt.Value(t, errors.Is(err, config.ErrInvalidWindow)).Equal(true)
	})

	t.Run("correlation threshold above one is rejected", func(t *testing.T) {
		path := writePolicy(t, `
[correlation]
threshold = 1.5
`)
		_, err := config.LoadPolicy(path)
		gt.Error(t, err)
		gt.Value(t, errors.Is(err, config.ErrInvalidThreshold)).Equal(true)
	})

	t.Run("duplicate known tracks are rejected", func(t *testing.T) {
		path := writePolicy(t, `
[retrieval]
known_tracks = ["plenary", "plenary"]
`)
		_, err := config.LoadPolicy(path)
		gt.Error(t, err)
		gt.Value(t, errors.Is(err, config.ErrDuplicateTrack)).Equal(true)
	})

	t.Run("unknown tokenizer is rejected", func(t *testing.T) {
		path := writePolicy(t, `
[chunking]
tokenizer = "sentencepiece"
`)
		_, err := config.LoadPolicy(path)
		gt.Error(t, err)
		gt.Value(t, errors.Is(err, config.ErrInvalidTokenizer)).Equal(true)
	})
}
