package config

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/service/chunker"
	"github.com/govern-lab/mnemosyne/pkg/service/correlator"
	"github.com/govern-lab/mnemosyne/pkg/service/embedding"
	"github.com/govern-lab/mnemosyne/pkg/service/retrieval"
	"github.com/govern-lab/mnemosyne/pkg/service/synthesis"
	"github.com/govern-lab/mnemosyne/pkg/service/validator"
	"github.com/govern-lab/mnemosyne/pkg/service/worker"
	"github.com/govern-lab/mnemosyne/pkg/usecase"
)

// Duration is a time.Duration that reads from a TOML string ("30s", "720h")
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Policy carries the tunable pipeline parameters. Every field has a
// default, so a policy file only needs the values it changes.
type Policy struct {
	Chunking    ChunkingPolicy    `toml:"chunking"`
	Quality     QualityPolicy     `toml:"quality"`
	Retrieval   RetrievalPolicy   `toml:"retrieval"`
	Correlation CorrelationPolicy `toml:"correlation"`
	Providers   ProviderPolicy    `toml:"providers"`
	Reconcile   ReconcilePolicy   `toml:"reconcile"`
}

// ChunkingPolicy controls how document text is cut into windows
type ChunkingPolicy struct {
	Tokenizer      string `toml:"tokenizer"`
	WindowTokens   int    `toml:"window_tokens"`
	OverlapTokens  int    `toml:"overlap_tokens"`
	MinChunkTokens int    `toml:"min_chunk_tokens"`
}

// Validate checks the window geometry
func (c *ChunkingPolicy) Validate() error {
	switch c.Tokenizer {
	case "", "word", "tiktoken":
	default:
		return goerr.Wrap(ErrInvalidTokenizer, "chunking tokenizer is not supported",
			goerr.V("tokenizer", c.Tokenizer))
	}
	if c.WindowTokens <= 0 {
		return goerr.Wrap(ErrInvalidWindow, "window must be positive",
			goerr.V("window_tokens", c.WindowTokens))
	}
	if c.OverlapTokens < 0 || c.OverlapTokens >= c.WindowTokens {
		return goerr.Wrap(ErrInvalidWindow, "overlap must be smaller than the window",
			goerr.V("window_tokens", c.WindowTokens),
			goerr.V("overlap_tokens", c.OverlapTokens))
	}
	if c.MinChunkTokens <= 0 || c.MinChunkTokens > c.WindowTokens {
		return goerr.Wrap(ErrInvalidWindow, "minimum chunk size must fit the window",
			goerr.V("window_tokens", c.WindowTokens),
			goerr.V("min_chunk_tokens", c.MinChunkTokens))
	}
	return nil
}

// QualityPolicy controls ingest quality rejection
type QualityPolicy struct {
	// Threshold is the minimum quality score a document must reach to
	// be indexed. Zero accepts everything.
	Threshold float64 `toml:"threshold"`
}

// Validate checks the rejection threshold
func (q *QualityPolicy) Validate() error {
	if q.Threshold < 0 || q.Threshold > 1 {
		return goerr.Wrap(ErrInvalidThreshold, "quality threshold must be within [0, 1]",
			goerr.V("threshold", q.Threshold))
	}
	return nil
}

// RetrievalPolicy controls candidate ranking
type RetrievalPolicy struct {
	SimilarityWeight float64  `toml:"similarity_weight"`
	RecencyWeight    float64  `toml:"recency_weight"`
	QualityWeight    float64  `toml:"quality_weight"`
	RecencyHalfLife  Duration `toml:"recency_half_life"`
	OverFetchFactor  int      `toml:"over_fetch_factor"`
	KnownTracks      []string `toml:"known_tracks"`
}

// Validate checks the ranking blend
func (r *RetrievalPolicy) Validate() error {
	if r.SimilarityWeight < 0 || r.RecencyWeight < 0 || r.QualityWeight < 0 {
		return goerr.Wrap(ErrInvalidWeights, "ranking weights must not be negative",
			goerr.V("similarity", r.SimilarityWeight),
			goerr.V("recency", r.RecencyWeight),
			goerr.V("quality", r.QualityWeight))
	}
	if r.SimilarityWeight+r.RecencyWeight+r.QualityWeight == 0 {
		return goerr.Wrap(ErrInvalidWeights, "at least one ranking weight must be positive")
	}
	if r.RecencyHalfLife <= 0 {
		return goerr.Wrap(ErrInvalidDuration, "recency half-life must be positive",
			goerr.V("recency_half_life", time.Duration(r.RecencyHalfLife).String()))
	}
	if r.OverFetchFactor < 1 {
		return goerr.Wrap(ErrInvalidPolicy, "over-fetch factor must be at least 1",
			goerr.V("over_fetch_factor", r.OverFetchFactor))
	}

	tracks := make(map[string]bool)
	for _, track := range r.KnownTracks {
		if track == "" {
			return goerr.Wrap(ErrInvalidPolicy, "known track must not be empty")
		}
		if tracks[track] {
			return goerr.Wrap(ErrDuplicateTrack, "known tracks must be unique",
				goerr.V(TrackKey, track))
		}
		tracks[track] = true
	}
	return nil
}

// CorrelationPolicy controls cross-session correlation
type CorrelationPolicy struct {
	Threshold      float64 `toml:"threshold"`
	TopKPerSession int     `toml:"top_k_per_session"`
}

// Validate checks the edge threshold and per-session window
func (c *CorrelationPolicy) Validate() error {
	if c.Threshold <= 0 || c.Threshold > 1 {
		return goerr.Wrap(ErrInvalidThreshold, "correlation threshold must be within (0, 1]",
			goerr.V("threshold", c.Threshold))
	}
	if c.TopKPerSession < 1 {
		return goerr.Wrap(ErrInvalidPolicy, "top-k per session must be at least 1",
			goerr.V("top_k_per_session", c.TopKPerSession))
	}
	return nil
}

// ProviderPolicy controls calls to embedding and generation backends
type ProviderPolicy struct {
	EmbeddingDimension int      `toml:"embedding_dimension"`
	BatchSize          int      `toml:"batch_size"`
	Timeout            Duration `toml:"timeout"`
	RetryBase          Duration `toml:"retry_base"`
	MaxAttempts        int      `toml:"max_attempts"`
}

// Validate checks the provider call parameters
func (p *ProviderPolicy) Validate() error {
	if p.EmbeddingDimension <= 0 {
		return goerr.Wrap(ErrInvalidPolicy, "embedding dimension must be positive",
			goerr.V("embedding_dimension", p.EmbeddingDimension))
	}
	if p.BatchSize <= 0 {
		return goerr.Wrap(ErrInvalidPolicy, "batch size must be positive",
			goerr.V("batch_size", p.BatchSize))
	}
	if p.Timeout <= 0 {
		return goerr.Wrap(ErrInvalidDuration, "provider timeout must be positive",
			goerr.V("timeout", time.Duration(p.Timeout).String()))
	}
	if p.RetryBase <= 0 {
		return goerr.Wrap(ErrInvalidDuration, "retry base must be positive",
			goerr.V("retry_base", time.Duration(p.RetryBase).String()))
	}
	if p.MaxAttempts < 1 {
		return goerr.Wrap(ErrInvalidPolicy, "max attempts must be at least 1",
			goerr.V("max_attempts", p.MaxAttempts))
	}
	return nil
}

// ReconcilePolicy controls the background repair sweep
type ReconcilePolicy struct {
	Interval   Duration `toml:"interval"`
	StaleAfter Duration `toml:"stale_after"`
}

// Validate checks the sweep timing
func (r *ReconcilePolicy) Validate() error {
	if r.Interval <= 0 {
		return goerr.Wrap(ErrInvalidDuration, "reconcile interval must be positive",
			goerr.V("interval", time.Duration(r.Interval).String()))
	}
	if r.StaleAfter <= 0 {
		return goerr.Wrap(ErrInvalidDuration, "stale threshold must be positive",
			goerr.V("stale_after", time.Duration(r.StaleAfter).String()))
	}
	return nil
}

// Validate checks every policy section
func (p *Policy) Validate() error {
	if err := p.Chunking.Validate(); err != nil {
		return goerr.Wrap(err, "invalid policy section", goerr.V(SectionKey, "chunking"))
	}
	if err := p.Quality.Validate(); err != nil {
		return goerr.Wrap(err, "invalid policy section", goerr.V(SectionKey, "quality"))
	}
	if err := p.Retrieval.Validate(); err != nil {
		return goerr.Wrap(err, "invalid policy section", goerr.V(SectionKey, "retrieval"))
	}
	if err := p.Correlation.Validate(); err != nil {
		return goerr.Wrap(err, "invalid policy section", goerr.V(SectionKey, "correlation"))
	}
	if err := p.Providers.Validate(); err != nil {
		return goerr.Wrap(err, "invalid policy section", goerr.V(SectionKey, "providers"))
	}
	if err := p.Reconcile.Validate(); err != nil {
		return goerr.Wrap(err, "invalid policy section", goerr.V(SectionKey, "reconcile"))
	}
	return nil
}

// DefaultPolicy returns the policy applied when no file is configured
func DefaultPolicy() *Policy {
	return &Policy{
		Chunking: ChunkingPolicy{
			Tokenizer:      "word",
			WindowTokens:   chunker.DefaultWindowTokens,
			OverlapTokens:  chunker.DefaultOverlapTokens,
			MinChunkTokens: chunker.DefaultMinChunkTokens,
		},
		Quality: QualityPolicy{
			Threshold: validator.DefaultQualityThreshold,
		},
		Retrieval: RetrievalPolicy{
			SimilarityWeight: retrieval.DefaultWeights().Similarity,
			RecencyWeight:    retrieval.DefaultWeights().Recency,
			QualityWeight:    retrieval.DefaultWeights().Quality,
			RecencyHalfLife:  Duration(retrieval.DefaultRecencyHalfLife),
			OverFetchFactor:  retrieval.DefaultOverFetchFactor,
		},
		Correlation: CorrelationPolicy{
			Threshold:      correlator.DefaultThreshold,
			TopKPerSession: usecase.DefaultTopKPerSession,
		},
		Providers: ProviderPolicy{
			EmbeddingDimension: model.DefaultEmbeddingDimension,
			BatchSize:          embedding.DefaultBatchSize,
			Timeout:            Duration(embedding.DefaultTimeout),
			RetryBase:          Duration(500 * time.Millisecond),
			MaxAttempts:        3,
		},
		Reconcile: ReconcilePolicy{
			Interval:   Duration(worker.DefaultInterval),
			StaleAfter: Duration(usecase.DefaultStaleThreshold),
		},
	}
}

// LoadPolicy reads a policy TOML file over the defaults
func LoadPolicy(path string) (*Policy, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(ErrPolicyNotFound, "failed to read policy file",
			goerr.V(PolicyPathKey, path), goerr.V("cause", err.Error()))
	}

	policy := DefaultPolicy()
	if err := toml.Unmarshal(data, policy); err != nil {
		return nil, goerr.Wrap(err, "failed to parse policy TOML", goerr.V(PolicyPathKey, path))
	}

	if err := policy.Validate(); err != nil {
		return nil, goerr.Wrap(err, "policy validation failed", goerr.V(PolicyPathKey, path))
	}

	return policy, nil
}

// ChunkerConfig returns the chunker geometry this policy selects
func (p *Policy) ChunkerConfig() chunker.Config {
	return chunker.Config{
		WindowTokens:   p.Chunking.WindowTokens,
		OverlapTokens:  p.Chunking.OverlapTokens,
		MinChunkTokens: p.Chunking.MinChunkTokens,
	}
}

// RetrievalOptions returns the ranking options this policy selects
func (p *Policy) RetrievalOptions() []retrieval.Option {
	opts := []retrieval.Option{
		retrieval.WithWeights(retrieval.Weights{
			Similarity: p.Retrieval.SimilarityWeight,
			Recency:    p.Retrieval.RecencyWeight,
			Quality:    p.Retrieval.QualityWeight,
		}),
		retrieval.WithRecencyHalfLife(time.Duration(p.Retrieval.RecencyHalfLife)),
		retrieval.WithOverFetchFactor(p.Retrieval.OverFetchFactor),
	}
	if len(p.Retrieval.KnownTracks) > 0 {
		opts = append(opts, retrieval.WithKnownTracks(p.Retrieval.KnownTracks))
	}
	return opts
}

// EmbeddingOptions returns the provider call options this policy selects
func (p *Policy) EmbeddingOptions() []embedding.Option {
	return []embedding.Option{
		embedding.WithBatchSize(p.Providers.BatchSize),
		embedding.WithTimeout(time.Duration(p.Providers.Timeout)),
		embedding.WithBackoff(time.Duration(p.Providers.RetryBase), p.Providers.MaxAttempts),
	}
}

// SynthesisOptions returns the generation options this policy selects
func (p *Policy) SynthesisOptions() []synthesis.Option {
	return []synthesis.Option{
		synthesis.WithTimeout(time.Duration(p.Providers.Timeout)),
	}
}

// CorrelatorOptions returns the correlation options this policy selects
func (p *Policy) CorrelatorOptions() []correlator.Option {
	return []correlator.Option{
		correlator.WithThreshold(p.Correlation.Threshold),
	}
}

// UseCaseOptions returns the pipeline thresholds this policy selects
func (p *Policy) UseCaseOptions() []usecase.Option {
	return []usecase.Option{
		usecase.WithQualityThreshold(p.Quality.Threshold),
		usecase.WithStaleThreshold(time.Duration(p.Reconcile.StaleAfter)),
		usecase.WithTopKPerSession(p.Correlation.TopKPerSession),
	}
}

// PolicyConfig holds the CLI flag pointing at the policy file
type PolicyConfig struct {
	path string
}

// Flags returns CLI flags for policy configuration
func (x *PolicyConfig) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "policy",
			Usage:       "Path to the policy TOML file (built-in defaults apply when omitted)",
			Sources:     cli.EnvVars("MNEMOSYNE_POLICY"),
			Destination: &x.path,
		},
	}
}

// Path returns the configured policy file path
func (x *PolicyConfig) Path() string {
	return x.path
}

// Configure loads and validates the policy file, or returns the defaults
// when no file is configured
func (x *PolicyConfig) Configure() (*Policy, error) {
	if x.path == "" {
		return DefaultPolicy(), nil
	}
	return LoadPolicy(x.path)
}
