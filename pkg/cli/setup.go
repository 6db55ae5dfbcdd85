package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/govern-lab/mnemosyne/pkg/cli/config"
	"github.com/govern-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/govern-lab/mnemosyne/pkg/service/archive"
	"github.com/govern-lab/mnemosyne/pkg/service/chunker"
	"github.com/govern-lab/mnemosyne/pkg/service/correlator"
	"github.com/govern-lab/mnemosyne/pkg/service/embedding"
	"github.com/govern-lab/mnemosyne/pkg/service/privacy"
	"github.com/govern-lab/mnemosyne/pkg/service/retrieval"
	"github.com/govern-lab/mnemosyne/pkg/service/synthesis"
	"github.com/govern-lab/mnemosyne/pkg/service/validator"
	"github.com/govern-lab/mnemosyne/pkg/usecase"
	"github.com/govern-lab/mnemosyne/pkg/utils/logging"
)

// pipeline bundles the flags every command that runs the knowledge
// pipeline shares: policy, storage backends, LLM backends and the
// optional Slack/GCS side channels.
type pipeline struct {
	policyCfg config.PolicyConfig
	repoCfg   config.Repository
	llmCfg    config.LLM
	slackCfg  config.Slack

	archiveBucket string
}

func (p *pipeline) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "archive-bucket",
			Usage:       "GCS bucket for raw document archival (disabled when empty)",
			Category:    "Storage",
			Sources:     cli.EnvVars("MNEMOSYNE_ARCHIVE_BUCKET"),
			Destination: &p.archiveBucket,
		},
	}
	flags = append(flags, p.policyCfg.Flags()...)
	flags = append(flags, p.repoCfg.Flags()...)
	flags = append(flags, p.llmCfg.Flags()...)
	flags = append(flags, p.slackCfg.Flags()...)
	return flags
}

// runtime is one configured pipeline instance. Close releases the
// storage backends in reverse construction order.
type runtime struct {
	policy   *config.Policy
	clients  *config.LLMClients
	repo     interfaces.Repository
	index    interfaces.VectorIndex
	usecases *usecase.UseCases

	closers []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// configure builds the full service stack from the parsed flags. The
// extra options are appended after the policy-derived ones, so callers
// can attach per-command services (forum, notion).
func (p *pipeline) configure(ctx context.Context, extra ...usecase.Option) (*runtime, error) {
	policy, err := p.policyCfg.Configure()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load policy")
	}

	clients, err := p.llmCfg.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure LLM backends")
	}
	if !clients.IsConfigured() {
		return nil, goerr.New("at least one LLM backend is required (gemini-project, openai-api-key or claude-api-key)")
	}
	logging.Default().Info("LLM backends configured", "backends", p.llmCfg.Backends())

	repo, index, err := p.repoCfg.Configure(ctx, policy.Providers.EmbeddingDimension)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize storage backends")
	}

	rt := &runtime{
		policy:  policy,
		clients: clients,
		repo:    repo,
		index:   index,
		closers: []func(){
			func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			},
			func() {
				if err := index.Close(); err != nil {
					logging.Default().Error("failed to close vector index", "error", err.Error())
				}
			},
		},
	}

	uc, err := p.buildUseCases(ctx, rt, extra)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.usecases = uc

	return rt, nil
}

func (p *pipeline) buildUseCases(ctx context.Context, rt *runtime, extra []usecase.Option) (*usecase.UseCases, error) {
	policy := rt.policy

	tokenizer, err := chunker.NewTokenizer(policy.Chunking.Tokenizer)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve tokenizer")
	}
	chunkSvc, err := chunker.New(tokenizer, policy.ChunkerConfig())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build chunker")
	}

	embedder, err := embedding.New(policy.Providers.EmbeddingDimension,
		rt.clients.EmbeddingProviders(), policy.EmbeddingOptions()...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build embedding adapter")
	}

	filter := privacy.New(rt.repo.Audit())

	retrievalEngine, err := retrieval.New(embedder, rt.index, rt.repo, filter, policy.RetrievalOptions()...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build retrieval engine")
	}

	synthesisEngine, err := synthesis.New(rt.clients.Generators(), policy.SynthesisOptions()...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build synthesis engine")
	}

	correlatorEngine, err := correlator.New(rt.index, rt.repo.Chunk(), rt.repo.Correlation(),
		policy.CorrelatorOptions()...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build correlator")
	}

	opts := policy.UseCaseOptions()
	opts = append(opts, usecase.WithLLM(rt.clients.Primary()))

	notifySvc, err := p.slackCfg.Configure()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure Slack notifications")
	}
	if notifySvc != nil {
		opts = append(opts, usecase.WithNotifier(notifySvc))
		logging.Default().Info("Slack notifications enabled", "slack", p.slackCfg)
	}

	if p.archiveBucket != "" {
		archiveSvc, err := archive.New(ctx, p.archiveBucket)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to configure document archive")
		}
		opts = append(opts, usecase.WithArchive(archiveSvc))
		logging.Default().Info("Document archive enabled", "bucket", p.archiveBucket)
	}

	opts = append(opts, extra...)

	return usecase.New(rt.repo, rt.index, &usecase.Services{
		Embedder:   embedder,
		Chunker:    chunkSvc,
		Validator:  validator.New(),
		Retrieval:  retrievalEngine,
		Synthesis:  synthesisEngine,
		Correlator: correlatorEngine,
	}, opts...)
}
