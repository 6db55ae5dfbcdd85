package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/govern-lab/mnemosyne/pkg/cli/config"
	"github.com/govern-lab/mnemosyne/pkg/usecase"
	"github.com/govern-lab/mnemosyne/pkg/utils/logging"
)

func cmdValidate() *cli.Command {
	var checkStore bool
	var policyCfg config.PolicyConfig
	var llmCfg config.LLM
	var repoCfg config.Repository

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "check-store",
			Usage:       "Also run a read-only consistency check over the configured store",
			Destination: &checkStore,
		},
	}
	flags = append(flags, policyCfg.Flags()...)
	flags = append(flags, llmCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate policy and provider configuration, optionally check store consistency",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			policy, err := policyCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "policy validation failed")
			}
			logger.Info("Policy validation passed",
				"path", policyCfg.Path(),
				"window_tokens", policy.Chunking.WindowTokens,
				"quality_threshold", policy.Quality.Threshold,
				"correlation_threshold", policy.Correlation.Threshold,
				"embedding_dimension", policy.Providers.EmbeddingDimension,
			)

			if llmCfg.IsConfigured() {
				logger.Info("LLM backends configured", "backends", llmCfg.Backends())
			} else {
				logger.Warn("No LLM backend configured; serve and the pipeline commands will refuse to start")
			}

			if !checkStore {
				return nil
			}

			// The consistency check is read-only and needs no provider
			// clients, so it runs against the bare store.
			repo, index, err := repoCfg.Configure(ctx, policy.Providers.EmbeddingDimension)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize storage backends")
			}
			defer func() {
				if err := index.Close(); err != nil {
					logger.Error("failed to close vector index", "error", err.Error())
				}
				if err := repo.Close(); err != nil {
					logger.Error("failed to close repository", "error", err.Error())
				}
			}()

			sv := usecase.NewStoreValidator(repo, index, time.Duration(policy.Reconcile.StaleAfter))
			result, err := sv.Validate(ctx)
			if err != nil {
				return goerr.Wrap(err, "store consistency check failed")
			}

			if result.HasIssues() {
				for _, issue := range result.Issues {
					logger.Warn("Store consistency issue found",
						"document_id", issue.DocumentID,
						"chunk_id", issue.ChunkID,
						"message", issue.Message,
						"expected", issue.Expected,
						"actual", issue.Actual,
					)
				}
				return fmt.Errorf("store consistency check found %d issue(s)", len(result.Issues))
			}

			logger.Info("Store consistency check passed", "documents", result.Documents)
			return nil
		},
	}
}
