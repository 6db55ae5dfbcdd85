package cli

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/govern-lab/mnemosyne/pkg/cli/config"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/usecase"
	"github.com/govern-lab/mnemosyne/pkg/utils/logging"
)

func cmdSync() *cli.Command {
	var owner string
	var repoName string
	var lookback time.Duration
	var sessionID string
	var track string
	var privacyLevel string
	var partiallyShareable bool
	var forumCfg config.Forum
	var pipe pipeline

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "owner",
			Usage:       "Forum repository owner (required)",
			Required:    true,
			Sources:     cli.EnvVars("MNEMOSYNE_FORUM_OWNER"),
			Destination: &owner,
		},
		&cli.StringFlag{
			Name:        "repo",
			Usage:       "Forum repository name (required)",
			Required:    true,
			Sources:     cli.EnvVars("MNEMOSYNE_FORUM_REPO"),
			Destination: &repoName,
		},
		&cli.DurationFlag{
			Name:        "lookback",
			Usage:       "How far back to pull discussions",
			Value:       24 * time.Hour,
			Sources:     cli.EnvVars("MNEMOSYNE_SYNC_LOOKBACK"),
			Destination: &lookback,
		},
		&cli.StringFlag{
			Name:        "session",
			Usage:       "Research session synced documents belong to (required)",
			Required:    true,
			Sources:     cli.EnvVars("MNEMOSYNE_SESSION"),
			Destination: &sessionID,
		},
		&cli.StringFlag{
			Name:        "track",
			Usage:       "Governance track tag for synced documents",
			Destination: &track,
		},
		&cli.StringFlag{
			Name:        "privacy-level",
			Usage:       "Privacy tier for synced documents",
			Value:       string(types.PrivacyTierSelective),
			Destination: &privacyLevel,
		},
		&cli.BoolFlag{
			Name:        "partially-shareable",
			Usage:       "Allow redacted access one tier below the privacy level",
			Destination: &partiallyShareable,
		},
	}
	flags = append(flags, forumCfg.Flags()...)
	flags = append(flags, pipe.Flags()...)

	return &cli.Command{
		Name:  "sync",
		Usage: "Pull forum discussions and ingest them as documents",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			tier, err := types.ParsePrivacyTier(privacyLevel)
			if err != nil {
				return goerr.Wrap(err, "invalid privacy level")
			}

			forumSvc, err := forumCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure forum service")
			}
			if forumSvc == nil {
				return goerr.New("forum sync requires github-app-id, github-app-installation-id and github-app-private-key")
			}

			validation, err := forumSvc.ValidateRepository(ctx, owner, repoName)
			if err != nil {
				return goerr.Wrap(err, "forum repository is not accessible",
					goerr.V("owner", owner), goerr.V("repo", repoName))
			}
			logging.Default().Info("Forum repository validated",
				"owner", owner,
				"repo", repoName,
				"discussions", validation.DiscussionCount)

			rt, err := pipe.configure(ctx, usecase.WithForum(forumSvc))
			if err != nil {
				return err
			}
			defer rt.Close()

			report, syncErr := rt.usecases.Sync.SyncForum(ctx, usecase.SyncInput{
				Owner:              owner,
				Repo:               repoName,
				Since:              time.Now().Add(-lookback),
				SessionID:          model.SessionID(sessionID),
				Track:              track,
				PrivacyLevel:       tier,
				PartiallyShareable: partiallyShareable,
			})
			if report != nil {
				if err := printJSON(sourceReport{
					Fetched:  report.Fetched,
					Ingested: report.Ingested,
					Rejected: report.Rejected,
					Failed:   report.Failed,
				}); err != nil {
					return err
				}
			}
			return syncErr
		},
	}
}

// sourceReport is the printed shape of a forum sync or Notion import run
type sourceReport struct {
	Fetched  int `json:"fetched"`
	Ingested int `json:"ingested"`
	Rejected int `json:"rejected"`
	Failed   int `json:"failed"`
}
