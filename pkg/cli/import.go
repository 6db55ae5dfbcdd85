package cli

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/service/notion"
	"github.com/govern-lab/mnemosyne/pkg/usecase"
)

func cmdImport() *cli.Command {
	var notionToken string
	var pageID string
	var databaseID string
	var lookback time.Duration
	var sessionID string
	var track string
	var privacyLevel string
	var partiallyShareable bool
	var pipe pipeline

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "notion-api-token",
			Usage:       "Notion API token (required)",
			Required:    true,
			Sources:     cli.EnvVars("MNEMOSYNE_NOTION_API_TOKEN"),
			Destination: &notionToken,
		},
		&cli.StringFlag{
			Name:        "page-id",
			Usage:       "Notion page to import (mutually exclusive with --database-id)",
			Destination: &pageID,
		},
		&cli.StringFlag{
			Name:        "database-id",
			Usage:       "Notion database to import recently edited pages from",
			Destination: &databaseID,
		},
		&cli.DurationFlag{
			Name:        "lookback",
			Usage:       "How far back to pull edited pages in database mode",
			Value:       24 * time.Hour,
			Sources:     cli.EnvVars("MNEMOSYNE_IMPORT_LOOKBACK"),
			Destination: &lookback,
		},
		&cli.StringFlag{
			Name:        "session",
			Usage:       "Research session imported documents belong to (required)",
			Required:    true,
			Sources:     cli.EnvVars("MNEMOSYNE_SESSION"),
			Destination: &sessionID,
		},
		&cli.StringFlag{
			Name:        "track",
			Usage:       "Governance track tag for imported documents",
			Destination: &track,
		},
		&cli.StringFlag{
			Name:        "privacy-level",
			Usage:       "Privacy tier for imported documents",
			Value:       string(types.PrivacyTierSelective),
			Destination: &privacyLevel,
		},
		&cli.BoolFlag{
			Name:        "partially-shareable",
			Usage:       "Allow redacted access one tier below the privacy level",
			Destination: &partiallyShareable,
		},
	}
	flags = append(flags, pipe.Flags()...)

	return &cli.Command{
		Name:  "import",
		Usage: "Import Notion pages and ingest them as documents",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if (pageID == "") == (databaseID == "") {
				return goerr.New("exactly one of --page-id or --database-id is required")
			}

			tier, err := types.ParsePrivacyTier(privacyLevel)
			if err != nil {
				return goerr.Wrap(err, "invalid privacy level")
			}

			notionSvc, err := notion.New(notionToken)
			if err != nil {
				return goerr.Wrap(err, "failed to configure notion service")
			}

			rt, err := pipe.configure(ctx, usecase.WithNotion(notionSvc))
			if err != nil {
				return err
			}
			defer rt.Close()

			input := usecase.ImportInput{
				SessionID:          model.SessionID(sessionID),
				Track:              track,
				PrivacyLevel:       tier,
				PartiallyShareable: partiallyShareable,
			}

			if pageID != "" {
				result, importErr := rt.usecases.Import.ImportPage(ctx, pageID, input)
				if result != nil && result.Document != nil {
					if err := printJSON(ingestResponse{
						DocumentID:     string(result.Document.ID),
						Status:         string(result.Document.Status),
						QualityScore:   result.Document.QualityScore,
						ChunkCount:     result.ChunkCount,
						RejectedReason: result.RejectedReason,
					}); err != nil {
						return err
					}
				}
				return importErr
			}

			report, importErr := rt.usecases.Import.ImportDatabase(ctx, databaseID, time.Now().Add(-lookback), input)
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
			return importErr
		},
	}
}
