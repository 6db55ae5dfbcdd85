package cli

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
)

func cmdQuery() *cli.Command {
	var sessionID string
	var crossSession bool
	var tierName string
	var modeName string
	var topK int
	var track string
	var since string
	var until string
	var pipe pipeline

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session",
			Usage:       "Session scope for retrieval (empty with --cross-session searches every session)",
			Sources:     cli.EnvVars("MNEMOSYNE_SESSION"),
			Destination: &sessionID,
		},
		&cli.BoolFlag{
			Name:        "cross-session",
			Usage:       "Merge ranked results from every indexed session",
			Destination: &crossSession,
		},
		&cli.StringFlag{
			Name:        "tier",
			Usage:       "Requester privacy tier (minimal, selective, high or maximum)",
			Value:       string(types.PrivacyTierMaximum),
			Destination: &tierName,
		},
		&cli.StringFlag{
			Name:        "mode",
			Usage:       "Synthesis mode (summary, detailed or analytical)",
			Value:       string(types.SynthesisModeSummary),
			Destination: &modeName,
		},
		&cli.IntFlag{
			Name:        "top-k",
			Usage:       "Number of results to retrieve",
			Value:       model.DefaultTopK,
			Destination: &topK,
		},
		&cli.StringFlag{
			Name:        "track",
			Usage:       "Restrict retrieval to one governance track",
			Destination: &track,
		},
		&cli.StringFlag{
			Name:        "since",
			Usage:       "Only consider chunks created at or after this time (RFC3339)",
			Destination: &since,
		},
		&cli.StringFlag{
			Name:        "until",
			Usage:       "Only consider chunks created before this time (RFC3339)",
			Destination: &until,
		},
	}
	flags = append(flags, pipe.Flags()...)

	return &cli.Command{
		Name:      "query",
		Aliases:   []string{"q"},
		Usage:     "Run one retrieval+synthesis query and print the answer",
		ArgsUsage: "<query text>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			queryText := c.Args().First()
			if queryText == "" {
				return goerr.New("query text argument is required")
			}

			tier, err := types.ParsePrivacyTier(tierName)
			if err != nil {
				return goerr.Wrap(err, "invalid requester tier")
			}
			mode, err := types.ParseSynthesisMode(modeName)
			if err != nil {
				return goerr.Wrap(err, "invalid synthesis mode")
			}
			filters, err := buildFilters(track, since, until)
			if err != nil {
				return err
			}

			rt, err := pipe.configure(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			out, err := rt.usecases.Query.Query(ctx, &model.QueryRequest{
				Query:         queryText,
				RequesterTier: tier,
				SessionID:     model.SessionID(sessionID),
				CrossSession:  crossSession,
				Filters:       filters,
				Mode:          mode,
				TopK:          topK,
			})
			if out != nil && out.NoAccessibleResults {
				return printJSON(queryResponse{
					NoAccessibleResults: true,
					CandidateCount:      out.CandidateCount,
					DeniedCount:         out.DeniedCount,
				})
			}
			if err != nil {
				return err
			}

			resp := queryResponse{
				CandidateCount: out.CandidateCount,
				DeniedCount:    out.DeniedCount,
			}
			if out.Answer != nil {
				resp.Answer = out.Answer.Text
				resp.Citations = out.Answer.Citations
				resp.Confidence = out.Answer.Confidence
				resp.Provider = out.Answer.Provider
				resp.Redacted = out.Answer.Redacted
			}
			return printJSON(resp)
		},
	}
}

type queryResponse struct {
	Answer              string           `json:"answer,omitempty"`
	Citations           []model.Citation `json:"citations,omitempty"`
	Confidence          float64          `json:"confidence"`
	Provider            string           `json:"provider,omitempty"`
	Redacted            bool             `json:"redacted,omitempty"`
	NoAccessibleResults bool             `json:"noAccessibleResults,omitempty"`
	CandidateCount      int              `json:"candidateCount"`
	DeniedCount         int              `json:"deniedCount"`
}

// buildFilters assembles retrieval filters from the optional flag values
func buildFilters(track, since, until string) (*model.RetrievalFilters, error) {
	if track == "" && since == "" && until == "" {
		return nil, nil
	}

	filters := &model.RetrievalFilters{Track: track}
	if since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid since timestamp", goerr.V("since", since))
		}
		filters.Since = t
	}
	if until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid until timestamp", goerr.V("until", until))
		}
		filters.Until = t
	}
	return filters, nil
}
