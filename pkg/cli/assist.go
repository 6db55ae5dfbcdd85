package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/usecase"
)

func cmdAssist() *cli.Command {
	var sessionID string
	var tierName string
	var pipe pipeline

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session",
			Usage:       "Session scope for the agent's searches and notes (empty means cross-session)",
			Sources:     cli.EnvVars("MNEMOSYNE_SESSION"),
			Destination: &sessionID,
		},
		&cli.StringFlag{
			Name:        "tier",
			Usage:       "Privacy tier the agent operates at",
			Value:       string(types.PrivacyTierMaximum),
			Destination: &tierName,
		},
	}
	flags = append(flags, pipe.Flags()...)

	return &cli.Command{
		Name:      "assist",
		Aliases:   []string{"a"},
		Usage:     "Run the research assist agent on a single prompt",
		ArgsUsage: "<prompt>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			prompt := c.Args().First()
			if prompt == "" {
				return goerr.New("prompt argument is required")
			}

			tier, err := types.ParsePrivacyTier(tierName)
			if err != nil {
				return goerr.Wrap(err, "invalid tier")
			}

			rt, err := pipe.configure(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			answer, err := rt.usecases.Assist.RunAssist(ctx, usecase.AssistInput{
				Prompt:    prompt,
				SessionID: model.SessionID(sessionID),
				Tier:      tier,
			})
			if err != nil {
				return goerr.Wrap(err, "assist failed")
			}

			fmt.Println(answer)
			return nil
		},
	}
}
