package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/govern-lab/mnemosyne/pkg/service/notify"
)

// Slack holds configuration for outbound operator notifications
type Slack struct {
	botToken string
	channel  string
}

// Flags returns CLI flags for Slack notification configuration
func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack Bot User OAuth Token for operator notifications",
			Category:    "Slack",
			Sources:     cli.EnvVars("MNEMOSYNE_SLACK_BOT_TOKEN"),
			Destination: &x.botToken,
		},
		&cli.StringFlag{
			Name:        "slack-channel",
			Usage:       "Slack channel for operator notifications",
			Category:    "Slack",
			Sources:     cli.EnvVars("MNEMOSYNE_SLACK_CHANNEL"),
			Destination: &x.channel,
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("bot-token.len", len(x.botToken)),
		slog.String("channel", x.channel),
	)
}

// IsConfigured checks if Slack notification configuration is complete
func (x *Slack) IsConfigured() bool {
	return x.botToken != "" && x.channel != ""
}

// Configure creates a notification service from the configured flags.
// Returns nil when unconfigured; the token without a channel (or the
// reverse) is an error rather than a silent no-op.
func (x *Slack) Configure() (*notify.Service, error) {
	if x.botToken == "" && x.channel == "" {
		return nil, nil
	}
	if !x.IsConfigured() {
		return nil, goerr.New("slack notifications need both --slack-bot-token and --slack-channel")
	}

	svc, err := notify.New(x.botToken, x.channel)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create notification service")
	}

	return svc, nil
}
