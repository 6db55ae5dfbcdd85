package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/govern-lab/mnemosyne/pkg/service/forum"
)

// Forum holds configuration for the GitHub Discussions forum source
type Forum struct {
	appID          int
	installationID int
	privateKey     string
}

// Flags returns CLI flags for forum source configuration
func (f *Forum) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID for forum sync",
			Category:    "Forum",
			Sources:     cli.EnvVars("MNEMOSYNE_GITHUB_APP_ID"),
			Destination: &f.appID,
		},
		&cli.IntFlag{
			Name:        "github-app-installation-id",
			Usage:       "GitHub App Installation ID",
			Category:    "Forum",
			Sources:     cli.EnvVars("MNEMOSYNE_GITHUB_APP_INSTALLATION_ID"),
			Destination: &f.installationID,
		},
		&cli.StringFlag{
			Name:        "github-app-private-key",
			Usage:       "GitHub App Private Key (PEM string or file path)",
			Category:    "Forum",
			Sources:     cli.EnvVars("MNEMOSYNE_GITHUB_APP_PRIVATE_KEY"),
			Destination: &f.privateKey,
		},
	}
}

// LogAttrs returns log attributes for the forum configuration (key hidden)
func (f *Forum) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("app_id", f.appID),
		slog.Int("installation_id", f.installationID),
	}
}

// IsConfigured returns true if all required GitHub App flags are set
func (f *Forum) IsConfigured() bool {
	return f.appID != 0 && f.installationID != 0 && f.privateKey != ""
}

// Configure creates a forum service from the configured flags. Returns
// nil if not all flags are configured (forum sync will be disabled).
func (f *Forum) Configure() (forum.Service, error) {
	if !f.IsConfigured() {
		return nil, nil
	}

	svc, err := forum.New(int64(f.appID), int64(f.installationID), f.privateKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create forum service")
	}

	return svc, nil
}
