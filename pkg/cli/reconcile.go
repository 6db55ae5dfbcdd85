package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

func cmdReconcile() *cli.Command {
	var pipe pipeline

	return &cli.Command{
		Name:  "reconcile",
		Usage: "Run one reconciliation sweep over degraded documents",
		Flags: pipe.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			rt, err := pipe.configure(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := rt.usecases.Reconcile.Reconcile(ctx)
			if err != nil {
				return err
			}

			return printJSON(reconcileResponse{
				Scanned:    report.Scanned,
				Recovered:  report.Recovered,
				RolledBack: report.RolledBack,
				Failed:     report.Failed,
			})
		},
	}
}

type reconcileResponse struct {
	Scanned    int `json:"scanned"`
	Recovered  int `json:"recovered"`
	RolledBack int `json:"rolledBack"`
	Failed     int `json:"failed"`
}
