package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	httpctrl "github.com/govern-lab/mnemosyne/pkg/controller/http"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/service/worker"
	"github.com/govern-lab/mnemosyne/pkg/usecase"
	"github.com/govern-lab/mnemosyne/pkg/utils/logging"
)

func cmdServe() *cli.Command {
	var addr string
	var jwtIssuer string
	var jwtAudience string
	var noAuthnSubject string
	var noAuthnTier string
	var disableWorker bool
	var pipe pipeline

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("MNEMOSYNE_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "jwt-issuer",
			Usage:       "OpenID issuer URL for bearer token verification",
			Category:    "Authentication",
			Sources:     cli.EnvVars("MNEMOSYNE_JWT_ISSUER"),
			Destination: &jwtIssuer,
		},
		&cli.StringFlag{
			Name:        "jwt-audience",
			Usage:       "Expected audience claim for bearer tokens",
			Category:    "Authentication",
			Sources:     cli.EnvVars("MNEMOSYNE_JWT_AUDIENCE"),
			Destination: &jwtAudience,
		},
		&cli.StringFlag{
			Name:        "no-authn",
			Usage:       "Skip authentication and run every request as the given subject (development only)",
			Category:    "Authentication",
			Sources:     cli.EnvVars("MNEMOSYNE_NO_AUTHN"),
			Destination: &noAuthnSubject,
		},
		&cli.StringFlag{
			Name:        "no-authn-tier",
			Usage:       "Privacy tier granted in no-authn mode (minimal, selective, high or maximum)",
			Category:    "Authentication",
			Value:       string(types.PrivacyTierMaximum),
			Sources:     cli.EnvVars("MNEMOSYNE_NO_AUTHN_TIER"),
			Destination: &noAuthnTier,
		},
		&cli.BoolFlag{
			Name:        "disable-reconcile-worker",
			Usage:       "Do not run the background reconciliation sweep",
			Sources:     cli.EnvVars("MNEMOSYNE_DISABLE_RECONCILE_WORKER"),
			Destination: &disableWorker,
		},
	}
	flags = append(flags, pipe.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server and reconciliation worker",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			rt, err := pipe.configure(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			authn, err := configureAuthn(jwtIssuer, jwtAudience, noAuthnSubject, noAuthnTier)
			if err != nil {
				return err
			}

			handler := httpctrl.New(rt.usecases, httpctrl.WithAuth(authn))
			server := &http.Server{
				Addr:              addr,
				Handler:           handler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			var reconcileWorker *worker.ReconcileWorker
			if !disableWorker {
				interval := time.Duration(rt.policy.Reconcile.Interval)
				reconcileWorker = worker.NewReconcileWorker(rt.usecases.Reconcile, interval)
				if err := reconcileWorker.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start reconcile worker")
				}
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				if reconcileWorker != nil {
					reconcileWorker.Stop()
				}
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				if reconcileWorker != nil {
					reconcileWorker.Stop()
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}

// configureAuthn resolves the authenticator from the serve flags. No
// flags at all leaves the API anonymous at minimal tier; no-authn takes
// precedence over JWT verification.
func configureAuthn(issuer, audience, noAuthnSubject, noAuthnTier string) (httpctrl.Authenticator, error) {
	if noAuthnSubject != "" {
		tier, err := types.ParsePrivacyTier(noAuthnTier)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid no-authn tier")
		}
		if issuer != "" {
			logging.Default().Warn("--no-authn is set, ignoring --jwt-issuer")
		}
		logging.Default().Warn("Running in no-authn mode (development only)",
			"subject", noAuthnSubject, "tier", tier)
		return usecase.NewNoAuthnUseCase(noAuthnSubject, tier), nil
	}

	if issuer != "" {
		logging.Default().Info("JWT authentication enabled", "issuer", issuer, "audience", audience)
		return usecase.NewAuthUseCase(issuer, audience), nil
	}

	logging.Default().Warn("No authentication configured, requests run as anonymous minimal tier")
	return nil, nil
}
