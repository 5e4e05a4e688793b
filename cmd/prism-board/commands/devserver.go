package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"prism-board/config"
	"prism-board/devserver"
	"prism-board/printer"
)

func newDevServerCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local task backend with a configurable update contract",
		Long: `Run an in-memory task backend seeded with a "demo" project. It accepts
task moves through exactly one endpoint and payload shape, set under
devserver.contract in the config file, so the client has to discover it.

When devserver.secret is set, requests need an HS256 bearer token; one is
printed at startup. Create requests are deduplicated by Idempotency-Key, in
Redis when cache.redis_url is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.cfg.DevServer.Options
			if addr == "" {
				addr = a.cfg.DevServer.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var deduper devserver.Deduper = devserver.NewMemoryDeduper()
			if a.cfg.Cache.RedisURL != "" {
				ropts, err := config.RedisOptions(a.cfg.Cache.RedisURL)
				if err != nil {
					return a.fail("Invalid cache.redis_url", err.Error(), nil)
				}
				rc := redis.NewClient(ropts)
				defer rc.Close()
				deduper = devserver.NewRedisDeduper(rc, a.cfg.Cache.TTL)
			}

			store := devserver.NewStore()
			devserver.SeedDemo(store)
			srv, err := devserver.New(opts, store, deduper, a.logger)
			if err != nil {
				return a.fail("Invalid devserver contract", err.Error(), nil)
			}

			printer.Success(a.stdout, "devserver listening on %s (contract: %s)\n", addr, opts.Contract)
			if opts.Secret != "" {
				token, err := devserver.IssueToken(opts.Secret, "dev", 24*time.Hour)
				if err != nil {
					return a.fail("Could not issue a token", err.Error(), nil)
				}
				printer.Step(a.stdout, "export PRISM_TOKEN=%s\n", token)
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(addr) }()
			select {
			case err := <-errCh:
				if err != nil {
					return a.fail("devserver stopped", err.Error(), nil)
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to devserver.addr)")
	return cmd
}
