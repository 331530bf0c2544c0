package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"starkshield/internal/platform/health"
	httptransport "starkshield/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the validation, nullifier and history API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a := newApp(c.cfg, c.logger)
			defer a.close()

			store, err := a.historyStore(ctx)
			if err != nil {
				return err
			}
			if _, err := a.publisher(); err != nil {
				return err
			}

			probes := health.New(c.cfg.Environment, c.cfg.Chain.ChainAlias)
			probes.RegisterCheck("starknet_rpc", func(ctx context.Context) error {
				_, err := a.node.ChainID(ctx)
				return err
			})
			if a.redis != nil {
				probes.RegisterCheck("redis", a.redis.Health)
				go recordPoolStats(ctx, a)
			}
			if a.producer != nil {
				probes.RegisterCheck("kafka", a.producer.Healthy)
			}

			handler := httptransport.NewHandler(a.guard, store, a.enricher(store), c.logger)
			srv := &http.Server{
				Addr:              c.cfg.HTTPAddr,
				Handler:           httptransport.NewRouter(handler, probes, a.registry, c.logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				c.logger.Info("starting http server",
					"addr", c.cfg.HTTPAddr,
					"network", c.cfg.Chain.ChainAlias,
					"registry", c.cfg.Chain.RegistryAddress,
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			c.logger.Info("shutting down server gracefully")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			c.logger.Info("server stopped")
			return nil
		},
	}
}

func recordPoolStats(ctx context.Context, a *app) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.redis.RecordPoolStats()
		}
	}
}
