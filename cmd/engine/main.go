package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hypeauction/market-engine/internal/api"
	"github.com/hypeauction/market-engine/internal/catalog"
	"github.com/hypeauction/market-engine/internal/config"
	"github.com/hypeauction/market-engine/internal/ingest"
	"github.com/hypeauction/market-engine/internal/logging"
	"github.com/hypeauction/market-engine/internal/store"
	"github.com/hypeauction/market-engine/internal/upstream"
)

const shutdownGrace = 20 * time.Second

func main() {
	root := &cobra.Command{
		Use:   "engine",
		Short: "Auction market-intelligence engine",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(ingestCmd())
	root.AddCommand(backfillCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API alongside the recurring ingest loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, st, up, loop, err := bootstrap()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			wsHub := api.NewHub()
			go wsHub.Run()

			go func() {
				if err := loop.Run(ctx, cfg.IngestInterval); err != nil && ctx.Err() == nil {
					log.Errorw("ingest loop exited", "error", err)
				}
			}()

			router := api.SetupRouter(st, catalog.NewStatic(), loop, wsHub)
			srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: router}

			go func() {
				log.Infow("serving", "port", cfg.HTTPPort)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorw("http server error", "error", err)
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			<-sigCh
			log.Info("shutdown signal received, draining")

			cancel()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func ingestCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run the ingest loop standalone (no HTTP server)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, st, _, loop, err := bootstrap()
			if err != nil {
				return err
			}
			defer st.Close()

			if once {
				return loop.RunOnce(context.Background())
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigCh
				log.Info("shutdown signal received")
				cancel()
			}()
			return loop.Run(ctx, cfg.IngestInterval)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single ingest cycle and exit")
	return cmd
}

func backfillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Run one ingest cycle, exercising the item-key backfill maintenance pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, st, _, loop, err := bootstrap()
			if err != nil {
				return err
			}
			defer st.Close()
			return loop.RunOnce(context.Background())
		},
	}
}

// bootstrap wires config, logging, storage, the upstream client, and the
// ingest loop the same way for every subcommand.
func bootstrap() (*config.Config, *zap.SugaredLogger, *store.Store, *upstream.Client, *ingest.Loop, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	log, err := logging.New()
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}

	ctx := context.Background()
	st, err := store.Connect(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("connect store: %w", err)
	}
	if err := st.InitSchema(ctx); err != nil {
		st.Close()
		return nil, nil, nil, nil, nil, fmt.Errorf("init schema: %w", err)
	}

	up := upstream.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamAPIKey)
	loop := ingest.New(st, up, log, cfg.MaxPages, cfg.UnseenGrace)

	return cfg, log, st, up, loop, nil
}
