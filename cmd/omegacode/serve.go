package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"omegacode/events"
	"omegacode/metrics"
	"omegacode/pipeline"
	"omegacode/server"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the generation HTTP API",
		Long: `Serve exposes the pipeline over HTTP: POST /v1/generate runs one
pipeline request and returns the project inline, GET /v1/languages lists
the registered adapters, and /metrics exposes prometheus counters.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}

			publisher, err := events.Connect(cfg.NATS.URL, cfg.NATS.Subject, slog.Default())
			if err != nil {
				slog.Warn("event publishing disabled", slog.String("error", err.Error()))
			}
			defer publisher.Close()

			m := metrics.New()
			p, err := pipeline.New(cfg,
				pipeline.WithMetrics(m),
				pipeline.WithEvents(publisher),
			)
			if err != nil {
				return err
			}

			return server.New(p, m, slog.Default()).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")

	return cmd
}

func languagesCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "languages",
		Short: "List supported target languages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfigOrDefault(configPath)

			p, err := pipeline.New(cfg)
			if err != nil {
				return err
			}

			// Registry.IDs already sorts.
			for _, id := range p.Languages() {
				fmt.Println(id)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	return cmd
}
