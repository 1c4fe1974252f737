package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"omegacode/config"
	"omegacode/events"
	"omegacode/metrics"
	"omegacode/pipeline"
	"omegacode/source"
	"omegacode/source/weburl"
)

func generateCmd() *cobra.Command {
	var (
		configPath  string
		languageID  string
		fromFile    string
		fromURL     string
		singleFile  string
		outputDir   string
		maxAttempts int
		watch       bool
	)

	cmd := &cobra.Command{
		Use:   "generate [description...]",
		Short: "Generate a project from a description",
		Long: `Generate runs the full pipeline: the description is sent to the
oracle, the returned candidate is parsed into file fragments, each fragment
is syntax-checked, and validation diagnostics drive bounded correction
retries. The accepted (or best-effort) project tree is written to the
output directory together with a generation report.

The description comes from positional arguments, --from-file, --from-url,
or stdin when none are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if outputDir == "" {
				outputDir = cfg.Assemble.OutputDir
			}
			if watch && fromFile == "" {
				return fmt.Errorf("--watch requires --from-file")
			}

			description, err := resolveDescription(ctx, args, fromFile, fromURL)
			if err != nil {
				return err
			}

			publisher, err := events.Connect(cfg.NATS.URL, cfg.NATS.Subject, slog.Default())
			if err != nil {
				slog.Warn("event publishing disabled", slog.String("error", err.Error()))
			}
			defer publisher.Close()

			p, err := pipeline.New(cfg,
				pipeline.WithMetrics(metrics.New()),
				pipeline.WithEvents(publisher),
			)
			if err != nil {
				return err
			}

			input := pipeline.Input{
				Description: description,
				Language:    languageID,
				SingleFile:  singleFile,
				MaxAttempts: maxAttempts,
			}

			if err := runOnce(ctx, p, input, outputDir); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return watchAndRerun(ctx, p, input, fromFile, outputDir)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVarP(&languageID, "language", "l", "python", "Target language")
	cmd.Flags().StringVar(&fromFile, "from-file", "", "Read the description from a file")
	cmd.Flags().StringVar(&fromURL, "from-url", "", "Fetch the description from an HTTPS page")
	cmd.Flags().StringVar(&singleFile, "single", "", "Ask for exactly one file with this name")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default from config)")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "Override the correction attempt limit")
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-run when the description file changes")

	return cmd
}

func resolveDescription(ctx context.Context, args []string, fromFile, fromURL string) (string, error) {
	switch {
	case fromFile != "" && fromURL != "":
		return "", fmt.Errorf("--from-file and --from-url are mutually exclusive")
	case fromFile != "":
		return source.FromFile(fromFile)
	case fromURL != "":
		doc, err := weburl.Fetch(ctx, fromURL)
		if err != nil {
			return "", err
		}
		slog.Info("fetched description", slog.String("title", doc.Title))
		return doc.Markdown, nil
	case len(args) > 0:
		return source.FromArgs(args)
	default:
		return source.FromReader(os.Stdin)
	}
}

func runOnce(ctx context.Context, p *pipeline.Pipeline, input pipeline.Input, outputDir string) error {
	res, err := p.Run(ctx, input)
	if err != nil {
		return err
	}

	if err := res.Write(outputDir); err != nil {
		return err
	}

	if res.Manifest.Accepted {
		fmt.Printf("Accepted after %d attempt(s): %d file(s) written to %s\n",
			res.Manifest.Attempts, len(res.Manifest.Fragments), outputDir)
	} else {
		fmt.Printf("NOT accepted after %d attempt(s); best-effort result written to %s (%s)\n",
			res.Manifest.Attempts, outputDir, res.Loop.Reason)
	}
	return nil
}

// watchAndRerun re-reads the description file and re-runs the pipeline on
// every (debounced) change until interrupted.
func watchAndRerun(ctx context.Context, p *pipeline.Pipeline, input pipeline.Input, path, outputDir string) error {
	w, err := source.NewWatcher(path, 0, slog.Default())
	if err != nil {
		return err
	}
	defer w.Close()
	w.Start(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.Changes():
			description, err := source.FromFile(path)
			if err != nil {
				slog.Error("re-read description failed", slog.String("error", err.Error()))
				continue
			}
			input.Description = description
			if err := runOnce(ctx, p, input, outputDir); err != nil {
				slog.Error("pipeline run failed", slog.String("error", err.Error()))
			}
		}
	}
}

func loadConfigOrDefault(path string) *config.Config {
	cfg, err := loadConfig(path)
	if err != nil {
		slog.Warn("falling back to default config", slog.String("error", err.Error()))
		return config.DefaultConfig()
	}
	return cfg
}
