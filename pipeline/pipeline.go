// Package pipeline wires the composer, oracle client, validator, corrector
// loop, and assembler into the single entry point the CLI and the HTTP
// server call. All state is request-scoped; concurrent runs share nothing
// but the process-wide checker pool.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"omegacode/assemble"
	"omegacode/config"
	"omegacode/events"
	"omegacode/language"
	"omegacode/llm"
	"omegacode/loop"
	"omegacode/metrics"
	"omegacode/prompt"
	"omegacode/validate"
)

// Input is one generation request.
type Input struct {
	// Description is the natural-language project description.
	Description string

	// Language is the target language identifier or alias.
	Language string

	// SingleFile, when set, asks the oracle for exactly one file with this
	// name.
	SingleFile string

	// MaxAttempts overrides the configured loop bound when > 0.
	MaxAttempts int
}

// Result is the outcome of one run. Manifest and Report are always set
// when the loop completed, accepted or not; they are nil only on
// infrastructure failure.
type Result struct {
	RunID    string
	Manifest *assemble.Manifest
	Report   *assemble.Report
	Loop     *loop.Result
}

// Write lays the result out under dir with its report sidecar.
func (r *Result) Write(dir string) error {
	return assemble.WriteTree(dir, r.Manifest, r.Report)
}

// Oracle produces raw candidate text; satisfied by *llm.Client through
// NewOracle and by fixtures in tests.
type Oracle = loop.Oracle

// Pipeline runs generation requests against a fixed configuration.
type Pipeline struct {
	cfg      *config.Config
	registry *language.Registry
	oracle   Oracle
	metrics  *metrics.Metrics
	events   *events.Publisher
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithOracle replaces the configured oracle client.
func WithOracle(o Oracle) Option {
	return func(p *Pipeline) { p.oracle = o }
}

// WithMetrics attaches prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithEvents attaches a NATS publisher. Nil is a no-op publisher.
func WithEvents(pub *events.Publisher) Option {
	return func(p *Pipeline) { p.events = pub }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// New builds a pipeline from configuration: the adapter registry extended
// with configured external checkers, and an oracle client over the
// configured endpoints.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	registry := language.NewRegistry()
	for _, checkerCfg := range cfg.Checkers {
		adapter, err := language.NewExecAdapter(checkerCfg)
		if err != nil {
			return nil, fmt.Errorf("checker %s: %w", checkerCfg.Language, err)
		}
		registry.Register(adapter)
	}

	p := &Pipeline{
		cfg:      cfg,
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.oracle == nil {
		client := llm.NewClient(cfg.Oracle.Endpoints,
			llm.WithCallTimeout(cfg.Oracle.CallTimeout),
			llm.WithLogger(p.logger),
		)
		p.oracle = NewOracle(client, cfg.Oracle.Temperature)
	}

	return p, nil
}

// Languages returns the registered language identifiers.
func (p *Pipeline) Languages() []string {
	return p.registry.IDs()
}

// Run executes one generation request end to end. The returned error is
// non-nil for caller errors (unsupported language), infrastructure failure
// (oracle unavailable after retries), and assembly conflicts; exhaustion is
// not an error and is reported through the result's Accepted flag.
func (p *Pipeline) Run(ctx context.Context, input Input) (*Result, error) {
	runID := uuid.New().String()
	logger := p.logger.With(slog.String("run_id", runID))
	start := time.Now()

	adapter, err := p.registry.Lookup(input.Language)
	if err != nil {
		return nil, err
	}

	p.events.Publish(events.Event{
		Type:     events.TypeRunStarted,
		RunID:    runID,
		Language: adapter.ID(),
	})

	description := input.Description
	if input.SingleFile != "" {
		description = fmt.Sprintf("%s\n\nProduce exactly one file named %q.", description, input.SingleFile)
	}

	maxAttempts := p.cfg.Pipeline.MaxAttempts
	if input.MaxAttempts > 0 {
		maxAttempts = input.MaxAttempts
	}

	l := loop.New(
		prompt.NewComposer(p.cfg.Pipeline.MaxDiagnosticsCarried),
		p.oracle,
		validate.New(p.registry, p.cfg.Pipeline.CheckTimeout, logger),
		loop.WithMaxAttempts(maxAttempts),
		loop.WithLogger(logger),
		loop.WithObserver(func(attempt loop.Attempt) {
			p.observeAttempt(runID, adapter.ID(), attempt)
		}),
	)

	res, runErr := l.Run(ctx, description, adapter)
	if runErr != nil {
		p.countRun("error", start)
		p.events.Publish(events.Event{
			Type:   events.TypeRunFailed,
			RunID:  runID,
			Reason: runErr.Error(),
		})
		return &Result{RunID: runID, Loop: res}, runErr
	}

	manifest, err := assemble.New(adapter,
		assemble.WithExcludes(p.cfg.Assemble.Excludes),
		assemble.WithLogger(logger),
	).Assemble(res)
	if err != nil {
		p.countRun("error", start)
		p.events.Publish(events.Event{
			Type:   events.TypeRunFailed,
			RunID:  runID,
			Reason: err.Error(),
		})
		return &Result{RunID: runID, Loop: res}, err
	}

	report := assemble.NewReport(runID, manifest, res)

	if res.Accepted {
		p.countRun("accepted", start)
		p.events.Publish(events.Event{
			Type:     events.TypeRunAccepted,
			RunID:    runID,
			Language: adapter.ID(),
			Attempt:  len(res.Attempts),
		})
	} else {
		p.countRun("exhausted", start)
		p.events.Publish(events.Event{
			Type:     events.TypeRunExhausted,
			RunID:    runID,
			Language: adapter.ID(),
			Attempt:  len(res.Attempts),
			Reason:   res.Reason,
		})
	}

	logger.Info("pipeline run finished",
		slog.Bool("accepted", res.Accepted),
		slog.Int("attempts", len(res.Attempts)),
		slog.Duration("took", time.Since(start)))

	return &Result{
		RunID:    runID,
		Manifest: manifest,
		Report:   report,
		Loop:     res,
	}, nil
}

func (p *Pipeline) observeAttempt(runID, languageID string, attempt loop.Attempt) {
	if p.metrics != nil {
		p.metrics.Attempts.Inc()
		for _, d := range attempt.Verdict.Diagnostics {
			p.metrics.Diagnostics.WithLabelValues(string(d.Severity)).Inc()
		}
	}
	p.events.Publish(events.Event{
		Type:        events.TypeAttemptDone,
		RunID:       runID,
		Language:    languageID,
		Attempt:     attempt.Number,
		Passed:      attempt.Verdict.Passed,
		Diagnostics: len(attempt.Verdict.Diagnostics),
	})
}

func (p *Pipeline) countRun(outcome string, start time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.Runs.WithLabelValues(outcome).Inc()
	p.metrics.Duration.Observe(time.Since(start).Seconds())
}
