// Package loop drives the bounded generate-parse-validate cycle, feeding
// diagnostics from each failed attempt back into the next prompt.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"omegacode/fragment"
	"omegacode/language"
	"omegacode/prompt"
	"omegacode/validate"
)

// DefaultMaxAttempts bounds the loop when no limit is configured.
const DefaultMaxAttempts = 5

// State identifies a position in the corrector state machine. Accepted and
// Exhausted are terminal.
type State int

const (
	StateComposing State = iota
	StateGenerating
	StateParsing
	StateValidating
	StateAccepted
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateComposing:
		return "composing"
	case StateGenerating:
		return "generating"
	case StateParsing:
		return "parsing"
	case StateValidating:
		return "validating"
	case StateAccepted:
		return "accepted"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Oracle produces raw candidate text for a composed request. Transport
// retries happen inside the oracle; an error here is unretriable.
type Oracle interface {
	Generate(ctx context.Context, req prompt.Request) (string, error)
}

// Attempt records one full cycle. Never mutated after its verdict is set.
type Attempt struct {
	Number    int                 `json:"number" yaml:"number"`
	Fragments []fragment.Fragment `json:"-" yaml:"-"`
	Verdict   validate.Verdict    `json:"verdict" yaml:"verdict"`
}

// Result is the loop's terminal outcome. On exhaustion the last attempt's
// fragments and diagnostics are returned as a best-effort partial result.
type Result struct {
	Accepted  bool
	State     State
	Reason    string
	Attempts  []Attempt
	Fragments []fragment.Fragment
	Verdict   validate.Verdict
}

// Observer is invoked after each attempt's verdict is known.
type Observer func(Attempt)

// Loop orchestrates composer, oracle, and validator across bounded retries.
type Loop struct {
	composer    *prompt.Composer
	oracle      Oracle
	validator   *validate.Validator
	maxAttempts int
	logger      *slog.Logger
	onAttempt   Observer
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxAttempts bounds the number of attempts. Values < 1 keep the default.
func WithMaxAttempts(n int) Option {
	return func(l *Loop) {
		if n >= 1 {
			l.maxAttempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithObserver registers a per-attempt callback.
func WithObserver(fn Observer) Option {
	return func(l *Loop) {
		l.onAttempt = fn
	}
}

// New creates a loop over the given collaborators.
func New(composer *prompt.Composer, oracle Oracle, validator *validate.Validator, opts ...Option) *Loop {
	l := &Loop{
		composer:    composer,
		oracle:      oracle,
		validator:   validator,
		maxAttempts: DefaultMaxAttempts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes the state machine for one description against one adapter.
// Attempts are strictly sequential: attempt N+1 composes from attempt N's
// diagnostics. Cancellation is checked at every transition and reported as
// Exhausted with a cancellation reason. An unretriable oracle failure is
// also returned as an error so callers can distinguish infrastructure
// failure from exhaustion.
func (l *Loop) Run(ctx context.Context, description string, adapter language.Adapter) (*Result, error) {
	var (
		history []Attempt
		carried []language.Diagnostic
	)

	for n := 1; n <= l.maxAttempts; n++ {
		// Composing
		if err := ctx.Err(); err != nil {
			return l.exhaust(history, fmt.Sprintf("cancelled while composing: %v", err)), nil
		}
		req := l.composer.Compose(description, adapter.ID(), carried, n)
		l.logger.Debug("attempt composed",
			slog.Int("attempt", n),
			slog.String("language", adapter.ID()),
			slog.Int("carried_diagnostics", len(carried)))

		// Generating
		if err := ctx.Err(); err != nil {
			return l.exhaust(history, fmt.Sprintf("cancelled while generating: %v", err)), nil
		}
		raw, err := l.oracle.Generate(ctx, req)
		if err != nil {
			// No candidate to validate, so no attempt is consumed.
			l.logger.Error("oracle failed",
				slog.Int("attempt", n),
				slog.String("error", err.Error()))
			return l.exhaust(history, fmt.Sprintf("oracle failed: %v", err)), err
		}

		// Parsing
		if err := ctx.Err(); err != nil {
			return l.exhaust(history, fmt.Sprintf("cancelled while parsing: %v", err)), nil
		}
		frags, err := fragment.Parse(raw, adapter)
		if err != nil {
			if !errors.Is(err, fragment.ErrMalformedOutput) {
				return l.exhaust(history, fmt.Sprintf("parse failed: %v", err)), err
			}
			carried = []language.Diagnostic{{
				Severity: language.SeverityError,
				Message:  fmt.Sprintf("output could not be parsed: %v", err),
			}}
			attempt := Attempt{
				Number:  n,
				Verdict: validate.Verdict{Passed: false, Diagnostics: carried},
			}
			history = append(history, attempt)
			l.observe(attempt)
			l.logger.Warn("malformed oracle output",
				slog.Int("attempt", n),
				slog.String("error", err.Error()))
			continue
		}

		// Validating
		if err := ctx.Err(); err != nil {
			return l.exhaust(history, fmt.Sprintf("cancelled while validating: %v", err)), nil
		}
		verdict, err := l.validator.Validate(ctx, frags, adapter)
		if err != nil {
			return l.exhaust(history, fmt.Sprintf("cancelled while validating: %v", err)), nil
		}

		attempt := Attempt{Number: n, Fragments: frags, Verdict: verdict}
		history = append(history, attempt)
		l.observe(attempt)

		if verdict.Passed {
			l.logger.Info("candidate accepted",
				slog.Int("attempt", n),
				slog.Int("fragments", len(frags)))
			return &Result{
				Accepted:  true,
				State:     StateAccepted,
				Attempts:  history,
				Fragments: frags,
				Verdict:   verdict,
			}, nil
		}

		l.logger.Info("candidate rejected",
			slog.Int("attempt", n),
			slog.Int("diagnostics", len(verdict.Diagnostics)))
		carried = verdict.Diagnostics
	}

	return l.exhaust(history, fmt.Sprintf("no accepted candidate after %d attempts", l.maxAttempts)), nil
}

// exhaust builds the terminal non-accepted result, retaining the last
// attempt's fragments and verdict as a partial result.
func (l *Loop) exhaust(history []Attempt, reason string) *Result {
	res := &Result{
		State:    StateExhausted,
		Reason:   reason,
		Attempts: history,
	}
	if len(history) > 0 {
		last := history[len(history)-1]
		res.Fragments = last.Fragments
		res.Verdict = last.Verdict
	}
	l.logger.Warn("loop exhausted",
		slog.Int("attempts", len(history)),
		slog.String("reason", reason))
	return res
}

func (l *Loop) observe(attempt Attempt) {
	if l.onAttempt != nil {
		l.onAttempt(attempt)
	}
}
