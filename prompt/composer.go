// Package prompt composes generation requests from a project description,
// a target language, and diagnostics carried over from failed attempts.
package prompt

import (
	"fmt"
	"strings"

	"omegacode/language"
)

// DefaultMaxDiagnostics caps how many diagnostics a retry prompt carries,
// bounding prompt growth across attempts.
const DefaultMaxDiagnostics = 20

// Request is one immutable generation request: the composed prompt text
// plus the inputs it was derived from. One instance exists per attempt.
type Request struct {
	Description string
	LanguageID  string
	Attempt     int
	Diagnostics []language.Diagnostic

	System string
	User   string
}

// Composer builds oracle requests. Compose is a pure function: identical
// inputs always produce identical request text.
type Composer struct {
	maxDiagnostics int
}

// NewComposer creates a composer. maxDiagnostics <= 0 uses the default cap.
func NewComposer(maxDiagnostics int) *Composer {
	if maxDiagnostics <= 0 {
		maxDiagnostics = DefaultMaxDiagnostics
	}
	return &Composer{maxDiagnostics: maxDiagnostics}
}

// Compose builds the request for one attempt. On the first attempt
// diagnostics is empty; on retries each diagnostic becomes a correction
// instruction, errors first, original order preserved within a severity.
func (c *Composer) Compose(description, languageID string, diags []language.Diagnostic, attempt int) Request {
	var b strings.Builder

	fmt.Fprintf(&b, "Target language: %s\n\n", languageID)
	b.WriteString("Project description:\n")
	b.WriteString(strings.TrimSpace(description))
	b.WriteString("\n")

	if len(diags) > 0 {
		carried, omitted := c.carry(diags)

		b.WriteString("\n")
		b.WriteString(correctionHeader)
		b.WriteString("\n")
		for i, d := range carried {
			fmt.Fprintf(&b, "%d. %s\n", i+1, formatDiagnostic(d))
		}
		if omitted > 0 {
			fmt.Fprintf(&b, "(%d additional lower-severity diagnostics omitted)\n", omitted)
		}
	}

	return Request{
		Description: description,
		LanguageID:  languageID,
		Attempt:     attempt,
		Diagnostics: diags,
		System:      systemPrompt,
		User:        b.String(),
	}
}

// carry orders diagnostics errors-first (stable within severity) and
// truncates to the cap, dropping the lowest-severity excess.
func (c *Composer) carry(diags []language.Diagnostic) ([]language.Diagnostic, int) {
	ordered := make([]language.Diagnostic, 0, len(diags))
	for _, d := range diags {
		if d.Severity == language.SeverityError {
			ordered = append(ordered, d)
		}
	}
	for _, d := range diags {
		if d.Severity != language.SeverityError {
			ordered = append(ordered, d)
		}
	}

	if len(ordered) <= c.maxDiagnostics {
		return ordered, 0
	}
	return ordered[:c.maxDiagnostics], len(ordered) - c.maxDiagnostics
}

// formatDiagnostic serializes one diagnostic as a correction instruction.
func formatDiagnostic(d language.Diagnostic) string {
	var loc string
	switch {
	case d.Path != "" && d.Line > 0:
		loc = fmt.Sprintf(" in %s at line %d, column %d", d.Path, d.Line, d.Column)
	case d.Path != "":
		loc = fmt.Sprintf(" in %s", d.Path)
	}
	return fmt.Sprintf("[%s]%s: %s", d.Severity, loc, d.Message)
}
