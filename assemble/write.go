package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"omegacode/loop"
	"omegacode/validate"
)

// ReportFileName is the generation report sidecar written next to the
// project tree.
const ReportFileName = "omegacode-report.yaml"

// Report is the audit record for one pipeline run: the full attempt
// history survives even when acceptance was eventually reached.
type Report struct {
	RunID       string           `yaml:"run_id"`
	GeneratedAt time.Time        `yaml:"generated_at"`
	Language    string           `yaml:"language"`
	Accepted    bool             `yaml:"accepted"`
	Attempts    int              `yaml:"attempts"`
	Reason      string           `yaml:"reason,omitempty"`
	Files       []string         `yaml:"files"`
	Verdict     validate.Verdict `yaml:"final_verdict"`
	History     []loop.Attempt   `yaml:"history"`
}

// NewReport builds the report for a manifest and its loop result.
func NewReport(runID string, manifest *Manifest, res *loop.Result) *Report {
	files := make([]string, 0, len(manifest.Fragments))
	for _, frag := range manifest.Fragments {
		files = append(files, frag.Path)
	}

	return &Report{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Language:    manifest.Language,
		Accepted:    manifest.Accepted,
		Attempts:    manifest.Attempts,
		Reason:      res.Reason,
		Files:       files,
		Verdict:     res.Verdict,
		History:     res.Attempts,
	}
}

// WriteTree lays the manifest's fragments out under dir, mirroring their
// project-relative paths, and writes the report sidecar alongside.
func WriteTree(dir string, manifest *Manifest, report *Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create project directory: %w", err)
	}

	for _, frag := range manifest.Fragments {
		target := filepath.Join(dir, filepath.FromSlash(frag.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", frag.Path, err)
		}
		if err := os.WriteFile(target, []byte(frag.Content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", frag.Path, err)
		}
	}

	if report != nil {
		data, err := yaml.Marshal(report)
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		target := filepath.Join(dir, ReportFileName)
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	return nil
}
