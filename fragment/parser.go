package fragment

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedOutput indicates the oracle's raw output could not be split
// into an unambiguous set of fragments. It is recoverable: the corrector
// loop feeds the parse failure back as a diagnostic and retries.
var ErrMalformedOutput = errors.New("malformed oracle output")

// Namer supplies a fallback file name when the oracle omits path markers.
// The language adapter registry provides the implementation.
type Namer interface {
	DefaultFileName(index int) string
}

var (
	fileMarkerRe   = regexp.MustCompile(`^###\s*FILE:\s*(.+?)\s*$`)
	requiresRe     = regexp.MustCompile(`^###\s*REQUIRES:\s*(.*?)\s*$`)
	fenceOpenRe    = regexp.MustCompile("^```[a-zA-Z0-9_+-]*\\s*$")
	fenceCloseRe   = regexp.MustCompile("^```\\s*$")
	residualHintRe = regexp.MustCompile(`(?i)^(#|//)\s*Response:.*$`)
)

// Parse splits raw oracle output into an ordered sequence of fragments.
//
// The recognised convention is one `### FILE: <path>` marker per fragment,
// optionally followed by a `### REQUIRES: dep[@constraint], ...` line, then
// the file content either inside a fenced code block or as plain text up to
// the next marker. Output without any markers is treated as a single
// fragment at the namer's default file name.
//
// Parse is a pure function of its input: parsing the same text twice yields
// identical fragment sequences.
func Parse(raw string, namer Namer) ([]Fragment, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	var markers []int
	for i, line := range lines {
		if fileMarkerRe.MatchString(line) {
			markers = append(markers, i)
		}
	}

	if len(markers) == 0 {
		return parseSingle(raw, namer)
	}

	fragments := make([]Fragment, 0, len(markers))
	seen := make(map[string]struct{}, len(markers))

	for mi, start := range markers {
		end := len(lines)
		if mi+1 < len(markers) {
			end = markers[mi+1]
		}

		declared := fileMarkerRe.FindStringSubmatch(lines[start])[1]
		cleaned, err := CleanPath(declared)
		if err != nil {
			return nil, fmt.Errorf("%w: fragment path: %v", ErrMalformedOutput, err)
		}
		if _, dup := seen[cleaned]; dup {
			return nil, fmt.Errorf("%w: duplicate fragment path %q", ErrMalformedOutput, cleaned)
		}
		seen[cleaned] = struct{}{}

		body := lines[start+1 : end]

		var deps []Dependency
		if len(body) > 0 {
			if m := requiresRe.FindStringSubmatch(body[0]); m != nil {
				deps, err = parseRequires(m[1])
				if err != nil {
					return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
				}
				body = body[1:]
			}
		}

		fragments = append(fragments, Fragment{
			Path:         cleaned,
			Content:      extractContent(body),
			Dependencies: deps,
		})
	}

	return fragments, nil
}

// parseSingle handles candidates with no FILE markers: the entire text is
// one fragment at the adapter's default name. A blank candidate is
// malformed, not an empty fragment.
func parseSingle(raw string, namer Namer) ([]Fragment, error) {
	content := extractContent(strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n"))
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: candidate contains no content", ErrMalformedOutput)
	}
	return []Fragment{{
		Path:    namer.DefaultFileName(0),
		Content: content,
	}}, nil
}

// parseRequires parses a comma-separated dependency list.
func parseRequires(list string) ([]Dependency, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	parts := strings.Split(list, ",")
	deps := make([]Dependency, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		dep, err := ParseDependency(part)
		if err != nil {
			return nil, err
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

// extractContent returns the content of a fragment body. When the body
// holds a fenced code block, only the block's interior is kept; residual
// prompt echoes are stripped either way.
func extractContent(body []string) string {
	// Skip leading blank lines.
	i := 0
	for i < len(body) && strings.TrimSpace(body[i]) == "" {
		i++
	}

	if i < len(body) && fenceOpenRe.MatchString(body[i]) {
		var inner []string
		for j := i + 1; j < len(body); j++ {
			if fenceCloseRe.MatchString(body[j]) {
				return dropResidual(inner)
			}
			inner = append(inner, body[j])
		}
		// Unterminated fence: keep everything after the opener rather than
		// discarding the candidate.
		return dropResidual(body[i+1:])
	}

	return strings.TrimRight(dropResidual(body[i:]), "\n")
}

// dropResidual removes prompt-echo lines the oracle sometimes emits.
func dropResidual(lines []string) string {
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if residualHintRe.MatchString(strings.TrimSpace(line)) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimRight(strings.Join(kept, "\n"), "\n")
}
