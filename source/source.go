// Package source resolves the project description from its possible
// intakes: inline text, a file, standard input, or a web page.
package source

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// FromFile reads a description from a file.
func FromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read description file: %w", err)
	}
	return normalize(string(data))
}

// FromReader reads a description from a stream (typically stdin).
func FromReader(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read description: %w", err)
	}
	return normalize(string(data))
}

// FromArgs joins positional CLI arguments into a description.
func FromArgs(args []string) (string, error) {
	return normalize(strings.Join(args, " "))
}

func normalize(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("description is empty")
	}
	return s, nil
}
