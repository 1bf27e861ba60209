package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// StdinPath selects standard input as the hostname source.
const StdinPath = "-"

// JSONSource reads a JSON array of hostname strings from a file or stdin.
type JSONSource struct {
	path  string
	stdin io.Reader
	log   *slog.Logger
}

// NewJSONSource returns a JSONSource for path. An empty path or "-" reads
// from stdin.
func NewJSONSource(path string, stdin io.Reader, log *slog.Logger) *JSONSource {
	if path == "" {
		path = StdinPath
	}
	if stdin == nil {
		stdin = os.Stdin
	}
	if log == nil {
		log = slog.Default()
	}
	return &JSONSource{path: path, stdin: stdin, log: log}
}

// Name describes where hostnames are read from.
func (s *JSONSource) Name() string {
	if s.path == StdinPath {
		return "stdin"
	}
	return s.path
}

// Hostnames reads and parses the source. Every element must be a non-empty
// string; anything else fails the whole load with a *LoadError.
func (s *JSONSource) Hostnames(_ context.Context) ([]string, error) {
	s.log.Info("loading hostnames", "source", s.Name())

	var (
		data []byte
		err  error
	)
	if s.path == StdinPath {
		data, err = io.ReadAll(s.stdin)
	} else {
		data, err = os.ReadFile(s.path)
	}
	if err != nil {
		return nil, &LoadError{Source: s.Name(), Err: err}
	}
	return parseHostnames(s.Name(), data)
}

func parseHostnames(name string, data []byte) ([]string, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &LoadError{Source: name, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, &LoadError{Source: name, Err: errors.New("JSON must contain a list of hostnames")}
	}

	out := make([]string, 0, len(items))
	for i, item := range items {
		h, ok := item.(string)
		if !ok || strings.TrimSpace(h) == "" {
			return nil, &LoadError{Source: name, Err: fmt.Errorf("invalid hostname at index %d: %v", i, item)}
		}
		out = append(out, strings.TrimSpace(h))
	}
	return out, nil
}
