// Package source defines the Source interface for discovering desired hostnames.
package source

import (
	"context"
	"fmt"
)

// Source produces the list of hostnames that should have A records.
type Source interface {
	// Hostnames returns the desired hostnames, trimmed, in source order.
	// Validation against hostname rules is left to the caller.
	Hostnames(ctx context.Context) ([]string, error)
}

// LoadError is returned when a hostname source cannot be read or parsed.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load hostnames from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
