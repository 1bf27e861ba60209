// Package fake provides an in-memory Source implementation for testing.
package fake

import (
	"context"
	"sync"
)

// Source is a fake implementation of source.Source that returns a fixed list
// of hostnames.
type Source struct {
	mu        sync.Mutex
	hostnames []string
	err       error
	calls     int
}

// New returns a fake Source pre-loaded with the given hostnames.
func New(hostnames []string) *Source {
	return &Source{hostnames: hostnames}
}

// Hostnames returns the configured hostname list, or the configured error.
func (s *Source) Hostnames(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]string, len(s.hostnames))
	copy(out, s.hostnames)
	return out, nil
}

// SetHostnames replaces the list returned by Hostnames.
func (s *Source) SetHostnames(hostnames []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostnames = hostnames
}

// SetError makes subsequent Hostnames calls fail with err.
func (s *Source) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns how many times Hostnames was called.
func (s *Source) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
