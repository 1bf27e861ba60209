// Package fake provides an in-memory Provider implementation for testing.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/bkero/unifi-dns-sync/pkg/record"
)

// Call is a snapshot of a single mutating call, kept for test assertions.
type Call struct {
	Op       string // "create" or "delete"
	Hostname string // set for create
	ID       string
}

// Provider is an in-memory static DNS provider for testing.
type Provider struct {
	mu      sync.Mutex
	records []*record.Record // controller order, duplicates allowed
	nextID  int
	history []Call

	// RecordsErr, when set, is returned by Records.
	RecordsErr error
	// CreateErrs maps hostname to the error Create returns for it.
	CreateErrs map[string]error
	// DeleteErrs maps record id to the error Delete returns for it.
	DeleteErrs map[string]error
	// BeforeCall, when set, runs at the start of every Create and Delete.
	BeforeCall func(op string)
}

// New returns a Provider pre-loaded with the given records. Records without an
// ID are assigned one.
func New(initial []*record.Record) *Provider {
	p := &Provider{
		CreateErrs: map[string]error{},
		DeleteErrs: map[string]error{},
	}
	for _, r := range initial {
		cp := *r
		if cp.ID == "" {
			cp.ID = p.newID()
		}
		p.records = append(p.records, &cp)
	}
	return p
}

func (p *Provider) newID() string {
	p.nextID++
	return fmt.Sprintf("fake-%04d", p.nextID)
}

// Records returns copies of all stored records in insertion order.
func (p *Provider) Records(_ context.Context) ([]*record.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.RecordsErr != nil {
		return nil, p.RecordsErr
	}
	out := make([]*record.Record, 0, len(p.records))
	for _, r := range p.records {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

// Create stores a new A record unless CreateErrs holds an error for hostname.
func (p *Provider) Create(_ context.Context, hostname, target string) (*record.Record, error) {
	if p.BeforeCall != nil {
		p.BeforeCall("create")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.CreateErrs[hostname]; err != nil {
		return nil, err
	}
	r := record.New(hostname, target)
	r.ID = p.newID()
	p.records = append(p.records, r)
	p.history = append(p.history, Call{Op: "create", Hostname: hostname, ID: r.ID})
	cp := *r
	return &cp, nil
}

// Delete removes the record with id. Deleting an unknown id is an error, as
// it is on the real controller.
func (p *Provider) Delete(_ context.Context, id string) error {
	if p.BeforeCall != nil {
		p.BeforeCall("delete")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.DeleteErrs[id]; err != nil {
		return err
	}
	for i, r := range p.records {
		if r.ID == id {
			p.records = append(p.records[:i], p.records[i+1:]...)
			p.history = append(p.history, Call{Op: "delete", Hostname: r.Key, ID: id})
			return nil
		}
	}
	return fmt.Errorf("fake: record %q not found", id)
}

// History returns all successful mutating calls so far, oldest first.
func (p *Provider) History() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.history))
	copy(out, p.history)
	return out
}

// RecordCount returns the number of records currently in the store.
func (p *Provider) RecordCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}
