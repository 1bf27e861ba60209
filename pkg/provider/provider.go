// Package provider defines the Provider interface for static DNS backends.
package provider

import (
	"context"

	"github.com/bkero/unifi-dns-sync/pkg/record"
)

// Provider is implemented by every static DNS backend.
type Provider interface {
	// Records returns every static DNS record on the backend, including
	// non-A records. Filtering is left to the caller.
	Records(ctx context.Context) ([]*record.Record, error)

	// Create adds an enabled A record for hostname pointing at target and
	// returns the backend's representation of it.
	Create(ctx context.Context, hostname, target string) (*record.Record, error)

	// Delete removes the record with the given backend id.
	Delete(ctx context.Context, id string) error
}
