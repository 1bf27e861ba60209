// Package record defines the static DNS record model used by the controller.
package record

import "fmt"

// DNS record type constants. Only A records are reconciled; the others are
// recognised so that listing output can be logged accurately.
const (
	RecordTypeA     = "A"
	RecordTypeAAAA  = "AAAA"
	RecordTypeCNAME = "CNAME"
	RecordTypeMX    = "MX"
	RecordTypeTXT   = "TXT"
	RecordTypeSRV   = "SRV"
)

// Record is a static DNS entry as stored on the controller.
type Record struct {
	// ID is the controller-assigned identifier. Empty until the record exists.
	ID string `json:"_id,omitempty"`
	// Key is the hostname the record answers for (e.g. "app.example.com").
	Key string `json:"key"`
	// Value is the record target; an IPv4 address for A records.
	Value string `json:"value"`
	// RecordType is the DNS record type, e.g. "A".
	RecordType string `json:"record_type"`
	// Enabled reports whether the controller serves this record.
	Enabled bool `json:"enabled"`
	// TTL is the time-to-live in seconds; 0 means the controller default.
	TTL int `json:"ttl,omitempty"`
}

// New returns an enabled A record for hostname pointing at target.
func New(hostname, target string) *Record {
	return &Record{
		Key:        hostname,
		Value:      target,
		RecordType: RecordTypeA,
		Enabled:    true,
	}
}

// IsA reports whether r is an address record.
func (r *Record) IsA() bool {
	return r.RecordType == RecordTypeA
}

// String returns a human-readable representation of the record.
func (r *Record) String() string {
	id := r.ID
	if id == "" {
		id = "<new>"
	}
	return fmt.Sprintf("%s %s %s (id %s, enabled %t)", r.Key, r.RecordType, r.Value, id, r.Enabled)
}
