package unifi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/bkero/unifi-dns-sync/pkg/record"
)

// DefaultSite is the site name used when none is configured.
const DefaultSite = "default"

// caller is the subset of Session used by Client.
type caller interface {
	Call(ctx context.Context, method, path string, body any) (*Response, error)
}

// Client implements provider.Provider against the controller's static DNS
// collection for one site.
type Client struct {
	session caller
	site    string
	log     *slog.Logger
}

// NewClient returns a Client using an authenticated session.
func NewClient(s *Session, site string, log *slog.Logger) *Client {
	return newClient(s, site, log)
}

func newClient(s caller, site string, log *slog.Logger) *Client {
	if site == "" {
		site = DefaultSite
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{session: s, site: site, log: log}
}

func (c *Client) collectionPath() string {
	return fmt.Sprintf("/proxy/network/v2/api/site/%s/static-dns", url.PathEscape(c.site))
}

// Records lists every static DNS record on the site.
func (c *Client) Records(ctx context.Context) ([]*record.Record, error) {
	c.log.Info("fetching existing DNS records")
	resp, err := c.session.Call(ctx, http.MethodGet, c.collectionPath(), nil)
	if err != nil {
		return nil, err
	}
	var recs []*record.Record
	if err := resp.Decode(&recs); err != nil {
		return nil, fmt.Errorf("unifi: decode static-dns list: %w", err)
	}
	c.log.Info("found existing DNS records", "count", len(recs))
	return recs, nil
}

// Create adds an enabled A record for hostname pointing at target.
func (c *Client) Create(ctx context.Context, hostname, target string) (*record.Record, error) {
	c.log.Info("creating DNS record", "hostname", hostname, "value", target)
	want := record.New(hostname, target)
	resp, err := c.session.Call(ctx, http.MethodPost, c.collectionPath(), want)
	if err != nil {
		return nil, err
	}

	var got record.Record
	if err := resp.Decode(&got); err != nil || got.Key == "" {
		// The record exists on the controller even if the echo is unusable.
		c.log.Warn("unexpected create response, using requested record",
			"hostname", hostname, "body", truncate(resp.Body))
		return want, nil
	}
	c.log.Debug("DNS record created", "hostname", hostname, "id", got.ID)
	return &got, nil
}

// Delete removes the record with the given controller id.
func (c *Client) Delete(ctx context.Context, id string) error {
	c.log.Info("deleting DNS record", "id", id)
	_, err := c.session.Call(ctx, http.MethodDelete, c.collectionPath()+"/"+url.PathEscape(id), nil)
	return err
}
