// Package verify checks that synced hostnames resolve to the target address
// on a given DNS server.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"time"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var mismatches = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "unifi_dns_sync_verify_mismatches",
	Help: "Number of hostnames that did not resolve to the target IP in the last verification.",
})

// defaultTimeout is the per-query timeout applied when none is configured.
const defaultTimeout = 5 * time.Second

// dnsExchanger abstracts dns.Client.ExchangeContext for testability.
type dnsExchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, addr string) (*dns.Msg, time.Duration, error)
}

// Config holds verifier settings.
type Config struct {
	// Server is the resolver address as host or host:port. Port 53 is
	// assumed when absent.
	Server string
	// Net is "udp" (default) or "tcp".
	Net     string
	Timeout time.Duration
}

// Mismatch describes a hostname whose lookup did not return the target.
type Mismatch struct {
	Hostname string
	Got      []string
	Err      error
}

func (m Mismatch) String() string {
	if m.Err != nil {
		return fmt.Sprintf("%s: %v", m.Hostname, m.Err)
	}
	return fmt.Sprintf("%s: got %v", m.Hostname, m.Got)
}

// Verifier looks up A records on one server.
type Verifier struct {
	server    string
	exchanger dnsExchanger
	log       *slog.Logger
}

// New returns a Verifier for cfg.
func New(cfg Config, log *slog.Logger) *Verifier {
	if cfg.Net == "" {
		cfg.Net = "udp"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return newWithExchanger(cfg.Server, &dns.Client{Net: cfg.Net, Timeout: cfg.Timeout}, log)
}

func newWithExchanger(server string, e dnsExchanger, log *slog.Logger) *Verifier {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Verifier{server: server, exchanger: e, log: log}
}

// Check queries each hostname for A records and returns those that do not
// include target. Lookup failures count as mismatches. Check only returns an
// error when ctx is done.
func (v *Verifier) Check(ctx context.Context, hostnames []string, target string) ([]Mismatch, error) {
	var out []Mismatch
	for _, h := range hostnames {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		got, err := v.lookup(ctx, h)
		switch {
		case err != nil:
			v.log.Warn("verification lookup failed", "hostname", h, "server", v.server, "err", err)
			out = append(out, Mismatch{Hostname: h, Err: err})
		case !slices.Contains(got, target):
			v.log.Warn("hostname does not resolve to target", "hostname", h, "want", target, "got", got)
			out = append(out, Mismatch{Hostname: h, Got: got})
		default:
			v.log.Debug("hostname verified", "hostname", h, "value", target)
		}
	}
	mismatches.Set(float64(len(out)))
	v.log.Info("verification complete", "checked", len(hostnames), "mismatches", len(out))
	return out, nil
}

func (v *Verifier) lookup(ctx context.Context, host string) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	m.RecursionDesired = true

	r, _, err := v.exchanger.ExchangeContext(ctx, m, v.server)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", v.server, err)
	}
	if r.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("rcode %s (%d)", dns.RcodeToString[r.Rcode], r.Rcode)
	}

	var addrs []string
	for _, rr := range r.Answer {
		if a, ok := rr.(*dns.A); ok {
			addrs = append(addrs, a.A.String())
		}
	}
	return addrs, nil
}
