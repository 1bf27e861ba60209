// Package controller implements the one-shot DNS reconciliation engine.
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bkero/unifi-dns-sync/pkg/plan"
	"github.com/bkero/unifi-dns-sync/pkg/provider"
	"github.com/bkero/unifi-dns-sync/pkg/report"
	"github.com/bkero/unifi-dns-sync/pkg/unifi"
)

// Prometheus metrics registered on the default registry.
var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unifi_dns_sync_runs_total",
		Help: "Total number of sync runs by result.",
	}, []string{"result"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "unifi_dns_sync_run_duration_seconds",
		Help:    "Duration of sync runs in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	recordsDesired = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "unifi_dns_sync_records_desired",
		Help: "Number of hostnames in the desired set of the last run.",
	})

	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unifi_dns_sync_operations_total",
		Help: "Total number of DNS record operations by type and result.",
	}, []string{"op", "result"})
)

// Config holds controller settings.
type Config struct {
	// TargetIP is the address every created A record points at.
	TargetIP string
	// DryRun computes and reports the change set without mutating anything.
	DryRun bool
	// ShowDiff renders the change set after a run that changed something,
	// or after any dry run.
	ShowDiff bool
	// Out receives the rendered diff. Default: os.Stdout.
	Out io.Writer
}

// Result summarises one run.
type Result struct {
	// Created and Deleted count successful operations, or intended ones when
	// DryRun is set.
	Created int
	Deleted int
	// Existing is the number of desired hostnames already present.
	Existing int
	// Failed counts create and delete calls that returned an error.
	Failed int

	DryRun bool
	// NoOp is set when the plan had nothing to create or delete. A run whose
	// operations all failed is not a no-op.
	NoOp bool

	// Planned is the computed change set.
	Planned *plan.ChangeSet
	// Applied holds only the operations that succeeded. Nil on dry runs.
	Applied *plan.ChangeSet
}

// Controller converges a provider's A records to a desired hostname set.
type Controller struct {
	provider provider.Provider
	log      *slog.Logger
	cfg      Config
}

// New returns a Controller wired with the given provider and config.
func New(prov provider.Provider, log *slog.Logger, cfg Config) *Controller {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Controller{provider: prov, log: log, cfg: cfg}
}

// Sync lists existing records, computes the change set against desired and
// applies it. Only a failure to list records, or cancellation, is returned
// as an error; individual create and delete failures are counted in the
// Result.
func (c *Controller) Sync(ctx context.Context, desired []string) (res *Result, retErr error) {
	start := time.Now()
	defer func() {
		runDuration.Observe(time.Since(start).Seconds())
		switch {
		case retErr != nil:
			runsTotal.WithLabelValues("error").Inc()
		case res.DryRun:
			runsTotal.WithLabelValues("dry_run").Inc()
		default:
			runsTotal.WithLabelValues("success").Inc()
		}
	}()

	recordsDesired.Set(float64(len(desired)))

	existing, err := c.provider.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch existing records: %w", err)
	}

	cs := plan.Calculate(desired, existing)
	c.log.Info("synchronization plan",
		"create", len(cs.Create),
		"delete", len(cs.Delete),
		"existing", len(cs.Unchanged),
	)

	if c.cfg.DryRun {
		c.log.Info("dry-run enabled, no changes will be made")
		logChanges(c.log, cs, c.cfg.TargetIP)
		res := &Result{
			Created:  len(cs.Create),
			Deleted:  len(cs.Delete),
			Existing: len(cs.Unchanged),
			DryRun:   true,
			NoOp:     cs.IsEmpty(),
			Planned:  cs,
		}
		if c.cfg.ShowDiff {
			if err := report.Write(c.cfg.Out, cs, c.cfg.TargetIP); err != nil {
				c.log.Warn("writing diff failed", "err", err)
			}
		}
		return res, nil
	}

	if cs.IsEmpty() {
		c.log.Info("no changes needed, DNS records are already synchronized")
		return &Result{
			Existing: len(cs.Unchanged),
			NoOp:     true,
			Planned:  cs,
			Applied:  &plan.ChangeSet{Create: []string{}, Delete: []plan.Deletion{}, Unchanged: cs.Unchanged},
		}, nil
	}

	res, err = c.Apply(ctx, cs)
	if err != nil {
		return res, err
	}

	if res.Applied.IsEmpty() {
		c.log.Warn("no changes made, every planned operation failed", "failed", res.Failed)
	} else if c.cfg.ShowDiff {
		if err := report.Write(c.cfg.Out, res.Applied, c.cfg.TargetIP); err != nil {
			c.log.Warn("writing diff failed", "err", err)
		}
	}
	return res, nil
}

// Apply performs the creates then the deletes in cs. Each operation is
// attempted once; a failure is logged and the rest of the batch continues.
// Apply stops before the next operation once ctx is done and returns the
// partial Result with ctx's error.
func (c *Controller) Apply(ctx context.Context, cs *plan.ChangeSet) (*Result, error) {
	applied := &plan.ChangeSet{
		Create:    []string{},
		Delete:    []plan.Deletion{},
		Unchanged: cs.Unchanged,
	}
	res := &Result{
		Existing: len(cs.Unchanged),
		Planned:  cs,
		Applied:  applied,
	}

	for _, h := range cs.Create {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, err := c.provider.Create(ctx, h, c.cfg.TargetIP); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			c.opFailed("create", h, err)
			res.Failed++
			continue
		}
		operationsTotal.WithLabelValues("create", "success").Inc()
		applied.Create = append(applied.Create, h)
		res.Created++
	}

	for _, d := range cs.Delete {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := c.provider.Delete(ctx, d.ID); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			c.opFailed("delete", d.Hostname, err)
			res.Failed++
			continue
		}
		operationsTotal.WithLabelValues("delete", "success").Inc()
		applied.Delete = append(applied.Delete, d)
		res.Deleted++
	}

	c.log.Info("changes applied",
		"created", res.Created,
		"deleted", res.Deleted,
		"existing", res.Existing,
		"failed", res.Failed,
	)
	return res, nil
}

func (c *Controller) opFailed(op, host string, err error) {
	operationsTotal.WithLabelValues(op, "error").Inc()
	attrs := []any{"op", op, "hostname", host, "err", err}
	var reqErr *unifi.RequestError
	if errors.As(err, &reqErr) {
		attrs = append(attrs,
			"method", reqErr.Method,
			"url", reqErr.URL,
			"status", reqErr.Status,
			"body", reqErr.Body,
		)
	}
	c.log.Error("DNS record operation failed", attrs...)
}

// logChanges logs the planned changes at INFO level for dry-run inspection.
func logChanges(log *slog.Logger, cs *plan.ChangeSet, target string) {
	for _, h := range cs.Create {
		log.Info("dry-run: would create", "hostname", h, "value", target)
	}
	for _, d := range cs.Delete {
		log.Info("dry-run: would delete", "hostname", d.Hostname, "id", d.ID)
	}
}
