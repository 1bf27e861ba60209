// Command unifi-dns-sync converges the static DNS A records on a UniFi
// controller to a desired list of hostnames.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	dockerclient "github.com/docker/docker/client"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bkero/unifi-dns-sync/pkg/config"
	"github.com/bkero/unifi-dns-sync/pkg/controller"
	"github.com/bkero/unifi-dns-sync/pkg/hostname"
	"github.com/bkero/unifi-dns-sync/pkg/source"
	"github.com/bkero/unifi-dns-sync/pkg/unifi"
	"github.com/bkero/unifi-dns-sync/pkg/verify"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one sync and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("unifi-dns-sync", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: unifi-dns-sync [flags] [hostnames.json|-]\n\n")
		fs.PrintDefaults()
	}
	configFile, showVersion := registerFlags(fs)

	positional, err := parseArgs(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if *showVersion {
		fmt.Fprintln(stdout, "unifi-dns-sync", version)
		return 0
	}
	if len(positional) > 1 {
		fmt.Fprintf(stderr, "expected at most one hostname source, got %d\n", len(positional))
		fs.Usage()
		return 1
	}

	overrides := setFlags(fs)
	if len(positional) == 1 {
		overrides["path"] = positional[0]
	}
	cfg, err := config.Load(config.Options{File: *configFile, Flags: overrides})
	if err != nil {
		newLogger(stderr, "info", "json").Error("invalid configuration", "err", err)
		return 1
	}

	log := newLogger(stderr, cfg.Level(), cfg.LogFormat)
	log.Info("starting unifi-dns-sync", "version", version, "config", cfg)

	_, err = execute(ctx, cfg, stdin, stdout, log)

	if cfg.MetricsFile != "" {
		if werr := prometheus.WriteToTextfile(cfg.MetricsFile, prometheus.DefaultGatherer); werr != nil {
			log.Warn("failed to write metrics file", "path", cfg.MetricsFile, "err", werr)
		}
	}

	switch {
	case err == nil:
		return 0
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		log.Info("operation cancelled by user")
	default:
		log.Error("operation failed", "err", err)
	}
	return 1
}

// execute loads hostnames, authenticates and syncs. Failures of individual
// record operations are reported in the Result, not as an error.
func execute(ctx context.Context, cfg *config.Config, stdin io.Reader, stdout io.Writer, log *slog.Logger) (*controller.Result, error) {
	src, closeSrc, err := newSource(cfg, stdin, log)
	if err != nil {
		return nil, err
	}
	defer closeSrc()

	desired, err := loadHostnames(ctx, src, log)
	if err != nil {
		return nil, err
	}

	sess, err := unifi.Authenticate(ctx, unifi.Config{
		BaseURL:            cfg.Controller,
		Username:           cfg.Username,
		Password:           cfg.Password,
		Timeout:            cfg.Timeout,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}, log)
	if err != nil {
		return nil, err
	}

	ctrl := controller.New(unifi.NewClient(sess, cfg.Site, log), log, controller.Config{
		TargetIP: cfg.TargetIP,
		DryRun:   cfg.DryRun,
		ShowDiff: cfg.ShowDiff,
		Out:      stdout,
	})
	res, err := ctrl.Sync(ctx, desired)
	if err != nil {
		return res, err
	}

	if res.DryRun {
		log.Info("dry-run complete",
			"would_create", res.Created,
			"would_delete", res.Deleted,
			"existing", res.Existing,
		)
		return res, nil
	}
	log.Info("synchronization completed successfully",
		"created", res.Created,
		"deleted", res.Deleted,
		"existing", res.Existing,
		"failed", res.Failed,
	)

	if cfg.VerifyServer != "" {
		v := verify.New(verify.Config{Server: cfg.VerifyServer, Timeout: cfg.Timeout}, log)
		if _, err := v.Check(ctx, desired, cfg.TargetIP); err != nil {
			return res, err
		}
	}
	return res, nil
}

// newSource builds the configured hostname source and a func releasing it.
func newSource(cfg *config.Config, stdin io.Reader, log *slog.Logger) (source.Source, func(), error) {
	if cfg.Source != "docker" {
		return source.NewJSONSource(cfg.Path, stdin, log), func() {}, nil
	}

	var dockerOpts []dockerclient.Opt
	if cfg.DockerHost != "" {
		dockerOpts = append(dockerOpts, dockerclient.WithHost(cfg.DockerHost))
	}
	if cfg.DockerTLSCert != "" || cfg.DockerTLSKey != "" || cfg.DockerTLSCA != "" {
		dockerOpts = append(dockerOpts,
			dockerclient.WithTLSClientConfig(cfg.DockerTLSCA, cfg.DockerTLSCert, cfg.DockerTLSKey))
	}
	src, err := source.NewDockerSource(log, dockerOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Docker source: %w", err)
	}
	return src, func() {
		if cerr := src.Close(); cerr != nil {
			log.Warn("error closing Docker client", "err", cerr)
		}
	}, nil
}

// loadHostnames reads src and drops hostnames that fail validation.
func loadHostnames(ctx context.Context, src source.Source, log *slog.Logger) ([]string, error) {
	raw, err := src.Hostnames(ctx)
	if err != nil {
		return nil, err
	}
	valid := hostname.FilterValid(log, raw)
	if dropped := len(raw) - len(valid); dropped > 0 {
		log.Warn("filtered invalid hostnames", "count", dropped)
	}
	log.Info("loaded valid hostnames", "count", len(valid))
	return valid, nil
}

// registerFlags defines every command-line flag on fs. Flag names map to
// config keys by replacing '-' with '_'. Defaults shown in help come from
// config.Defaults; only explicitly set flags override other layers.
func registerFlags(fs *flag.FlagSet) (configFile *string, showVersion *bool) {
	d := config.Defaults()

	// ---- Controller flags ----
	fs.String("controller", "", "UniFi controller URL, e.g. https://192.168.1.1 (required)")
	fs.String("username", "", "Controller username (required)")
	fs.String("password", "", "Controller password (required)")
	fs.String("site", d.Site, "Controller site name")
	fs.Duration("timeout", d.Timeout, "Timeout for each controller request")
	fs.Bool("insecure-skip-verify", d.InsecureSkipVerify, "Skip TLS certificate verification for the controller")

	// ---- Sync flags ----
	fs.String("target-ip", d.TargetIP, "IP address every managed A record points at")
	fs.Bool("dry-run", false, "Show what would change without making changes")
	fs.Bool("show-diff", false, "Print a diff of DNS record changes")
	fs.String("verify-server", "", "DNS server (host[:port]) to query after sync to verify records")

	// ---- Source flags ----
	fs.String("source", d.Source, "Hostname source: json or docker")
	fs.String("docker-host", "", "Docker daemon address (e.g. unix:///var/run/docker.sock, tcp://host:2376)")
	fs.String("docker-tls-ca", "", "Path to Docker CA certificate for TLS connections")
	fs.String("docker-tls-cert", "", "Path to Docker client TLS certificate")
	fs.String("docker-tls-key", "", "Path to Docker client TLS key")

	// ---- Output flags ----
	fs.Bool("verbose", false, "Enable debug logging")
	fs.String("log-level", d.LogLevel, "Log level: debug, info, warn, error")
	fs.String("log-format", d.LogFormat, "Log format: json or text")
	fs.String("metrics-file", "", "Write Prometheus metrics to this file after the run")

	configFile = fs.String("config",
		envOr(config.EnvPrefix+"CONFIG", ""),
		"Path to a YAML config file")
	showVersion = fs.Bool("version", false, "Print the version and exit")
	return configFile, showVersion
}

// parseArgs parses flags and positional arguments in any order.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

// setFlags returns the explicitly set flags keyed by config name.
func setFlags(fs *flag.FlagSet) map[string]any {
	out := map[string]any{}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" || f.Name == "version" {
			return
		}
		if g, ok := f.Value.(flag.Getter); ok {
			out[strings.ReplaceAll(f.Name, "-", "_")] = g.Get()
		}
	})
	return out
}

// newLogger returns a logger writing to w at the given level. format "text"
// selects the text handler; anything else is JSON.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: l}
	if strings.ToLower(format) == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// envOr returns the value of the environment variable named key, or fallback
// if the variable is unset or empty.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
