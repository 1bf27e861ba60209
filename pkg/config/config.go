// Package config loads unifi-dns-sync settings from defaults, an optional
// YAML file, UNIFI_DNS_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "UNIFI_DNS_"

// Config holds every setting of a run.
type Config struct {
	// Controller is the controller base URL, e.g. https://192.168.1.1.
	Controller string `koanf:"controller" validate:"required,url"`
	Username   string `koanf:"username" validate:"required"`
	Password   string `koanf:"password" validate:"required"`
	Site       string `koanf:"site" validate:"required"`

	// TargetIP is the address every managed A record points at.
	TargetIP string `koanf:"target_ip" validate:"required,ipv4"`

	// Source selects where desired hostnames come from.
	Source string `koanf:"source" validate:"required,oneof=json docker"`
	// Path is the JSON hostname file; "-" reads stdin.
	Path string `koanf:"path"`

	// Docker daemon connection for the docker source. Empty values fall
	// back to the DOCKER_* environment.
	DockerHost    string `koanf:"docker_host"`
	DockerTLSCA   string `koanf:"docker_tls_ca"`
	DockerTLSCert string `koanf:"docker_tls_cert"`
	DockerTLSKey  string `koanf:"docker_tls_key"`

	DryRun   bool `koanf:"dry_run"`
	ShowDiff bool `koanf:"show_diff"`

	Verbose   bool   `koanf:"verbose"`
	LogLevel  string `koanf:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat string `koanf:"log_format" validate:"required,oneof=json text"`

	Timeout            time.Duration `koanf:"timeout" validate:"gt=0"`
	InsecureSkipVerify bool          `koanf:"insecure_skip_verify"`

	// VerifyServer, when set, is queried after the run to check that every
	// desired hostname resolves to TargetIP.
	VerifyServer string `koanf:"verify_server" validate:"omitempty,hostname_port|ip"`
	// MetricsFile, when set, receives the Prometheus metrics in textfile format.
	MetricsFile string `koanf:"metrics_file"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Site:               "default",
		TargetIP:           "10.0.10.31",
		Source:             "json",
		Path:               "-",
		LogLevel:           "info",
		LogFormat:          "json",
		Timeout:            30 * time.Second,
		InsecureSkipVerify: true,
	}
}

// Options tells Load where to look beyond defaults and the environment.
type Options struct {
	// File is an optional YAML file path.
	File string
	// Flags holds explicitly set command-line values keyed by koanf name.
	Flags map[string]any
}

// envLoader loads UNIFI_DNS_* variables. It can be replaced in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), value
		},
	}), nil)
}

// Load merges all configuration layers and validates the result.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", opts.File, err)
		}
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	if len(opts.Flags) > 0 {
		if err := k.Load(confmap.Provider(opts.Flags, "."), nil); err != nil {
			return nil, fmt.Errorf("error loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	cfg.Controller = strings.TrimRight(cfg.Controller, "/")

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return &cfg, nil
}

// Level returns the effective log level. Verbose forces debug.
func (c *Config) Level() string {
	if c.Verbose {
		return "debug"
	}
	return c.LogLevel
}

// LogValue implements slog.LogValuer and omits the password.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("controller", c.Controller),
		slog.String("username", c.Username),
		slog.String("site", c.Site),
		slog.String("target_ip", c.TargetIP),
		slog.String("source", c.Source),
		slog.Bool("dry_run", c.DryRun),
		slog.Duration("timeout", c.Timeout),
		slog.Bool("insecure_skip_verify", c.InsecureSkipVerify),
	)
}
