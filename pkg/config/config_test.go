package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every UNIFI_DNS_* variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, val, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		require.NoError(t, os.Unsetenv(key))
		t.Cleanup(func() { os.Setenv(key, val) })
	}
}

func required() map[string]any {
	return map[string]any{
		"controller": "https://192.168.1.1",
		"username":   "admin",
		"password":   "secret",
	}
}

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{Flags: required()})
	require.NoError(t, err)

	assert.Equal(t, "https://192.168.1.1", cfg.Controller)
	assert.Equal(t, "default", cfg.Site)
	assert.Equal(t, "10.0.10.31", cfg.TargetIP)
	assert.Equal(t, "json", cfg.Source)
	assert.Equal(t, "-", cfg.Path)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.False(t, cfg.DryRun)
}

func TestLoad_MissingRequired(t *testing.T) {
	clearEnv(t)

	_, err := Load(Options{})
	require.Error(t, err)
	for _, field := range []string{"Controller", "Username", "Password"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("UNIFI_DNS_CONTROLLER", "https://unifi.lan/")
	t.Setenv("UNIFI_DNS_USERNAME", "envuser")
	t.Setenv("UNIFI_DNS_PASSWORD", "envpass")
	t.Setenv("UNIFI_DNS_TARGET_IP", "10.1.2.3")
	t.Setenv("UNIFI_DNS_DRY_RUN", "true")
	t.Setenv("UNIFI_DNS_TIMEOUT", "45s")

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, "https://unifi.lan", cfg.Controller, "trailing slash is trimmed")
	assert.Equal(t, "envuser", cfg.Username)
	assert.Equal(t, "10.1.2.3", cfg.TargetIP)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	p := writeYAML(t, `
controller: https://10.0.0.1
username: fileuser
password: filepass
site: branch
source: docker
show_diff: true
log_format: text
timeout: 10s
`)

	cfg, err := Load(Options{File: p})
	require.NoError(t, err)
	assert.Equal(t, "https://10.0.0.1", cfg.Controller)
	assert.Equal(t, "branch", cfg.Site)
	assert.Equal(t, "docker", cfg.Source)
	assert.True(t, cfg.ShowDiff)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	p := writeYAML(t, `
controller: https://file
username: fileuser
password: filepass
target_ip: 10.0.0.1
site: fromfile
`)
	t.Setenv("UNIFI_DNS_TARGET_IP", "10.0.0.2")
	t.Setenv("UNIFI_DNS_USERNAME", "envuser")

	cfg, err := Load(Options{File: p, Flags: map[string]any{"target_ip": "10.0.0.3"}})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.3", cfg.TargetIP, "flags beat env")
	assert.Equal(t, "envuser", cfg.Username, "env beats file")
	assert.Equal(t, "fromfile", cfg.Site, "file beats defaults")
}

func TestLoad_FileNotFound(t *testing.T) {
	clearEnv(t)
	_, err := Load(Options{File: filepath.Join(t.TempDir(), "missing.yaml"), Flags: required()})
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]any{
		"controller not a url": {"controller": "not a url"},
		"target ip not ipv4":   {"target_ip": "fe80::1"},
		"target ip garbage":    {"target_ip": "10.0.0"},
		"unknown log level":    {"log_level": "trace"},
		"unknown log format":   {"log_format": "xml"},
		"unknown source":       {"source": "consul"},
		"zero timeout":         {"timeout": time.Duration(0)},
		"bad verify server":    {"verify_server": "not a server"},
		"empty site":           {"site": ""},
	}
	for name, override := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			flags := required()
			for k, v := range override {
				flags[k] = v
			}
			_, err := Load(Options{Flags: flags})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validation failed")
		})
	}
}

func TestLoad_VerifyServer(t *testing.T) {
	for _, v := range []string{"192.168.1.1", "192.168.1.1:53", "dns.lan:5353"} {
		t.Run(v, func(t *testing.T) {
			clearEnv(t)
			flags := required()
			flags["verify_server"] = v
			cfg, err := Load(Options{Flags: flags})
			require.NoError(t, err)
			assert.Equal(t, v, cfg.VerifyServer)
		})
	}
}

func TestLoad_WhenEnvLoaderFails(t *testing.T) {
	orig := envLoader
	envLoader = func(*koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { envLoader = orig }()

	_, err := Load(Options{Flags: required()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mocked error")
}

func TestConfig_Level(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "info", cfg.Level())
	cfg.LogLevel = "warn"
	assert.Equal(t, "warn", cfg.Level())
	cfg.Verbose = true
	assert.Equal(t, "debug", cfg.Level())
}

func TestConfig_LogValue_OmitsPassword(t *testing.T) {
	cfg := Defaults()
	cfg.Password = "hunter2"
	cfg.Username = "admin"

	var buf strings.Builder
	slog.New(slog.NewTextHandler(&buf, nil)).Info("config", "cfg", &cfg)
	assert.Contains(t, buf.String(), "cfg.username=admin")
	assert.NotContains(t, buf.String(), "hunter2")
}
