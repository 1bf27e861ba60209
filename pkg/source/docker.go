package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	dockerclient "github.com/docker/docker/client"
)

const (
	labelPrefix   = "unifi-dns-sync/"
	labelHostname = labelPrefix + "hostname"
)

// dockerAPI is the subset of the Docker client used by DockerSource.
// Defined as an interface so tests can inject a mock.
type dockerAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	Close() error
}

// DockerSource implements Source by reading hostname labels from running
// containers.
type DockerSource struct {
	client dockerAPI
	log    *slog.Logger
}

// NewDockerSource returns a DockerSource that connects via the environment
// (DOCKER_HOST, DOCKER_TLS_VERIFY, etc.) or the default Unix socket.
// Additional dockerclient.Opt values are appended after the defaults and
// override env-based settings where they conflict (e.g. WithHost overrides
// DOCKER_HOST).
func NewDockerSource(log *slog.Logger, extraOpts ...dockerclient.Opt) (*DockerSource, error) {
	opts := []dockerclient.Opt{
		dockerclient.FromEnv,
		dockerclient.WithAPIVersionNegotiation(),
	}
	opts = append(opts, extraOpts...)
	c, err := dockerclient.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return newDockerSourceWithClient(c, log), nil
}

// newDockerSourceWithClient constructs a DockerSource with an injected client
// for unit testing.
func newDockerSourceWithClient(client dockerAPI, log *slog.Logger) *DockerSource {
	if log == nil {
		log = slog.Default()
	}
	return &DockerSource{client: client, log: log}
}

// Close releases the Docker client.
func (s *DockerSource) Close() error {
	return s.client.Close()
}

// Hostnames lists running containers and collects hostnames from their
// labels. Duplicates are dropped; first-seen order is kept.
func (s *DockerSource) Hostnames(ctx context.Context) ([]string, error) {
	containers, err := s.client.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(filters.Arg("status", "running")),
	})
	if err != nil {
		return nil, &LoadError{Source: "docker", Err: fmt.Errorf("listing containers: %w", err)}
	}

	seen := make(map[string]struct{})
	out := []string{}
	for _, c := range containers {
		id := c.ID
		if len(id) > 12 {
			id = id[:12]
		}
		for _, h := range hostnamesFromLabels(c.Labels) {
			if _, dup := seen[h]; dup {
				s.log.Debug("duplicate hostname label", "container", id, "hostname", h)
				continue
			}
			seen[h] = struct{}{}
			out = append(out, h)
		}
	}
	s.log.Info("loaded hostnames from docker", "containers", len(containers), "hostnames", len(out))
	return out, nil
}

// hostnamesFromLabels parses hostname labels from a container's label map.
// The plain label may hold a comma-separated list; indexed labels
// (unifi-dns-sync/hostname-0, -1, ...) are read until the first gap.
func hostnamesFromLabels(labels map[string]string) []string {
	var out []string
	if v, ok := labels[labelHostname]; ok {
		out = append(out, splitHostnames(v)...)
	}
	for i := 0; ; i++ {
		v, ok := labels[fmt.Sprintf("%s-%d", labelHostname, i)]
		if !ok {
			break
		}
		out = append(out, splitHostnames(v)...)
	}
	return out
}

func splitHostnames(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if h := strings.TrimSpace(part); h != "" {
			out = append(out, h)
		}
	}
	return out
}
