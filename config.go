package couchdiscover

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\${([^}]+)}`)

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() Config {
	return Config{
		Environment:  EnvironmentProduction,
		Log:          LogConfig{Level: "info"},
		DevHost:      DefaultDevHost,
		Kubeconfig:   DefaultKubeconfig,
		Scheme:       DefaultScheme,
		PollInterval: DefaultPollInterval,
		Topology:     TopologyKubernetes,
	}
}

// LoadConfig reads the yaml file located at path when not empty,
// then applies environment overrides and validates the result
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		expanded, err := expandEnvStrict(string(raw))
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// expandEnvStrict replaces ${VAR} references and fails
// when one of them is not set
func expandEnvStrict(s string) (string, error) {
	for _, m := range envVarPattern.FindAllStringSubmatch(s, -1) {
		if _, ok := os.LookupEnv(m[1]); !ok {
			return "", fmt.Errorf("%w: %s", ErrEnvNotSet, m[1])
		}
	}
	return envVarPattern.ReplaceAllStringFunc(s, func(v string) string {
		return os.Getenv(v[2 : len(v)-1])
	}), nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("ENVIRONMENT")); v != "" {
		c.Environment = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		c.Log.Level = v
	}
	if strings.TrimSpace(os.Getenv("LOG_FORMAT_JSON")) != "" {
		c.Log.JSON = true
	}
	if v := strings.TrimSpace(os.Getenv("COUCHDISCOVER_HOST")); v != "" {
		c.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("KUBECONFIG")); v != "" {
		c.Kubeconfig = v
	}

	if v := os.Getenv("COUCHDB_ADMIN_USER"); v != "" {
		if c.Static.Credentials == nil {
			c.Static.Credentials = &Credentials{}
		}
		c.Static.Credentials.Username = v
	}
	if v := os.Getenv("COUCHDB_ADMIN_PASS"); v != "" {
		if c.Static.Credentials == nil {
			c.Static.Credentials = &Credentials{}
		}
		c.Static.Credentials.Password = v
	}
	if v := strings.TrimSpace(os.Getenv("COUCHDB_CLUSTER_SIZE")); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: COUCHDB_CLUSTER_SIZE %q", ErrInvalidConfig, v)
		}
		c.Static.ClusterSize = size
	}
	return nil
}

// Validate checks enumerated values
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvironmentProduction, EnvironmentDev:
	default:
		return fmt.Errorf("%w: environment %q", ErrInvalidConfig, c.Environment)
	}
	switch c.Topology {
	case TopologyKubernetes, TopologyStatic:
	default:
		return fmt.Errorf("%w: topology %q", ErrInvalidConfig, c.Topology)
	}
	switch c.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("%w: scheme %q", ErrInvalidConfig, c.Scheme)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll-interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// IsDev returns true when running outside of the cluster
func (c *Config) IsDev() bool {
	return c.Environment == EnvironmentDev
}

// ResolveHost returns the hostname of the current node.
// Host wins, then DevHost in dev environment, then the pod fqdn
func (c *Config) ResolveHost(ctx context.Context) (string, error) {
	if c.Host != "" {
		return c.Host, nil
	}
	if c.IsDev() && c.DevHost != "" {
		return c.DevHost, nil
	}
	return LocalFQDN(ctx)
}

// KubeconfigPath returns the kubeconfig path to use or an empty string
// when the in cluster configuration must be used
func (c *Config) KubeconfigPath() string {
	if !c.IsDev() {
		return ""
	}
	if strings.HasPrefix(c.Kubeconfig, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, c.Kubeconfig[2:])
		}
	}
	return c.Kubeconfig
}

// StaticTopology builds a TopologyProvider from the static section
func (c *Config) StaticTopology(address NodeAddress) *StaticTopology {
	size := c.Static.ClusterSize
	if size == 0 && len(c.Static.Hosts) > 0 {
		size = len(c.Static.Hosts)
	}
	return &StaticTopology{
		Address:   address,
		HostNodes: c.Static.Hosts,
		Port:      c.Static.Ports,
		Creds:     c.Static.Credentials,
		Size:      size,
	}
}
