package couchdiscover

import "time"

const (
	// EnvironmentProduction runs inside the cluster
	EnvironmentProduction string = "production"

	// EnvironmentDev runs from a workstation with a kubeconfig
	EnvironmentDev string = "dev"

	// TopologyKubernetes resolves the topology from the kubernetes api
	TopologyKubernetes string = "kubernetes"

	// TopologyStatic resolves the topology from the configuration
	TopologyStatic string = "static"

	// DefaultKubeconfig is the kubeconfig used in dev environment
	DefaultKubeconfig string = "~/.kube/config"
)

// LogConfig holds logger settings
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// StaticConfig holds the topology used when Topology is static
type StaticConfig struct {
	Ports       Ports        `yaml:"ports"`
	Credentials *Credentials `yaml:"credentials"`
	ClusterSize int          `yaml:"cluster-size"`

	// Hosts are the first part of siblings hostnames like couchdb-1.
	// They are derived from ClusterSize when empty
	Hosts []string `yaml:"hosts"`
}

// Config is the couchdiscover configuration
type Config struct {
	// Environment is production or dev
	Environment string `yaml:"environment"`

	Log LogConfig `yaml:"log"`

	// Host overrides the hostname of the current node
	Host string `yaml:"host"`

	// DevHost is the hostname used in dev environment when Host is empty
	DevHost string `yaml:"dev-host"`

	// Kubeconfig is only used in dev environment
	Kubeconfig string `yaml:"kubeconfig"`

	// Scheme used to talk to couchdb
	Scheme string `yaml:"scheme"`

	// PollInterval is the time to wait between two checks in wait loops
	PollInterval time.Duration `yaml:"poll-interval"`

	// ListenAddress of the status server. It's disabled when empty
	ListenAddress string `yaml:"listen-address"`

	// JournalPath is the directory of the bootstrap journal.
	// It's disabled when empty
	JournalPath string `yaml:"journal-path"`

	// Topology is kubernetes or static
	Topology string `yaml:"topology"`

	Static StaticConfig `yaml:"static"`
}
