package couchdiscover

import "context"

const (
	// DefaultDataPort is the clustered http port of couchdb
	DefaultDataPort int = 5984

	// DefaultAdminPort is the node local http port of couchdb
	DefaultAdminPort int = 5986

	// DefaultUsername is the admin username used when none is configured
	DefaultUsername string = "admin"

	// DefaultPassword is the admin password used when none is configured
	DefaultPassword string = "secret"
)

// Ports holds the two http ports exposed by each couchdb node
type Ports struct {
	// Data is the clustered port serving application data
	Data int `yaml:"data"`

	// Admin is the node local port serving admin only databases
	Admin int `yaml:"admin"`
}

// Credentials holds couchdb admin username and password
type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// TopologyProvider supplies what we need to know about the statefulset
// the current node belongs to
type TopologyProvider interface {
	// Hosts returns the addresses of all siblings sorted by hostname
	Hosts(ctx context.Context) ([]NodeAddress, error)

	// Ports returns the couchdb service ports
	Ports(ctx context.Context) (Ports, error)

	// Credentials returns couchdb admin credentials.
	// Defaults are used when nothing is configured
	Credentials(ctx context.Context) (*Credentials, error)

	// ClusterSize returns the expected number of nodes in the cluster
	ClusterSize(ctx context.Context) (int, error)
}

// ClusterEnvironment is a snapshot of the topology as seen by
// the current node
type ClusterEnvironment struct {
	// Address of the current node
	Address NodeAddress

	// Ports used by all nodes of the statefulset
	Ports Ports

	// Credentials used once the cluster is enabled
	Credentials *Credentials

	// ExpectedClusterSize is the number of nodes the cluster must reach
	// before being finished
	ExpectedClusterSize int

	// Hosts are the siblings known at snapshot time
	Hosts []NodeAddress

	provider TopologyProvider
}

// StaticTopology is a TopologyProvider backed by configuration values.
// It's used in dev environment or outside of kubernetes
type StaticTopology struct {
	// Address of the current node, used to derive hosts
	// when HostNodes is empty
	Address NodeAddress

	// HostNodes are the first part of each sibling hostname like couchdb-1
	HostNodes []string

	// Port holds couchdb ports
	Port Ports

	// Creds holds admin credentials
	Creds *Credentials

	// Size is the expected cluster size
	Size int
}
