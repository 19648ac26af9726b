package couchdiscover

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ClusterState represent the cluster setup state of a couchdb node.
// The state can only be Unknown, Disabled, Enabled, EnabledAuthRequired, Finished
type ClusterState uint8

const (
	// StateUnknown is used when the node answered without a recognizable state
	StateUnknown ClusterState = iota

	// StateDisabled is a node not yet enabled for clustering
	StateDisabled

	// StateEnabled is a node enabled for clustering and accepting new nodes
	StateEnabled

	// StateEnabledAuthRequired is reported when couchdb refused the status
	// request because admin credentials are required.
	// Callers treat it like StateEnabled
	StateEnabledAuthRequired

	// StateFinished is a node whose cluster setup is done
	StateFinished
)

// Cluster setup actions
const (
	actionStatus  string = "status"
	actionEnable  string = "enable_cluster"
	actionAddNode string = "add_node"
	actionFinish  string = "finish_cluster"
)

const (
	// DefaultPollInterval is the time to wait between two checks
	// when waiting for a node to be up or enabled
	DefaultPollInterval time.Duration = 5 * time.Second

	// DefaultNodeNamePrefix is the erlang application name of couchdb nodes
	DefaultNodeNamePrefix string = "couchdb"

	clusterSetupPath string = "/_cluster_setup"
	membershipPath   string = "/_membership"
	upPath           string = "/_up"
)

// Resolver resolves hostnames, net.DefaultResolver satisfies it
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Remote is a node that can be added to a cluster
type Remote interface {
	// Host returns the hostname of the node
	Host() string

	// Ports returns data and admin ports of the node
	Ports() Ports

	// Credentials returns admin credentials of the node
	Credentials() *Credentials

	// NodeName returns the erlang node name like couchdb@host
	NodeName() string

	// Up returns true when the node endpoints are reachable
	Up(ctx context.Context) bool
}

// ClusterSetupOptions holds config used to build a ClusterSetupClient
type ClusterSetupOptions struct {
	// Scheme is http or https, defaults to http
	Scheme string

	// Host is the hostname of the couchdb node
	Host string

	// Ports are the data and admin ports of the node
	Ports Ports

	// Credentials are used once the cluster is enabled
	Credentials *Credentials

	// PollInterval is the time to wait between two checks
	// while waiting for the node to be up. Defaults to 5s
	PollInterval time.Duration

	// NodeNamePrefix is used to build node names like couchdb@host.
	// Defaults to couchdb
	NodeNamePrefix string

	// HTTPClient allows to override the default http client
	HTTPClient *http.Client

	// Resolver is used to check that remote nodes are resolvable.
	// Defaults to net.DefaultResolver
	Resolver Resolver

	// Logger expose zerolog so it can be override
	Logger *zerolog.Logger

	// metrics is set by the coordinator
	metrics *metrics
}

// ClusterSetupClient pairs the admin and data endpoints of a node
// and drives its cluster setup protocol
type ClusterSetupClient struct {
	// Logger expose zerolog so it can be override
	Logger *zerolog.Logger

	options ClusterSetupOptions

	// mu guards secure, admin and data which are rebuilt
	// when credentials are applied
	mu sync.RWMutex

	// secure is true once clients use credentials
	secure bool

	// admin is the client of the admin port
	admin *NodeClient

	// data is the client of the data port
	data *NodeClient

	metrics *metrics
}

// Membership is the answer of /_membership
type Membership struct {
	AllNodes     []string `json:"all_nodes"`
	ClusterNodes []string `json:"cluster_nodes"`
}

// clusterSetupPayload is the body sent to /_cluster_setup
type clusterSetupPayload struct {
	Action   string `json:"action"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}
