package couchdiscover

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Phase represent the bootstrap progress of the current node
type Phase uint32

const (
	// PhaseStarting is the phase before any status was read
	PhaseStarting Phase = iota

	// PhaseEnabling is used while enabling the local node
	PhaseEnabling

	// PhaseWaitingMaster is used while waiting for the master to be enabled
	PhaseWaitingMaster

	// PhaseAdding is used while adding the local node to the master
	PhaseAdding

	// PhaseFinishing is used while finishing the cluster
	PhaseFinishing

	// PhaseDone means there is nothing left to do
	PhaseDone

	// PhaseFailed means the bootstrap was aborted
	PhaseFailed
)

var allPhases = []Phase{PhaseStarting, PhaseEnabling, PhaseWaitingMaster, PhaseAdding, PhaseFinishing, PhaseDone, PhaseFailed}

// clusterNode is what the coordinator needs from a ClusterSetupClient
type clusterNode interface {
	Remote

	// String returns the hostname of the node
	String() string

	// Status returns the cluster setup state of the node
	Status(ctx context.Context) ClusterState

	// Enable enables the node for clustering
	Enable(ctx context.Context) (bool, error)

	// AddNode adds remote to the cluster of the node
	AddNode(ctx context.Context, remote Remote) (bool, error)

	// Finish finishes the cluster setup
	Finish(ctx context.Context) (Response, error)
}

// CoordinatorOptions holds config that will be modified by users
type CoordinatorOptions struct {
	// Logger expose zerolog so it can be override
	Logger *zerolog.Logger

	// Scheme is http or https, defaults to http
	Scheme string

	// PollInterval is the time to wait between two checks
	// in wait loops. Defaults to 5s
	PollInterval time.Duration

	// HTTPClient allows to override the default http client
	HTTPClient *http.Client

	// Resolver is used to check that nodes are resolvable
	Resolver Resolver

	// Journal records phase transitions when set
	Journal Journal

	// MetricsRegisterer is used to register metrics when set
	MetricsRegisterer prometheus.Registerer
}

// Coordinator drives the bootstrap of the cluster from the
// point of view of the current node
type Coordinator struct {
	// Logger expose zerolog so it can be override
	Logger *zerolog.Logger

	options CoordinatorOptions

	env *ClusterEnvironment

	// local is the node the current process runs along
	local clusterNode

	// master is the node with index 0. It's nil when local is the master
	master clusterNode

	// runID identifies this bootstrap run in logs and journal
	runID string

	phase atomic.Uint32

	journal Journal

	metrics *metrics
}

// CoordinatorStatus is a snapshot of the coordinator progress
type CoordinatorStatus struct {
	RunID               string `json:"run_id"`
	Phase               string `json:"phase"`
	Address             string `json:"address"`
	Master              bool   `json:"master"`
	ExpectedClusterSize int    `json:"expected_cluster_size"`
}
