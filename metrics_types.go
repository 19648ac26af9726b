package couchdiscover

import (
	"github.com/prometheus/client_golang/prometheus"
)

// waitKind labels poll attempts
type waitKind string

const (
	// waitUp is used while waiting for a node to be up
	waitUp waitKind = "up"

	// waitMaster is used while waiting for the master to be enabled
	waitMaster waitKind = "master_enabled"

	// waitLocalStatus is used while the local status cannot be read
	waitLocalStatus waitKind = "local_status"
)

// metrics holds Prometheus metrics for monitoring the bootstrap.
type metrics struct {
	// clusterState is a gauge that indicates the last state seen per node
	clusterState *prometheus.GaugeVec

	// phase is a gauge that indicates the current bootstrap phase
	phase *prometheus.GaugeVec

	// pollAttempts counts retries done in wait loops
	pollAttempts *prometheus.CounterVec

	// setupActions counts cluster setup actions by result
	setupActions *prometheus.CounterVec
}
