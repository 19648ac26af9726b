package couchdiscover

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace string = "couchdiscover"

var allClusterStates = []ClusterState{StateUnknown, StateDisabled, StateEnabled, StateEnabledAuthRequired, StateFinished}

// newMetrics initialize Prometheus metrics and register them
// with registerer when not nil
func newMetrics(registerer prometheus.Registerer) *metrics {
	m := &metrics{
		clusterState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "cluster_state",
				Help:      "Indicates the last cluster setup state seen per node",
			},
			[]string{"node", "state"},
		),
		phase: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "bootstrap_phase",
				Help:      "Indicates the current bootstrap phase",
			},
			[]string{"phase"},
		),
		pollAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "poll_attempts_total",
				Help:      "Number of retries done while waiting for a condition",
			},
			[]string{"wait"},
		),
		setupActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "setup_actions_total",
				Help:      "Number of cluster setup actions submitted by result",
			},
			[]string{"action", "success"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(m.clusterState)
		registerer.MustRegister(m.phase)
		registerer.MustRegister(m.pollAttempts)
		registerer.MustRegister(m.setupActions)
	}
	return m
}

// setClusterState sets the gauge of the provided node to state
func (m *metrics) setClusterState(node string, state ClusterState) {
	if m == nil {
		return
	}
	for _, s := range allClusterStates {
		value := 0.0
		if s == state {
			value = 1
		}
		m.clusterState.With(prometheus.Labels{"node": node, "state": s.String()}).Set(value)
	}
}

// setPhase always resets all phases before setting the current one
func (m *metrics) setPhase(phase Phase) {
	if m == nil {
		return
	}
	for _, p := range allPhases {
		value := 0.0
		if p == phase {
			value = 1
		}
		m.phase.With(prometheus.Labels{"phase": p.String()}).Set(value)
	}
}

func (m *metrics) incPollAttempts(kind waitKind) {
	if m == nil {
		return
	}
	m.pollAttempts.With(prometheus.Labels{"wait": string(kind)}).Inc()
}

func (m *metrics) incSetupAction(action string, success bool) {
	if m == nil {
		return
	}
	m.setupActions.With(prometheus.Labels{"action": action, "success": strconv.FormatBool(success)}).Inc()
}
