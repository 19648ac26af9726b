package couchdiscover

const (
	// serviceMarker is the literal segment kubernetes inserts between
	// the namespace and the cluster domain
	serviceMarker string = "svc"

	// DefaultDevHost is the hostname used in dev environment
	// when no explicit host override is provided
	DefaultDevHost string = "couchdb-0.couchdb.default.svc.cluster.local"
)

// NodeAddress is the identity of a statefulset pod derived from its
// ordinal hostname <set>-<index>.<service>.<namespace>.svc.<domain>
type NodeAddress struct {
	// SetName is the name of the statefulset
	SetName string

	// Index is the ordinal index of the pod in the statefulset
	Index int

	// Service is the governing headless service of the statefulset
	Service string

	// Namespace is the kubernetes namespace
	Namespace string

	// Domain is the cluster domain, usually cluster.local
	Domain string
}
