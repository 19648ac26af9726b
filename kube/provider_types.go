package kube

import (
	"github.com/Lord-Y/couchdiscover"
	"github.com/rs/zerolog"
	"k8s.io/client-go/kubernetes"
)

const (
	// envAdminUser is the container env var holding the admin username
	envAdminUser string = "COUCHDB_ADMIN_USER"

	// envAdminPass is the container env var holding the admin password
	envAdminPass string = "COUCHDB_ADMIN_PASS"

	// envClusterSize overrides the statefulset replicas
	envClusterSize string = "COUCHDB_CLUSTER_SIZE"
)

// Options holds provider configuration
type Options struct {
	// Address of the current node. Namespace, service and
	// statefulset name are read from it
	Address couchdiscover.NodeAddress

	// Client is the kubernetes client to use
	Client kubernetes.Interface

	// Logger expose zerolog so it can be override
	Logger *zerolog.Logger
}

// Provider is a couchdiscover.TopologyProvider backed by the kubernetes api.
// Every call queries the api so a new snapshot reflects scaling
type Provider struct {
	Logger *zerolog.Logger

	address couchdiscover.NodeAddress
	client  kubernetes.Interface
}
