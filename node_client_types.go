package couchdiscover

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Role of a couchdb endpoint.
// It can only be RoleUndetermined, RoleAdmin or RoleData
type Role uint8

const (
	// RoleUndetermined is used when the endpoint could not be probed
	RoleUndetermined Role = iota

	// RoleAdmin is the node local port exposing admin only databases
	RoleAdmin

	// RoleData is the clustered port serving application data
	RoleData
)

const (
	// DefaultScheme is the scheme used to reach couchdb
	DefaultScheme string = "http"

	// DefaultRequestTimeout is the timeout of every http request
	DefaultRequestTimeout time.Duration = 10 * time.Second

	// nodesDB is the admin only database holding cluster members
	nodesDB string = "_nodes"
)

// adminOnlyDBs are the databases only reachable on the admin port
var adminOnlyDBs = []string{"_dbs", "_nodes", "_replicator", "_users"}

// NodeClientOptions holds config used to reach one couchdb endpoint
type NodeClientOptions struct {
	// Scheme is http or https, defaults to http
	Scheme string

	// Host is the hostname of the couchdb node
	Host string

	// Port is the port of the endpoint
	Port int

	// Credentials are sent with basic auth when not nil
	Credentials *Credentials

	// HTTPClient allows to override the default http client
	HTTPClient *http.Client

	// Logger expose zerolog so it can be override
	Logger *zerolog.Logger
}

// NodeClient talks to one couchdb endpoint
type NodeClient struct {
	// Logger expose zerolog so it can be override
	Logger *zerolog.Logger

	scheme      string
	host        string
	port        int
	credentials *Credentials
	httpClient  *http.Client

	// role is the role detected when the client was built
	role Role
}

// Response is a couchdb answer
type Response struct {
	// StatusCode is the http status code
	StatusCode int

	// Body is the raw body returned by couchdb
	Body []byte
}
