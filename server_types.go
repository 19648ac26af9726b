package couchdiscover

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// DefaultHealthTimeout is the maximum time to check
// that the local node is up
const DefaultHealthTimeout time.Duration = 3 * time.Second

// statusSource is what the status server needs from the Coordinator
type statusSource interface {
	Status() CoordinatorStatus
	LocalUp(ctx context.Context) bool
}

// StatusServerOptions holds status server configuration
type StatusServerOptions struct {
	// Address to listen on like 127.0.0.1:8080
	Address string

	// Gatherer exposes metrics on /metrics when set
	Gatherer prometheus.Gatherer

	// Logger expose zerolog so it can be override
	Logger *zerolog.Logger
}

// StatusServer exposes health, bootstrap status and metrics over http
type StatusServer struct {
	// Logger expose zerolog so it can be override
	Logger *zerolog.Logger

	options StatusServerOptions

	source statusSource

	listener net.Listener

	server *http.Server
}
