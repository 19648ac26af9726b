package couchdiscover

import "errors"

var (
	ErrInvalidAddress     = errors.New("hostname doesn't match the signature of a kubernetes statefulset hostname")
	ErrUnreachable        = errors.New("endpoint unreachable")
	ErrInvalidClusterSize = errors.New("cluster size must be greater or equal to 1")
	ErrInvalidAction      = errors.New("invalid cluster setup action")
	ErrJournalPathEmpty   = errors.New("journal path is required")
	ErrEnvNotSet          = errors.New("environment variable is not set")
	ErrInvalidConfig      = errors.New("invalid configuration")
	errNoTopologyProvider = errors.New("no topology provider")
)
