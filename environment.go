package couchdiscover

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// NewClusterEnvironment will resolve from the provider the topology
// of the statefulset address belongs to
func NewClusterEnvironment(ctx context.Context, address NodeAddress, provider TopologyProvider) (*ClusterEnvironment, error) {
	if provider == nil {
		return nil, errNoTopologyProvider
	}

	ports, err := provider.Ports(ctx)
	if err != nil {
		return nil, fmt.Errorf("fail to fetch ports: %w", err)
	}

	creds, err := provider.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("fail to fetch credentials: %w", err)
	}

	size, err := provider.ClusterSize(ctx)
	if err != nil {
		return nil, fmt.Errorf("fail to fetch cluster size: %w", err)
	}
	if size < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidClusterSize, size)
	}

	hosts, err := provider.Hosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("fail to fetch hosts: %w", err)
	}

	return &ClusterEnvironment{
		Address:             address,
		Ports:               ports,
		Credentials:         creds,
		ExpectedClusterSize: size,
		Hosts:               hosts,
		provider:            provider,
	}, nil
}

// Reload returns a new snapshot built from the same provider
func (e *ClusterEnvironment) Reload(ctx context.Context) (*ClusterEnvironment, error) {
	return NewClusterEnvironment(ctx, e.Address, e.provider)
}

// IsFirst returns true if the current node is the first of the cluster
func (e *ClusterEnvironment) IsFirst() bool {
	return e.Address.Index == 0
}

// IsLast returns true if the current node is the last expected node of the cluster
func (e *ClusterEnvironment) IsLast() bool {
	return e.Address.Index+1 == e.ExpectedClusterSize
}

// IsSingleNode returns true when the cluster is made of a single node
func (e *ClusterEnvironment) IsSingleNode() bool {
	return e.ExpectedClusterSize == 1
}

// String returns a human readable snapshot without secrets
func (e *ClusterEnvironment) String() string {
	nodes := make([]string, 0, len(e.Hosts))
	for _, host := range e.Hosts {
		nodes = append(nodes, host.Node())
	}
	return fmt.Sprintf("ClusterEnvironment(index: %d, statefulset: %s, cluster_size: %d, ports: %d/%d, hosts(%d): [%s])",
		e.Address.Index, e.Address.SetName, e.ExpectedClusterSize, e.Ports.Data, e.Ports.Admin,
		len(nodes), strings.Join(nodes, " "))
}

// Hosts returns siblings addresses derived from HostNodes or,
// when empty, from the expected cluster size
func (s *StaticTopology) Hosts(_ context.Context) ([]NodeAddress, error) {
	var hosts []NodeAddress
	if len(s.HostNodes) == 0 {
		for i := 0; i < s.Size; i++ {
			hosts = append(hosts, s.Address.WithOrdinal(i))
		}
		return hosts, nil
	}

	for _, node := range s.HostNodes {
		host, err := s.Address.WithNode(node)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, host)
	}
	sort.Slice(hosts, func(i, j int) bool {
		return hosts[i].String() < hosts[j].String()
	})
	return hosts, nil
}

// Ports returns configured ports or couchdb defaults
func (s *StaticTopology) Ports(_ context.Context) (Ports, error) {
	ports := s.Port
	if ports.Data == 0 {
		ports.Data = DefaultDataPort
	}
	if ports.Admin == 0 {
		ports.Admin = DefaultAdminPort
	}
	return ports, nil
}

// Credentials returns configured credentials, falling back to defaults
// for empty fields
func (s *StaticTopology) Credentials(_ context.Context) (*Credentials, error) {
	return WithDefaultCredentials(s.Creds), nil
}

// ClusterSize returns the configured size
func (s *StaticTopology) ClusterSize(_ context.Context) (int, error) {
	return s.Size, nil
}

// WithDefaultCredentials returns a copy of creds where empty
// fields are replaced by DefaultUsername and DefaultPassword
func WithDefaultCredentials(creds *Credentials) *Credentials {
	c := Credentials{Username: DefaultUsername, Password: DefaultPassword}
	if creds != nil {
		if creds.Username != "" {
			c.Username = creds.Username
		}
		if creds.Password != "" {
			c.Password = creds.Password
		}
	}
	return &c
}

// String never exposes the password
func (c *Credentials) String() string {
	if c == nil {
		return "<none>"
	}
	return c.Username + ":****"
}
