package couchdiscover

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// ParseNodeAddress will parse the provided fqdn into a NodeAddress.
// An error wrapping ErrInvalidAddress is returned when the hostname
// doesn't match the statefulset signature
func ParseNodeAddress(hostname string) (NodeAddress, error) {
	parts := strings.SplitN(hostname, ".", 5)
	if len(parts) < 5 || parts[3] != serviceMarker {
		return NodeAddress{}, fmt.Errorf("%w: %s", ErrInvalidAddress, hostname)
	}
	for _, part := range parts {
		if part == "" {
			return NodeAddress{}, fmt.Errorf("%w: %s", ErrInvalidAddress, hostname)
		}
	}

	setName, index, err := splitNode(parts[0])
	if err != nil {
		return NodeAddress{}, fmt.Errorf("%w: %s", ErrInvalidAddress, hostname)
	}

	return NodeAddress{
		SetName:   setName,
		Index:     index,
		Service:   parts[1],
		Namespace: parts[2],
		Domain:    parts[4],
	}, nil
}

// splitNode splits couchdb-2 into couchdb and 2
func splitNode(node string) (string, int, error) {
	i := strings.LastIndex(node, "-")
	if i <= 0 || i == len(node)-1 || node[i-1] == '-' {
		return "", 0, ErrInvalidAddress
	}
	digits := node[i+1:]
	// statefulset ordinals never carry leading zeros
	if len(digits) > 1 && digits[0] == '0' {
		return "", 0, ErrInvalidAddress
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", 0, ErrInvalidAddress
		}
	}
	index, err := strconv.Atoi(digits)
	if err != nil {
		return "", 0, ErrInvalidAddress
	}
	return node[:i], index, nil
}

// Node returns the first part of the hostname like couchdb-0
func (a NodeAddress) Node() string {
	return fmt.Sprintf("%s-%d", a.SetName, a.Index)
}

// String returns the fully qualified hostname
func (a NodeAddress) String() string {
	return strings.Join([]string{a.Node(), a.Service, a.Namespace, serviceMarker, a.Domain}, ".")
}

// IsMaster returns true when the address is the first pod of the statefulset
func (a NodeAddress) IsMaster() bool {
	return a.Index == 0
}

// WithOrdinal returns a copy of the address pointing to the sibling
// with the provided index
func (a NodeAddress) WithOrdinal(index int) NodeAddress {
	a.Index = index
	return a
}

// Master returns the address of the sibling with index 0
func (a NodeAddress) Master() NodeAddress {
	return a.WithOrdinal(0)
}

// WithNode returns a copy of the address with the first part of
// the hostname replaced by node, like couchdb-2
func (a NodeAddress) WithNode(node string) (NodeAddress, error) {
	setName, index, err := splitNode(node)
	if err != nil {
		return NodeAddress{}, fmt.Errorf("%w: %s", ErrInvalidAddress, node)
	}
	a.SetName = setName
	a.Index = index
	return a, nil
}

// LocalFQDN returns the fully qualified domain name of the current pod.
// It falls back to the os hostname when the canonical name cannot be resolved
func LocalFQDN(ctx context.Context) (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", err
	}
	if strings.Count(hostname, ".") >= 4 {
		return hostname, nil
	}

	cname, err := net.DefaultResolver.LookupCNAME(ctx, hostname)
	if err != nil || cname == "" {
		return hostname, nil
	}
	return strings.TrimSuffix(cname, "."), nil
}
