package couchdiscover

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddress_parse(t *testing.T) {
	assert := assert.New(t)

	tests := []struct {
		hostname string
		expected NodeAddress
		expErr   bool
	}{
		{
			hostname: "couchdb-0.couchdb.default.svc.cluster.local",
			expected: NodeAddress{SetName: "couchdb", Index: 0, Service: "couchdb", Namespace: "default", Domain: "cluster.local"},
		},
		{
			hostname: "my-couch-12.couch-svc.prod.svc.k8s.example.com",
			expected: NodeAddress{SetName: "my-couch", Index: 12, Service: "couch-svc", Namespace: "prod", Domain: "k8s.example.com"},
		},
		{
			hostname: "couchdb.default.svc.cluster.local",
			expErr:   true,
		},
		{
			hostname: "couchdb-x.couchdb.default.svc.cluster.local",
			expErr:   true,
		},
		{
			hostname: "couchdb-0.couchdb.default.pod.cluster.local",
			expErr:   true,
		},
		{
			hostname: "-0.couchdb.default.svc.cluster.local",
			expErr:   true,
		},
		{
			hostname: "couchdb-.couchdb.default.svc.cluster.local",
			expErr:   true,
		},
		{
			hostname: "couchdb--1.couchdb.default.svc.cluster.local",
			expErr:   true,
		},
		{
			hostname: "couchdb-01.couchdb.default.svc.cluster.local",
			expErr:   true,
		},
		{
			hostname: "localhost",
			expErr:   true,
		},
		{
			hostname: "",
			expErr:   true,
		},
	}

	for _, tc := range tests {
		address, err := ParseNodeAddress(tc.hostname)
		if tc.expErr {
			assert.ErrorIs(err, ErrInvalidAddress, tc.hostname)
			continue
		}
		assert.Nil(err)
		assert.Equal(tc.expected, address)
	}
}

func TestAddress_roundTrip(t *testing.T) {
	assert := assert.New(t)

	hosts := []string{
		"couchdb-0.couchdb.default.svc.cluster.local",
		"couchdb-1.couchdb.default.svc.cluster.local",
		"db-set-42.headless.team-a.svc.cluster.internal.corp",
	}
	for _, host := range hosts {
		address, err := ParseNodeAddress(host)
		assert.Nil(err)
		assert.Equal(host, address.String())

		reparsed, err := ParseNodeAddress(address.String())
		assert.Nil(err)
		assert.Equal(address, reparsed)
	}
}

func TestAddress_derive(t *testing.T) {
	assert := assert.New(t)

	address, err := ParseNodeAddress("couchdb-3.couchdb.default.svc.cluster.local")
	assert.Nil(err)
	assert.False(address.IsMaster())
	assert.Equal("couchdb-3", address.Node())

	t.Run("master", func(t *testing.T) {
		master := address.Master()
		assert.True(master.IsMaster())
		assert.Equal("couchdb-0.couchdb.default.svc.cluster.local", master.String())
		assert.True(address.WithOrdinal(0).IsMaster())
		// the source address is never mutated
		assert.Equal(3, address.Index)
	})

	t.Run("with_ordinal", func(t *testing.T) {
		sibling := address.WithOrdinal(1)
		assert.Equal("couchdb-1.couchdb.default.svc.cluster.local", sibling.String())
		assert.NotEqual(address, sibling)
		assert.Equal(address, sibling.WithOrdinal(3))
	})

	t.Run("with_node", func(t *testing.T) {
		sibling, err := address.WithNode("couchdb-2")
		assert.Nil(err)
		assert.Equal(2, sibling.Index)
		assert.Equal("couchdb-2.couchdb.default.svc.cluster.local", sibling.String())

		_, err = address.WithNode("couchdb")
		assert.ErrorIs(err, ErrInvalidAddress)
	})
}

func TestAddress_localFQDN(t *testing.T) {
	assert := assert.New(t)

	hostname, err := LocalFQDN(context.Background())
	assert.Nil(err)
	assert.NotEmpty(hostname)
}
