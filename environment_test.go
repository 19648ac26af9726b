package couchdiscover

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/fake"
	"github.com/stretchr/testify/assert"
)

type failingTopology struct {
	*StaticTopology
}

func (failingTopology) Ports(context.Context) (Ports, error) {
	return Ports{}, errors.New("api down")
}

func TestEnvironment_new(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	address, err := ParseNodeAddress("couchdb-2.couchdb.default.svc.cluster.local")
	assert.Nil(err)

	t.Run("defaults", func(t *testing.T) {
		env, err := NewClusterEnvironment(ctx, address, &StaticTopology{Address: address, Size: 3})
		assert.Nil(err)
		assert.Equal(Ports{Data: DefaultDataPort, Admin: DefaultAdminPort}, env.Ports)
		assert.Equal(&Credentials{Username: DefaultUsername, Password: DefaultPassword}, env.Credentials)
		assert.Equal(3, env.ExpectedClusterSize)
		assert.Len(env.Hosts, 3)
		assert.Equal("couchdb-0.couchdb.default.svc.cluster.local", env.Hosts[0].String())
		assert.False(env.IsFirst())
		assert.True(env.IsLast())
		assert.False(env.IsSingleNode())
		assert.NotContains(env.String(), DefaultPassword)
		assert.Contains(env.String(), "hosts(3): [couchdb-0 couchdb-1 couchdb-2]")
	})

	t.Run("explicit", func(t *testing.T) {
		creds := &Credentials{Username: fake.CharactersN(6), Password: fake.CharactersN(10)}
		topology := &StaticTopology{
			Address:   address,
			HostNodes: []string{"couchdb-2", "couchdb-0", "couchdb-1"},
			Port:      Ports{Data: 15984, Admin: 15986},
			Creds:     creds,
			Size:      5,
		}
		env, err := NewClusterEnvironment(ctx, address, topology)
		assert.Nil(err)
		assert.Equal(creds, env.Credentials)
		assert.Equal(15984, env.Ports.Data)
		assert.Equal("couchdb-1", env.Hosts[1].Node())
		assert.False(env.IsLast())

		topology.Size = 3
		reloaded, err := env.Reload(ctx)
		assert.Nil(err)
		assert.True(reloaded.IsLast())
		assert.Equal(5, env.ExpectedClusterSize)
	})

	t.Run("single_node", func(t *testing.T) {
		master := address.Master()
		env, err := NewClusterEnvironment(ctx, master, &StaticTopology{Address: master, Size: 1})
		assert.Nil(err)
		assert.True(env.IsFirst())
		assert.True(env.IsLast())
		assert.True(env.IsSingleNode())
	})

	t.Run("errors", func(t *testing.T) {
		_, err := NewClusterEnvironment(ctx, address, &StaticTopology{Address: address, Size: 0})
		assert.ErrorIs(err, ErrInvalidClusterSize)

		_, err = NewClusterEnvironment(ctx, address, nil)
		assert.ErrorIs(err, errNoTopologyProvider)

		_, err = NewClusterEnvironment(ctx, address, failingTopology{&StaticTopology{Size: 1}})
		assert.Error(err)

		_, err = NewClusterEnvironment(ctx, address, &StaticTopology{Address: address, Size: 1, HostNodes: []string{"plop"}})
		assert.ErrorIs(err, ErrInvalidAddress)
	})
}

func TestEnvironment_credentials(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(&Credentials{Username: DefaultUsername, Password: DefaultPassword}, WithDefaultCredentials(nil))
	assert.Equal(&Credentials{Username: "bob", Password: DefaultPassword}, WithDefaultCredentials(&Credentials{Username: "bob"}))
	assert.Equal("bob:****", (&Credentials{Username: "bob", Password: "x"}).String())

	var creds *Credentials
	assert.Equal("<none>", creds.String())
}
