package couchdiscover

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type mockClusterNode struct {
	mock.Mock
	host string
}

func (m *mockClusterNode) String() string { return m.host }
func (m *mockClusterNode) Host() string   { return m.host }

func (m *mockClusterNode) Ports() Ports {
	return Ports{Data: DefaultDataPort, Admin: DefaultAdminPort}
}

func (m *mockClusterNode) Credentials() *Credentials {
	return &Credentials{Username: DefaultUsername, Password: DefaultPassword}
}

func (m *mockClusterNode) NodeName() string {
	return DefaultNodeNamePrefix + "@" + m.host
}

func (m *mockClusterNode) Up(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *mockClusterNode) Status(ctx context.Context) ClusterState {
	args := m.Called(ctx)
	return args.Get(0).(ClusterState)
}

func (m *mockClusterNode) Enable(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockClusterNode) AddNode(ctx context.Context, remote Remote) (bool, error) {
	args := m.Called(ctx, remote)
	return args.Bool(0), args.Error(1)
}

func (m *mockClusterNode) Finish(ctx context.Context) (Response, error) {
	args := m.Called(ctx)
	resp, _ := args.Get(0).(Response)
	return resp, args.Error(1)
}

type mockJournal struct {
	entries []JournalEntry
}

func (m *mockJournal) Record(entry JournalEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockJournal) Close() error { return nil }

func (m *mockJournal) phases() (phases []string) {
	for _, entry := range m.entries {
		phases = append(phases, entry.Phase)
	}
	return
}
