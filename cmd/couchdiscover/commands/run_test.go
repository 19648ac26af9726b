package commands

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/Lord-Y/couchdiscover"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v3"
)

func clearEnv(t *testing.T) {
	for _, name := range []string{
		"ENVIRONMENT", "LOG_LEVEL", "LOG_FORMAT_JSON", "COUCHDISCOVER_HOST", "KUBECONFIG",
		"COUCHDB_ADMIN_USER", "COUCHDB_ADMIN_PASS", "COUCHDB_CLUSTER_SIZE", "COUCHDISCOVER_CONFIG",
	} {
		t.Setenv(name, "")
	}
}

func TestRun_applyFlags(t *testing.T) {
	assert := assert.New(t)
	clearEnv(t)

	config := couchdiscover.DefaultConfig()
	cmd := Run()
	cmd.Action = func(_ context.Context, c *cli.Command) error {
		applyFlags(c, &config)
		return nil
	}

	err := cmd.Run(context.Background(), []string{
		"run",
		"--host", "couchdb-1.couchdb.default.svc.cluster.local",
		"--log-level", "debug",
		"--listen-address", "127.0.0.1:8080",
		"--journal", "/tmp/journal",
	})
	assert.Nil(err)
	assert.Equal("couchdb-1.couchdb.default.svc.cluster.local", config.Host)
	assert.Equal("debug", config.Log.Level)
	assert.Equal("127.0.0.1:8080", config.ListenAddress)
	assert.Equal("/tmp/journal", config.JournalPath)
	assert.Equal(couchdiscover.TopologyKubernetes, config.Topology)
}

func TestRun_configurationErrors(t *testing.T) {
	assert := assert.New(t)
	clearEnv(t)

	err := Run().Run(context.Background(), []string{"run", "--host", "plop", "--log-level", "error"})
	assert.ErrorIs(err, couchdiscover.ErrInvalidAddress)

	err = Run().Run(context.Background(), []string{"run", "--config", t.TempDir() + "/missing.yml"})
	assert.Error(err)

	nop := zerolog.Nop()
	a := &app{config: couchdiscover.DefaultConfig(), logger: &nop}
	a.config.Topology = couchdiscover.TopologyStatic
	a.config.Environment = couchdiscover.EnvironmentDev
	err = a.start(context.Background())
	assert.ErrorIs(err, couchdiscover.ErrInvalidClusterSize)
}

func TestRun_topology(t *testing.T) {
	assert := assert.New(t)

	address, err := couchdiscover.ParseNodeAddress(couchdiscover.DefaultDevHost)
	assert.Nil(err)

	config := couchdiscover.DefaultConfig()
	config.Topology = couchdiscover.TopologyStatic
	config.Static.ClusterSize = 3
	nop := zerolog.Nop()
	a := &app{config: config, logger: &nop}

	provider, err := a.topology(address)
	assert.Nil(err)
	size, err := provider.ClusterSize(context.Background())
	assert.Nil(err)
	assert.Equal(3, size)

	a.config.Topology = couchdiscover.TopologyKubernetes
	a.config.Environment = couchdiscover.EnvironmentDev
	a.config.Kubeconfig = t.TempDir() + "/missing"
	_, err = a.topology(address)
	assert.Error(err)
}

func TestRun_ignoreCanceled(t *testing.T) {
	assert := assert.New(t)

	assert.Nil(ignoreCanceled(nil))
	assert.Nil(ignoreCanceled(context.Canceled))
	assert.ErrorIs(ignoreCanceled(context.DeadlineExceeded), context.DeadlineExceeded)

	err := errors.New("plop")
	assert.Equal(err, ignoreCanceled(err))
}

func TestRun_logPreviousRun(t *testing.T) {
	assert := assert.New(t)

	journal, err := couchdiscover.OpenBoltJournal(couchdiscover.BoltOptions{DataDir: t.TempDir()})
	assert.Nil(err)
	defer func() {
		assert.Nil(journal.Close())
	}()

	var buf bytes.Buffer
	log := zerolog.New(&buf)

	logPreviousRun(&log, journal)
	assert.Contains(buf.String(), "No previous bootstrap run recorded")

	buf.Reset()
	assert.Nil(journal.Record(couchdiscover.JournalEntry{RunID: "first", Phase: "starting"}))
	assert.Nil(journal.Record(couchdiscover.JournalEntry{RunID: "first", Phase: "waiting_master"}))
	logPreviousRun(&log, journal)
	assert.Contains(buf.String(), `"previousRunId":"first"`)
	assert.Contains(buf.String(), `"lastPhase":"waiting_master"`)
	assert.Contains(buf.String(), `"entries":2`)
}
