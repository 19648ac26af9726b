package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lord-Y/couchdiscover"
	"github.com/Lord-Y/couchdiscover/kube"
	"github.com/Lord-Y/couchdiscover/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
)

// Run returns the command bootstrapping the cluster
func Run() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Bootstrap the cluster then sleep forever",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path of the yaml configuration file",
				Sources: cli.EnvVars("COUCHDISCOVER_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level, overrides the configuration",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Hostname of the current node, overrides the configuration",
			},
			&cli.StringFlag{
				Name:  "listen-address",
				Usage: "Address of the status server like 0.0.0.0:8080",
			},
			&cli.StringFlag{
				Name:  "journal",
				Usage: "Directory of the bootstrap journal",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			config, err := couchdiscover.LoadConfig(cmd.String("config"))
			if err != nil {
				return err
			}
			applyFlags(cmd, &config)

			a := &app{
				config: config,
				logger: logger.NewLogger(logger.Config{Level: config.Log.Level, JSON: config.Log.JSON}),
			}
			return a.start(ctx)
		},
	}
}

// applyFlags overrides config with flags explicitly set
func applyFlags(cmd *cli.Command, config *couchdiscover.Config) {
	if cmd.IsSet("log-level") {
		config.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("host") {
		config.Host = cmd.String("host")
	}
	if cmd.IsSet("listen-address") {
		config.ListenAddress = cmd.String("listen-address")
	}
	if cmd.IsSet("journal") {
		config.JournalPath = cmd.String("journal")
	}
}

type app struct {
	config couchdiscover.Config
	logger *zerolog.Logger
}

// topology returns the provider matching the configuration
func (a *app) topology(address couchdiscover.NodeAddress) (couchdiscover.TopologyProvider, error) {
	if a.config.Topology == couchdiscover.TopologyStatic {
		return a.config.StaticTopology(address), nil
	}

	client, err := kube.NewClient(a.config.KubeconfigPath())
	if err != nil {
		return nil, err
	}
	return kube.NewProvider(kube.Options{Address: address, Client: client, Logger: a.logger}), nil
}

func (a *app) start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	host, err := a.config.ResolveHost(ctx)
	if err != nil {
		return err
	}
	address, err := couchdiscover.ParseNodeAddress(host)
	if err != nil {
		return err
	}

	provider, err := a.topology(address)
	if err != nil {
		return err
	}
	env, err := couchdiscover.NewClusterEnvironment(ctx, address, provider)
	if err != nil {
		return err
	}
	a.logger.Info().Msgf("Environment: %s", env)

	var journal couchdiscover.Journal
	if a.config.JournalPath != "" {
		bolt, err := couchdiscover.OpenBoltJournal(couchdiscover.BoltOptions{DataDir: a.config.JournalPath})
		if err != nil {
			return err
		}
		defer func() {
			if err := bolt.Close(); err != nil {
				a.logger.Warn().Err(err).Msg("Fail to close journal")
			}
		}()
		logPreviousRun(a.logger, bolt)
		journal = bolt
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	coordinator, err := couchdiscover.NewCoordinator(ctx, env, couchdiscover.CoordinatorOptions{
		Logger:            a.logger,
		Scheme:            a.config.Scheme,
		PollInterval:      a.config.PollInterval,
		Journal:           journal,
		MetricsRegisterer: registry,
	})
	if err != nil {
		return ignoreCanceled(err)
	}

	if a.config.ListenAddress != "" {
		server := couchdiscover.NewStatusServer(coordinator, couchdiscover.StatusServerOptions{
			Address:  a.config.ListenAddress,
			Gatherer: registry,
			Logger:   a.logger,
		})
		if err := server.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Stop(shutdownCtx); err != nil {
				a.logger.Warn().Err(err).Msg("Status server shutted down abruptly")
			}
		}()
	}

	return ignoreCanceled(coordinator.Run(ctx))
}

// ignoreCanceled returns nil when err comes from a shutdown signal
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// logPreviousRun reports what a previous run recorded in the journal,
// which tells whether the pod restarted in the middle of the bootstrap
func logPreviousRun(logger *zerolog.Logger, journal *couchdiscover.BoltJournal) {
	entries, err := journal.Entries()
	if err != nil {
		logger.Warn().Err(err).Msg("Fail to read journal entries")
		return
	}
	if len(entries) == 0 {
		logger.Info().Msg("No previous bootstrap run recorded")
		return
	}

	phase, err := journal.LastPhase()
	if err != nil {
		logger.Warn().Err(err).Msg("Fail to read last phase from journal")
		return
	}
	last := entries[len(entries)-1]
	logger.Info().
		Str("previousRunId", last.RunID).
		Str("lastPhase", phase).
		Time("at", last.Time).
		Int("entries", len(entries)).
		Msg("Previous bootstrap run found in journal")
}
