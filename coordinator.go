package couchdiscover

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// String return a human readable phase
func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseEnabling:
		return "enabling"
	case PhaseWaitingMaster:
		return "waiting_master"
	case PhaseAdding:
		return "adding"
	case PhaseFinishing:
		return "finishing"
	case PhaseDone:
		return "done"
	}
	return "failed"
}

// NewCoordinator builds the local client and, when the current node
// is not the master, the master client.
// It blocks until those nodes are up
func NewCoordinator(ctx context.Context, env *ClusterEnvironment, options CoordinatorOptions) (*Coordinator, error) {
	c := newCoordinator(env, options)

	setupOptions := ClusterSetupOptions{
		Scheme:       options.Scheme,
		Ports:        env.Ports,
		Credentials:  env.Credentials,
		PollInterval: options.PollInterval,
		HTTPClient:   options.HTTPClient,
		Resolver:     options.Resolver,
		Logger:       c.Logger,
		metrics:      c.metrics,
	}

	setupOptions.Host = env.Address.String()
	local, err := NewClusterSetupClient(ctx, setupOptions)
	if err != nil {
		return nil, err
	}
	c.local = local

	if !env.Address.IsMaster() {
		setupOptions.Host = env.Address.Master().String()
		master, err := NewClusterSetupClient(ctx, setupOptions)
		if err != nil {
			return nil, err
		}
		c.master = master
	}
	return c, nil
}

// newCoordinator fills defaults without building clients
func newCoordinator(env *ClusterEnvironment, options CoordinatorOptions) *Coordinator {
	if options.PollInterval <= 0 {
		options.PollInterval = DefaultPollInterval
	}
	if options.Logger == nil {
		nop := zerolog.Nop()
		options.Logger = &nop
	}
	if options.Journal == nil {
		options.Journal = nopJournal{}
	}

	runID := uuid.NewString()
	logger := options.Logger.With().
		Str("run_id", runID).
		Str("address", env.Address.String()).
		Logger()

	return &Coordinator{
		Logger:  &logger,
		options: options,
		env:     env,
		runID:   runID,
		journal: options.Journal,
		metrics: newMetrics(options.MetricsRegisterer),
	}
}

// IsMaster returns whether local node is the master
func (c *Coordinator) IsMaster() bool {
	return c.env.Address.IsMaster()
}

// Status returns a snapshot of the coordinator progress
func (c *Coordinator) Status() CoordinatorStatus {
	return CoordinatorStatus{
		RunID:               c.runID,
		Phase:               c.getPhase().String(),
		Address:             c.env.Address.String(),
		Master:              c.IsMaster(),
		ExpectedClusterSize: c.env.ExpectedClusterSize,
	}
}

// LocalUp returns true when both endpoints of the local node are up
func (c *Coordinator) LocalUp(ctx context.Context) bool {
	return c.local.Up(ctx)
}

// Run bootstraps the cluster then idles until ctx is done
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.Bootstrap(ctx); err != nil {
		return err
	}
	return c.Idle(ctx)
}

// Bootstrap enables the local node and joins it to the master,
// finishing the cluster when the local node is the last expected one.
// Only an AddNodeError or the context error aborts it
func (c *Coordinator) Bootstrap(ctx context.Context) error {
	c.setPhase(PhaseStarting, "")
	state, err := c.waitForKnownLocalStatus(ctx)
	if err != nil {
		c.setPhase(PhaseFailed, err.Error())
		return err
	}
	c.Logger.Info().
		Str("status", state.String()).
		Bool("master", c.IsMaster()).
		Int("clusterSize", c.env.ExpectedClusterSize).
		Msg("Starting couchdiscover")

	switch state {
	case StateDisabled:
		c.Logger.Info().Msg("Cluster disabled, enabling")
		c.enable(ctx)
	case StateFinished:
		c.Logger.Info().Msg("Cluster already finished")
		c.setPhase(PhaseDone, "cluster already finished")
		return nil
	}

	if c.env.IsFirst() {
		c.Logger.Info().Msg("Looks like I'm the first node")
		if c.env.IsSingleNode() {
			c.Logger.Info().Msg("Single node cluster detected")
			c.finish(ctx)
		}
	} else {
		c.Logger.Info().Msg("Looks like I'm not the first node")
		if err := c.addToMaster(ctx); err != nil {
			c.setPhase(PhaseFailed, err.Error())
			return err
		}
		if c.env.IsLast() {
			c.Logger.Info().Msg("Looks like I'm the last node")
			c.finish(ctx)
		} else {
			c.Logger.Info().Msg("Looks like I'm not the last node")
		}
	}

	if err := ctx.Err(); err != nil {
		c.setPhase(PhaseFailed, err.Error())
		return err
	}
	c.setPhase(PhaseDone, "")
	return nil
}

// Idle blocks until ctx is done. The process is expected to be kept
// running as kubernetes restart policies apply to the whole pod
func (c *Coordinator) Idle(ctx context.Context) error {
	c.Logger.Info().Msgf("Done with: %s, sleeping forever", c.local)
	<-ctx.Done()
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

// enable enables the local node unless already enabled or finished
func (c *Coordinator) enable(ctx context.Context) {
	state := c.localStatus(ctx)
	switch {
	case state.Enabled():
		c.Logger.Warn().Msg("Already enabled")
		return
	case state == StateFinished:
		c.Logger.Warn().Msgf("Can't enable finished cluster: %s", c.local)
		return
	}

	c.setPhase(PhaseEnabling, "")
	c.Logger.Info().Msgf("Enabling local: %s", c.local)
	ok, err := c.local.Enable(ctx)
	if err != nil {
		c.Logger.Warn().Err(err).Msgf("Fail to enable local: %s", c.local)
		return
	}
	if !ok {
		c.Logger.Warn().Msgf("Enabling local: %s was not acknowledged", c.local)
	}
}

// finish finishes the cluster unless the local node is disabled or
// already finished. The request is sent to the master
func (c *Coordinator) finish(ctx context.Context) {
	state := c.localStatus(ctx)
	switch state {
	case StateDisabled:
		c.Logger.Warn().Msgf("Can't finish cluster when disabled: %s", c.local)
		return
	case StateFinished:
		c.Logger.Warn().Msgf("Cluster already finished: %s", c.local)
		return
	}

	target := c.master
	if c.IsMaster() {
		target = c.local
	}
	c.setPhase(PhaseFinishing, "")
	c.Logger.Info().Msgf("Finishing cluster: %s", target)
	resp, err := target.Finish(ctx)
	if err != nil {
		c.Logger.Warn().Err(err).Msgf("Fail to finish cluster: %s", target)
		return
	}
	if !resp.OK() {
		c.Logger.Warn().
			Int("status", resp.StatusCode).
			Str("response", string(resp.Body)).
			Msgf("Finishing cluster: %s was not acknowledged", target)
	}
}

// waitForEnabledMaster blocks until the master is enabled.
// It prevents a race condition where a non master node tries to
// manipulate the state of the cluster before the master is enabled
func (c *Coordinator) waitForEnabledMaster(ctx context.Context) error {
	if c.IsMaster() {
		c.Logger.Warn().Msgf("Can't wait for master when master: %s", c.local)
		return nil
	}

	c.setPhase(PhaseWaitingMaster, "")
	for {
		state := c.master.Status(ctx)
		c.metrics.setClusterState(c.master.String(), state)
		if state.Enabled() {
			return nil
		}
		c.metrics.incPollAttempts(waitMaster)
		c.Logger.Info().Str("status", state.String()).Msgf("Waiting for master: %s to be enabled", c.master)
		if err := sleepContext(ctx, c.options.PollInterval); err != nil {
			return err
		}
	}
}

// waitForKnownLocalStatus polls the local status until the node answers.
// An unknown state must never decide the bootstrap path
func (c *Coordinator) waitForKnownLocalStatus(ctx context.Context) (ClusterState, error) {
	for {
		state := c.localStatus(ctx)
		if state != StateUnknown {
			return state, nil
		}
		c.metrics.incPollAttempts(waitLocalStatus)
		c.Logger.Info().Msgf("Local status of: %s not known yet, retrying in %s", c.local, c.options.PollInterval)
		if err := sleepContext(ctx, c.options.PollInterval); err != nil {
			return StateUnknown, err
		}
	}
}

// addToMaster adds the local node to the master once it's enabled
func (c *Coordinator) addToMaster(ctx context.Context) error {
	if c.IsMaster() {
		c.Logger.Warn().Msgf("Can't add self to self, master: %s", c.local)
		return nil
	}
	if err := c.waitForEnabledMaster(ctx); err != nil {
		return err
	}

	c.setPhase(PhaseAdding, "")
	c.Logger.Info().Msgf("Adding: %s to master: %s", c.local, c.master)
	added, err := c.master.AddNode(ctx, c.local)
	if err != nil {
		c.Logger.Error().Err(err).Msgf("Fail to add: %s to master: %s", c.local, c.master)
		return err
	}
	if !added {
		c.Logger.Info().Msgf("Node: %s not added to master: %s, already a member or not reachable", c.local, c.master)
	}
	return nil
}

// localStatus reads the local status and updates metrics
func (c *Coordinator) localStatus(ctx context.Context) ClusterState {
	state := c.local.Status(ctx)
	c.metrics.setClusterState(c.local.String(), state)
	return state
}

// getPhase permits to retrieve the current phase
func (c *Coordinator) getPhase() Phase {
	return Phase(c.phase.Load())
}

// setPhase stores the new phase, updates metrics and journal
func (c *Coordinator) setPhase(phase Phase, detail string) {
	c.phase.Store(uint32(phase))
	c.metrics.setPhase(phase)
	entry := JournalEntry{
		RunID:  c.runID,
		Phase:  phase.String(),
		Detail: detail,
		Time:   time.Now(),
	}
	if err := c.journal.Record(entry); err != nil {
		c.Logger.Warn().Err(err).Str("phase", phase.String()).Msg("Fail to record phase")
	}
}
