package couchdiscover

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// String return a human readable state matching couchdb wording
func (s ClusterState) String() string {
	switch s {
	case StateDisabled:
		return "cluster_disabled"
	case StateEnabled:
		return "cluster_enabled"
	case StateEnabledAuthRequired:
		return "auth_required"
	case StateFinished:
		return "cluster_finished"
	}
	return "unknown"
}

// Enabled returns true for both enabled variants
func (s ClusterState) Enabled() bool {
	return s == StateEnabled || s == StateEnabledAuthRequired
}

// parseClusterState converts couchdb state into ClusterState
func parseClusterState(state string) ClusterState {
	switch state {
	case "cluster_disabled":
		return StateDisabled
	case "cluster_enabled":
		return StateEnabled
	case "cluster_finished":
		return StateFinished
	}
	return StateUnknown
}

// NewClusterSetupClient blocks until the node is up, then builds
// admin and data clients upgrading them with credentials when the
// cluster is already enabled.
// The only error returned is the context one
func NewClusterSetupClient(ctx context.Context, options ClusterSetupOptions) (*ClusterSetupClient, error) {
	if options.Scheme == "" {
		options.Scheme = DefaultScheme
	}
	if options.PollInterval <= 0 {
		options.PollInterval = DefaultPollInterval
	}
	if options.NodeNamePrefix == "" {
		options.NodeNamePrefix = DefaultNodeNamePrefix
	}
	if options.Ports.Data == 0 {
		options.Ports.Data = DefaultDataPort
	}
	if options.Ports.Admin == 0 {
		options.Ports.Admin = DefaultAdminPort
	}
	if options.HTTPClient == nil {
		options.HTTPClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	if options.Resolver == nil {
		options.Resolver = net.DefaultResolver
	}
	if options.Logger == nil {
		nop := zerolog.Nop()
		options.Logger = &nop
	}

	logger := options.Logger.With().Str("node", options.Host).Logger()
	c := &ClusterSetupClient{
		Logger:  &logger,
		options: options,
		metrics: options.metrics,
	}

	if err := c.waitForUp(ctx); err != nil {
		return nil, err
	}
	c.setupServers(ctx, false)
	if err := c.upgradeAuthIfEnabled(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// waitForUp polls /_up of the data port until couchdb answers
func (c *ClusterSetupClient) waitForUp(ctx context.Context) error {
	probe := c.nodeClient(c.options.Ports.Data, nil)
	c.Logger.Info().Msgf("Waiting for host: %s to be up", probe.String()+upPath)

	for {
		if _, err := probe.Request(ctx, http.MethodGet, upPath, nil, nil); err == nil {
			c.Logger.Info().Msg("Host is up")
			return nil
		}
		c.metrics.incPollAttempts(waitUp)
		c.Logger.Info().Msgf("Host: %s not up yet, retrying in %s", probe.String()+upPath, c.options.PollInterval)
		if err := sleepContext(ctx, c.options.PollInterval); err != nil {
			return err
		}
	}
}

// nodeClient builds a client without probing its role
func (c *ClusterSetupClient) nodeClient(port int, creds *Credentials) *NodeClient {
	logger := c.Logger.With().Int("port", port).Logger()
	return &NodeClient{
		Logger:      &logger,
		scheme:      c.options.Scheme,
		host:        c.options.Host,
		port:        port,
		credentials: creds,
		httpClient:  c.options.HTTPClient,
	}
}

// setupServers builds both clients, using credentials when auth is true.
// Detected roles take precedence over the configured ports
func (c *ClusterSetupClient) setupServers(ctx context.Context, auth bool) {
	var creds *Credentials
	if auth {
		creds = c.options.Credentials
	}
	admin := c.nodeClient(c.options.Ports.Admin, creds)
	admin.role = admin.DetectRole(ctx)
	data := c.nodeClient(c.options.Ports.Data, creds)
	data.role = data.DetectRole(ctx)

	if admin.role == RoleData && data.role == RoleAdmin {
		c.Logger.Warn().
			Int("adminPort", c.options.Ports.Admin).
			Int("dataPort", c.options.Ports.Data).
			Msg("Ports are reversed, swapping them")
		admin, data = data, admin
	}
	c.mu.Lock()
	c.admin, c.data = admin, data
	c.mu.Unlock()
}

// servers returns the current admin and data clients
func (c *ClusterSetupClient) servers() (*NodeClient, *NodeClient) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.admin, c.data
}

// upgradeAuthIfEnabled switches to authenticated clients when
// the node is not disabled anymore
func (c *ClusterSetupClient) upgradeAuthIfEnabled(ctx context.Context) error {
	state := c.Status(ctx)
	for state == StateUnknown {
		c.Logger.Info().Msgf("Cluster state not known yet, retrying in %s", c.options.PollInterval)
		if err := sleepContext(ctx, c.options.PollInterval); err != nil {
			return err
		}
		state = c.Status(ctx)
	}

	if state == StateDisabled {
		return nil
	}
	c.upgradeAuth(ctx)
	return nil
}

// upgradeAuth rebuilds clients with credentials
func (c *ClusterSetupClient) upgradeAuth(ctx context.Context) {
	c.setupServers(ctx, true)
	c.mu.Lock()
	c.secure = true
	c.mu.Unlock()
	c.Logger.Debug().Msg("Clients upgraded with credentials")
}

// String returns the hostname of the node
func (c *ClusterSetupClient) String() string {
	return c.options.Host
}

// Host returns the hostname of the node
func (c *ClusterSetupClient) Host() string {
	return c.options.Host
}

// Ports returns data and admin ports in use
func (c *ClusterSetupClient) Ports() Ports {
	admin, data := c.servers()
	return Ports{Data: data.port, Admin: admin.port}
}

// Credentials returns the credentials configured for this node
func (c *ClusterSetupClient) Credentials() *Credentials {
	return c.options.Credentials
}

// Secure returns true when clients use credentials
func (c *ClusterSetupClient) Secure() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.secure
}

// NodeName returns the erlang node name like couchdb@host
func (c *ClusterSetupClient) NodeName() string {
	return c.options.NodeNamePrefix + "@" + c.options.Host
}

// Status returns the cluster setup state of the node.
// An error answer means credentials are required and is reported
// as StateEnabledAuthRequired
func (c *ClusterSetupClient) Status(ctx context.Context) ClusterState {
	resp, err := c.clusterSetup(ctx, actionStatus, clusterSetupPayload{})
	if err != nil {
		c.Logger.Debug().Err(err).Msg("Fail to fetch cluster status")
		return StateUnknown
	}
	obj := resp.Object()
	if e, ok := obj["error"]; ok && e != nil {
		return StateEnabledAuthRequired
	}
	state, _ := obj["state"].(string)
	return parseClusterState(state)
}

// Disabled returns true if status is cluster_disabled
func (c *ClusterSetupClient) Disabled(ctx context.Context) bool {
	return c.Status(ctx) == StateDisabled
}

// Enabled returns true if status is cluster_enabled or auth_required
func (c *ClusterSetupClient) Enabled(ctx context.Context) bool {
	return c.Status(ctx).Enabled()
}

// Finished returns true if status is cluster_finished
func (c *ClusterSetupClient) Finished(ctx context.Context) bool {
	return c.Status(ctx) == StateFinished
}

// Enable enables the node for clustering and switches to
// authenticated clients when couchdb acknowledged it
func (c *ClusterSetupClient) Enable(ctx context.Context) (bool, error) {
	payload := clusterSetupPayload{Action: actionEnable}
	if creds := c.options.Credentials; creds != nil {
		payload.Username, payload.Password = creds.Username, creds.Password
	}

	resp, err := c.clusterSetup(ctx, actionEnable, payload)
	if err != nil {
		c.metrics.incSetupAction(actionEnable, false)
		return false, err
	}
	if !resp.OK() {
		c.metrics.incSetupAction(actionEnable, false)
		c.Logger.Warn().Int("status", resp.StatusCode).Str("response", string(resp.Body)).Msg("Enable not acknowledged")
		return false, nil
	}
	c.metrics.incSetupAction(actionEnable, true)
	c.upgradeAuth(ctx)
	return true, nil
}

// AddNode adds remote to the cluster of the current node.
// Nothing is sent when remote cannot be resolved, is down or is already
// a member, in which case false is returned without error.
// An AddNodeError is returned when couchdb didn't acknowledge the request
func (c *ClusterSetupClient) AddNode(ctx context.Context, remote Remote) (bool, error) {
	if !c.testNode(ctx, remote) {
		return false, nil
	}

	payload := clusterSetupPayload{
		Action: actionAddNode,
		Host:   remote.Host(),
		Port:   remote.Ports().Data,
	}
	creds := remote.Credentials()
	if creds == nil {
		creds = c.options.Credentials
	}
	if creds != nil {
		payload.Username, payload.Password = creds.Username, creds.Password
	}

	resp, err := c.clusterSetup(ctx, actionAddNode, payload)
	if err == nil && resp.OK() {
		c.metrics.incSetupAction(actionAddNode, true)
		return true, nil
	}
	c.metrics.incSetupAction(actionAddNode, false)

	redacted := payload
	if redacted.Password != "" {
		redacted.Password = "****"
	}
	body, _ := json.Marshal(redacted)
	_, data := c.servers()
	u := data.URL()
	u.User = nil
	u.Path = clusterSetupPath

	addErr := &AddNodeError{
		Host:         payload.Host,
		Port:         payload.Port,
		Method:       http.MethodPost,
		URL:          u.String(),
		RequestBody:  string(body),
		StatusCode:   resp.StatusCode,
		ResponseBody: string(resp.Body),
	}
	if err != nil {
		addErr.ResponseBody = err.Error()
	}
	return false, addErr
}

// testNode returns true when remote is resolvable, up and not
// already a member of the current node
func (c *ClusterSetupClient) testNode(ctx context.Context, remote Remote) bool {
	if _, err := c.options.Resolver.LookupHost(ctx, remote.Host()); err != nil {
		c.Logger.Debug().Err(err).Str("remote", remote.Host()).Msg("Remote host not resolvable")
		return false
	}
	if !remote.Up(ctx) {
		c.Logger.Debug().Str("remote", remote.Host()).Msg("Remote host not up")
		return false
	}
	nodes, err := c.MembershipNodes(ctx)
	if err != nil {
		c.Logger.Warn().Err(err).Str("remote", remote.Host()).Msg("Fail to read membership nodes")
		return false
	}
	name := remote.NodeName()
	for _, node := range nodes {
		if node == name {
			c.Logger.Info().Str("remote", name).Msg("Remote node already a member")
			return false
		}
	}
	return true
}

// Finish finishes the cluster setup
func (c *ClusterSetupClient) Finish(ctx context.Context) (Response, error) {
	resp, err := c.clusterSetup(ctx, actionFinish, clusterSetupPayload{Action: actionFinish})
	c.metrics.incSetupAction(actionFinish, err == nil && resp.OK())
	return resp, err
}

// MembershipNodes returns ids of documents stored in _nodes
// which are the node names known by the current node
func (c *ClusterSetupClient) MembershipNodes(ctx context.Context) ([]string, error) {
	return c.serverFor(nodesDB).AllDocIDs(ctx, nodesDB)
}

// Membership returns the result of /_membership
func (c *ClusterSetupClient) Membership(ctx context.Context) (Membership, error) {
	var membership Membership
	_, data := c.servers()
	resp, err := data.Request(ctx, http.MethodGet, membershipPath, nil, nil)
	if err != nil {
		return membership, err
	}
	if err := json.Unmarshal(resp.Body, &membership); err != nil {
		return membership, fmt.Errorf("unexpected membership response %q: %w", string(resp.Body), err)
	}
	return membership, nil
}

// Up returns true when both admin and data endpoints are up
func (c *ClusterSetupClient) Up(ctx context.Context) bool {
	admin, data := c.servers()
	return admin.IsUp(ctx) && data.IsUp(ctx)
}

// serverFor returns the client serving db
func (c *ClusterSetupClient) serverFor(db string) *NodeClient {
	admin, data := c.servers()
	for _, name := range adminOnlyDBs {
		if name == db {
			return admin
		}
	}
	return data
}

// clusterSetup submits a request to /_cluster_setup of the data port
func (c *ClusterSetupClient) clusterSetup(ctx context.Context, action string, payload clusterSetupPayload) (Response, error) {
	_, data := c.servers()
	switch action {
	case actionStatus:
		return data.Request(ctx, http.MethodGet, clusterSetupPath, nil, nil)
	case actionEnable, actionAddNode, actionFinish:
		body, err := json.Marshal(payload)
		if err != nil {
			return Response{}, err
		}
		return data.Request(ctx, http.MethodPost, clusterSetupPath, nil, body)
	}
	return Response{}, fmt.Errorf("%w: %s", ErrInvalidAction, action)
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
