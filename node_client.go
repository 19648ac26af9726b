package couchdiscover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// String return a human readable role
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleData:
		return "data"
	}
	return "undetermined"
}

// NewNodeClient builds a client and probes the endpoint to detect its role
func NewNodeClient(ctx context.Context, options NodeClientOptions) *NodeClient {
	if options.Scheme == "" {
		options.Scheme = DefaultScheme
	}
	if options.HTTPClient == nil {
		options.HTTPClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	if options.Logger == nil {
		nop := zerolog.Nop()
		options.Logger = &nop
	}

	logger := options.Logger.With().
		Str("host", options.Host).
		Int("port", options.Port).
		Logger()

	c := &NodeClient{
		Logger:      &logger,
		scheme:      options.Scheme,
		host:        options.Host,
		port:        options.Port,
		credentials: options.Credentials,
		httpClient:  options.HTTPClient,
	}
	c.role = c.DetectRole(ctx)
	return c
}

// URL returns the base url of the endpoint with credentials when set
func (c *NodeClient) URL() *url.URL {
	u := &url.URL{
		Scheme: c.scheme,
		Host:   net.JoinHostPort(c.host, strconv.Itoa(c.port)),
	}
	if c.credentials != nil {
		u.User = url.UserPassword(c.credentials.Username, c.credentials.Password)
	}
	return u
}

// String returns the endpoint url with the password redacted
func (c *NodeClient) String() string {
	return c.URL().Redacted()
}

// Host returns the hostname of the endpoint
func (c *NodeClient) Host() string {
	return c.host
}

// Port returns the port of the endpoint
func (c *NodeClient) Port() int {
	return c.port
}

// Role returns the role detected when the client was built
func (c *NodeClient) Role() Role {
	return c.role
}

// DetectRole lists all databases and returns RoleAdmin when
// the _nodes database is present, RoleData otherwise.
// RoleUndetermined is returned when the listing failed
func (c *NodeClient) DetectRole(ctx context.Context) Role {
	dbs, err := c.ListDatabases(ctx)
	if err != nil {
		c.Logger.Debug().Err(err).Msg("Fail to detect endpoint role")
		return RoleUndetermined
	}
	if slices.Contains(dbs, nodesDB) {
		return RoleAdmin
	}
	return RoleData
}

// IsUp returns false only when the endpoint cannot be reached
func (c *NodeClient) IsUp(ctx context.Context) bool {
	_, err := c.Request(ctx, http.MethodGet, "/", nil, nil)
	return err == nil
}

// Version returns the couchdb version reported by the endpoint
func (c *NodeClient) Version(ctx context.Context) (string, error) {
	resp, err := c.Request(ctx, http.MethodGet, "/", nil, nil)
	if err != nil {
		return "", err
	}
	version, _ := resp.Object()["version"].(string)
	return version, nil
}

// ListDatabases returns all database names of the endpoint
func (c *NodeClient) ListDatabases(ctx context.Context) ([]string, error) {
	resp, err := c.Request(ctx, http.MethodGet, "/_all_dbs", nil, nil)
	if err != nil {
		return nil, err
	}
	var dbs []string
	if err := json.Unmarshal(resp.Body, &dbs); err != nil {
		return nil, fmt.Errorf("unexpected _all_dbs response %q: %w", string(resp.Body), err)
	}
	return dbs, nil
}

// AllDocIDs returns ids of all documents stored in db
func (c *NodeClient) AllDocIDs(ctx context.Context, db string) ([]string, error) {
	resp, err := c.Request(ctx, http.MethodGet, "/"+url.PathEscape(db)+"/_all_docs", nil, nil)
	if err != nil {
		return nil, err
	}
	var docs struct {
		Rows []struct {
			ID string `json:"id"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(resp.Body, &docs); err != nil {
		return nil, fmt.Errorf("unexpected %s/_all_docs response %q: %w", db, string(resp.Body), err)
	}
	ids := make([]string, 0, len(docs.Rows))
	for _, row := range docs.Rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// Request sends a low level http request. Transport errors are
// returned as ErrUnreachable while http error statuses are not errors
func (c *NodeClient) Request(ctx context.Context, method, path string, params url.Values, body []byte) (Response, error) {
	u := c.URL()
	u.User = nil
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = path
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	request, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return Response{}, err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	if c.credentials != nil {
		request.SetBasicAuth(c.credentials.Username, c.credentials.Password)
	}

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %s %s: %w", ErrUnreachable, method, u.String(), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("%w: reading %s %s: %w", ErrUnreachable, method, u.String(), err)
	}

	c.Logger.Trace().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Msg("Request done")

	return Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// Object decodes the body as a json object.
// Anything else, including invalid json, returns an empty object
func (r Response) Object() map[string]any {
	var obj map[string]any
	if err := json.Unmarshal(r.Body, &obj); err != nil || obj == nil {
		return map[string]any{}
	}
	return obj
}

// OK returns true when couchdb acknowledged the request with ok: true
func (r Response) OK() bool {
	ok, _ := r.Object()["ok"].(bool)
	return ok
}
