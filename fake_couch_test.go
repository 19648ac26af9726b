package couchdiscover

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/jackc/fake"
)

// fakeRequest is a request received by fakeCouch
type fakeRequest struct {
	role   Role
	method string
	path   string
	body   map[string]any
}

// fakeCouch mimics the cluster setup api of a couchdb 2 node
// with one server per port
type fakeCouch struct {
	mu sync.Mutex

	state    string
	username string
	password string
	nodes    []string

	// addNodeStatus overrides the add_node answer when not 0
	addNodeStatus int
	addNodeBody   string

	requests []fakeRequest

	data  *httptest.Server
	admin *httptest.Server
}

func newFakeCouch(t *testing.T, state string) *fakeCouch {
	f := &fakeCouch{
		state:    state,
		username: fake.CharactersN(8),
		password: fake.CharactersN(16),
	}
	f.data = httptest.NewServer(f.handler(RoleData))
	f.admin = httptest.NewServer(f.handler(RoleAdmin))
	t.Cleanup(func() {
		f.data.Close()
		f.admin.Close()
	})
	return f
}

func (f *fakeCouch) credentials() *Credentials {
	return &Credentials{Username: f.username, Password: f.password}
}

func (f *fakeCouch) ports() Ports {
	return Ports{Data: serverPort(f.data), Admin: serverPort(f.admin)}
}

func (f *fakeCouch) getState() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeCouch) setupRequests() (requests []fakeRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.path == clusterSetupPath && r.method == http.MethodPost {
			requests = append(requests, r)
		}
	}
	return
}

func serverPort(s *httptest.Server) int {
	u, _ := url.Parse(s.URL)
	port, _ := strconv.Atoi(u.Port())
	return port
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeCouch) authorized(r *http.Request) bool {
	if f.state == "cluster_disabled" {
		return true
	}
	username, password, ok := r.BasicAuth()
	return ok && username == f.username && password == f.password
}

func (f *fakeCouch) handler(role Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		var body map[string]any
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &body)
		}
		f.requests = append(f.requests, fakeRequest{role: role, method: r.Method, path: r.URL.Path, body: body})

		unauthorized := map[string]string{"error": "unauthorized", "reason": "You are not a server admin."}

		switch {
		case r.URL.Path == upPath:
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

		case r.URL.Path == "/":
			writeJSON(w, http.StatusOK, map[string]string{"couchdb": "Welcome", "version": "2.3.1"})

		case r.URL.Path == "/_all_dbs":
			if role == RoleAdmin {
				writeJSON(w, http.StatusOK, []string{"_dbs", "_nodes", "_replicator", "_users"})
				return
			}
			writeJSON(w, http.StatusOK, []string{"_replicator", "_users"})

		case r.URL.Path == clusterSetupPath && r.Method == http.MethodGet:
			if !f.authorized(r) {
				writeJSON(w, http.StatusUnauthorized, unauthorized)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"state": f.state})

		case r.URL.Path == clusterSetupPath && r.Method == http.MethodPost:
			if !f.authorized(r) {
				writeJSON(w, http.StatusUnauthorized, unauthorized)
				return
			}
			switch body["action"] {
			case actionEnable:
				f.state = "cluster_enabled"
				if username, _ := body["username"].(string); username != "" {
					f.username = username
				}
				if password, _ := body["password"].(string); password != "" {
					f.password = password
				}
			case actionAddNode:
				if f.addNodeStatus != 0 {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(f.addNodeStatus)
					_, _ = io.WriteString(w, f.addNodeBody)
					return
				}
				host, _ := body["host"].(string)
				f.nodes = append(f.nodes, DefaultNodeNamePrefix+"@"+host)
			case actionFinish:
				f.state = "cluster_finished"
			default:
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request"})
				return
			}
			writeJSON(w, http.StatusCreated, map[string]bool{"ok": true})

		case r.URL.Path == "/_nodes/_all_docs" && role == RoleAdmin:
			rows := []map[string]string{}
			for _, node := range f.nodes {
				rows = append(rows, map[string]string{"id": node, "key": node})
			}
			writeJSON(w, http.StatusOK, map[string]any{"total_rows": len(rows), "offset": 0, "rows": rows})

		case r.URL.Path == membershipPath:
			writeJSON(w, http.StatusOK, map[string][]string{"all_nodes": f.nodes, "cluster_nodes": f.nodes})

		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "reason": "Database does not exist."})
		}
	}
}
