package couchdiscover

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestStatusServer_routes(t *testing.T) {
	assert := assert.New(t)

	registry := prometheus.NewRegistry()
	c, local, _, _ := coordinatorSetup(0, 3, registry)
	c.setPhase(PhaseEnabling, "")
	s := newStatusServer(c, StatusServerOptions{Gatherer: registry})
	router := s.newRouter()

	t.Run("healthz_up", func(t *testing.T) {
		local.On("Up", mock.Anything).Return(true).Once()
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(http.StatusOK, w.Code)
		assert.NotEmpty(w.Header().Get("X-Request-Id"))
	})

	t.Run("healthz_down", func(t *testing.T) {
		local.On("Up", mock.Anything).Return(false).Once()
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(http.StatusServiceUnavailable, w.Code)
	})

	t.Run("status", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
		assert.Equal(http.StatusOK, w.Code)

		var status CoordinatorStatus
		assert.Nil(json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(c.Status(), status)
		assert.Equal("enabling", status.Phase)
	})

	t.Run("metrics", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(http.StatusOK, w.Code)
		assert.Contains(w.Body.String(), "couchdiscover_bootstrap_phase")
	})

	t.Run("no_metrics", func(t *testing.T) {
		w := httptest.NewRecorder()
		newStatusServer(c, StatusServerOptions{}).newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(http.StatusNotFound, w.Code)
	})
}

func TestStatusServer_startStop(t *testing.T) {
	assert := assert.New(t)

	c, _, _, _ := coordinatorSetup(1, 3, nil)
	s := NewStatusServer(c, StatusServerOptions{Address: "127.0.0.1:0"})
	assert.Nil(s.Stop(context.Background()))
	assert.Nil(s.Start())

	resp, err := http.Get("http://" + s.Addr() + "/status")
	assert.Nil(err)
	if err == nil {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		assert.Equal(http.StatusOK, resp.StatusCode)
		assert.Contains(string(body), `"master":false`)
	}
	assert.Nil(s.Stop(context.Background()))

	_, err = http.Get("http://" + s.Addr() + "/status")
	assert.Error(err)
}
