package control

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pubsub-broker/internal/registry"
	"pubsub-broker/internal/topic"
)

func newTestServer() (*Server, *registry.Registry) {
	cfg := topic.DefaultConfig()
	cfg.BatchTimeout = 5 * time.Millisecond
	reg := registry.New(cfg, nil)
	return NewServer(":0", reg, nil, nil, nil), reg
}

func do(s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	return rec
}

func TestCreateTopicSuccess(t *testing.T) {
	s, _ := newTestServer()
	rec := do(s, http.MethodPost, "/topics", []byte(`{"name":"news"}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	var body createTopicResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "news", body.Name)
	assert.True(t, body.Created)
}

func TestCreateTopicInvalidName(t *testing.T) {
	s, _ := newTestServer()
	rec := do(s, http.MethodPost, "/topics", []byte(`{"name":"bad name"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTopicRejectedWhileShuttingDown(t *testing.T) {
	s, _ := newTestServer()
	s.BeginShutdown()
	rec := do(s, http.MethodPost, "/topics", []byte(`{"name":"news"}`))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDeleteTopicNotFound(t *testing.T) {
	s, _ := newTestServer()
	rec := do(s, http.MethodDelete, "/topics/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteTopicSuccess(t *testing.T) {
	s, reg := newTestServer()
	require.NoError(t, reg.Create("news"))

	rec := do(s, http.MethodDelete, "/topics/news", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestListTopics(t *testing.T) {
	s, reg := newTestServer()
	require.NoError(t, reg.Create("a"))
	require.NoError(t, reg.Create("b"))

	rec := do(s, http.MethodGet, "/topics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var names []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &names))
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestHealth(t *testing.T) {
	s, reg := newTestServer()
	require.NoError(t, reg.Create("a"))

	rec := do(s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 1, body["topic_count"])
}

func TestStatsAndMetrics(t *testing.T) {
	s, reg := newTestServer()
	require.NoError(t, reg.Create("news"))

	statsRec := do(s, http.MethodGet, "/stats", nil)
	assert.Equal(t, http.StatusOK, statsRec.Code)

	metricsRec := do(s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, metricsRec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(metricsRec.Body.Bytes(), &body))
	assert.Contains(t, body, "global")
	assert.Contains(t, body, "topics")
}

func TestDashboardRenders(t *testing.T) {
	s, reg := newTestServer()
	require.NoError(t, reg.Create("news"))

	rec := do(s, http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "news")
}
