package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentterm/termd/internal/config"
	"github.com/agentterm/termd/internal/jsonrpc"
	"github.com/agentterm/termd/internal/logging"
	"github.com/agentterm/termd/internal/monitoring"
	"github.com/agentterm/termd/internal/session"
	"github.com/agentterm/termd/internal/tools"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Default()
	log := logging.NewNop()
	metrics := monitoring.NewMetrics()
	manager := session.NewManager(cfg.Session, log, metrics)
	t.Cleanup(manager.StopAll)

	registry := tools.NewRegistry()
	provider := tools.NewTerminalProvider(manager, metrics)
	require.NoError(t, provider.Register(registry))
	dispatcher := tools.NewDispatcher(registry, log)

	return New(cfg, log, metrics, manager, dispatcher)
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"sessions":0`)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "termd_")
}

func TestRPCPing(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/rpc",
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	require.Equal(t, http.StatusOK, w.Code)

	msg, err := jsonrpc.Parse(w.Body.Bytes())
	require.NoError(t, err)
	require.True(t, msg.IsResponse())
	assert.True(t, msg.ID.Equal(jsonrpc.IntID(1)))

	var result map[string]string
	require.NoError(t, msg.UnmarshalResult(&result))
	assert.Equal(t, "ok", result["status"])
}

func TestRPCToolsList(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/rpc",
		`{"jsonrpc":"2.0","id":"req_1","method":"tools/list"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "terminal.create_session")
}

func TestRPCSessionFlow(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/rpc",
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"terminal.create_session","arguments":{"force_headless":true}}}`)
	require.Equal(t, http.StatusOK, w.Code)

	msg, err := jsonrpc.Parse(w.Body.Bytes())
	require.NoError(t, err)
	require.Nil(t, msg.Error)

	var result tools.Result
	require.NoError(t, msg.UnmarshalResult(&result))
	sessionID, ok := result.Data["id"].(string)
	require.True(t, ok)

	w = doRequest(t, s, http.MethodGet, "/health", "")
	assert.Contains(t, w.Body.String(), `"sessions":1`)

	w = doRequest(t, s, http.MethodPost, "/rpc",
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"terminal.remove_session","arguments":{"session_id":"`+sessionID+`"}}}`)
	require.Equal(t, http.StatusOK, w.Code)
	msg, err = jsonrpc.Parse(w.Body.Bytes())
	require.NoError(t, err)
	assert.Nil(t, msg.Error)
}

func TestRPCMalformedBody(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/rpc", "{not json")
	require.Equal(t, http.StatusOK, w.Code)

	msg, err := jsonrpc.Parse(w.Body.Bytes())
	require.NoError(t, err)
	require.NotNil(t, msg.Error)
	assert.Equal(t, jsonrpc.CodeParseError, msg.Error.Code)
	assert.Nil(t, msg.ID)
}

func TestRPCNotificationReturnsNoContent(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/rpc",
		`{"jsonrpc":"2.0","method":"ping"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestRPCUnknownMethod(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/rpc",
		`{"jsonrpc":"2.0","id":3,"method":"bogus"}`)
	require.Equal(t, http.StatusOK, w.Code)

	msg, err := jsonrpc.Parse(w.Body.Bytes())
	require.NoError(t, err)
	require.NotNil(t, msg.Error)
	assert.Equal(t, jsonrpc.CodeMethodNotFound, msg.Error.Code)
}
