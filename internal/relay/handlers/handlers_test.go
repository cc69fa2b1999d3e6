package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/scenesync/internal/protocol"
	"github.com/iudanet/scenesync/internal/relay"
	"github.com/iudanet/scenesync/internal/relay/auth"
	"github.com/iudanet/scenesync/internal/scene"
	"github.com/iudanet/scenesync/internal/transport/ws"
	"github.com/iudanet/scenesync/pkg/api"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testRelay struct {
	server *httptest.Server
	hub    *relay.Hub
	tokens *auth.Tokens
}

func newTestRelay(t *testing.T) *testRelay {
	t.Helper()

	logger := setupTestLogger()
	hub := relay.NewHub(relay.Config{Logger: logger})
	tokens := auth.New([]byte("test-secret-key-32-bytes-long!!!"), time.Hour)

	router, stop := NewRouter(RouterConfig{
		Hub:     hub,
		Tokens:  tokens,
		Logger:  logger,
		Version: "test",
	})
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		hub.Close()
		server.Close()
		stop()
	})

	return &testRelay{server: server, hub: hub, tokens: tokens}
}

func (r *testRelay) token(t *testing.T, address string) string {
	t.Helper()

	token, _, err := r.tokens.Issue(address)
	require.NoError(t, err)
	return token
}

func (r *testRelay) wsURL() string {
	return "ws" + strings.TrimPrefix(r.server.URL, "http") + "/ws"
}

func (r *testRelay) dial(t *testing.T, address string) *ws.Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := ws.Dial(ctx, r.wsURL(), r.token(t, address), setupTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestHealthHandler_Health(t *testing.T) {
	hub := relay.NewHub(relay.Config{Logger: setupTestLogger()})
	defer hub.Close()
	_, err := hub.Register("0xalice")
	require.NoError(t, err)

	handler := NewHealthHandler(setupTestLogger(), "1.2.3", hub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	handler.Health(w, req)

	resp := w.Result()
	defer func() {
		err := resp.Body.Close()
		assert.NoError(t, err)
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var health api.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, api.HealthResponse{Status: "ok", Version: "1.2.3", Peers: 1}, health)
}

func TestTokenHandler_Issue(t *testing.T) {
	tokens := auth.New([]byte("secret"), time.Minute)
	handler := NewTokenHandler(setupTestLogger(), tokens)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "valid", body: `{"address":"0xalice"}`, wantStatus: http.StatusOK},
		{name: "invalid json", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "empty address", body: `{"address":""}`, wantStatus: http.StatusBadRequest},
		{name: "bad characters", body: `{"address":"a b"}`, wantStatus: http.StatusBadRequest},
		{name: "reserved", body: `{"address":"relay"}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/token", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			handler.Issue(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				var resp api.ErrorResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.Equal(t, http.StatusText(tt.wantStatus), resp.Error)
				return
			}

			var resp api.TokenResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, int64(60), resp.ExpiresIn)

			claims, err := tokens.Validate(resp.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, "0xalice", claims.Address())
		})
	}
}

func TestRouter_TokenRoute(t *testing.T) {
	r := newTestRelay(t)

	resp, err := http.Post(r.server.URL+"/api/v1/token", "application/json", bytes.NewBufferString(`{"address":"0xbob"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(r.server.URL + "/api/v1/token")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp2.StatusCode)
}

func TestRouter_DisableTokenEndpoint(t *testing.T) {
	hub := relay.NewHub(relay.Config{Logger: setupTestLogger()})
	defer hub.Close()

	router, stop := NewRouter(RouterConfig{
		Hub:                  hub,
		Tokens:               auth.New([]byte("secret"), time.Minute),
		Logger:               setupTestLogger(),
		DisableTokenEndpoint: true,
	})
	defer stop()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/token", strings.NewReader(`{"address":"0xbob"}`)))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSceneHandler_State(t *testing.T) {
	r := newTestRelay(t)
	ctx := context.Background()

	p, err := r.hub.Register("0xalice")
	require.NoError(t, err)
	require.NoError(t, r.hub.HandlePacket(ctx, p, joinPacket(t, "scene-1")))

	put := protocol.Message{Type: protocol.PutComponentNetwork, EntityID: 512, ComponentID: 1, Timestamp: 1, NetworkID: 3, Content: []byte("x")}
	require.NoError(t, r.hub.HandlePacket(ctx, p, messagePacket(t, "scene-1", put)))

	get := func(path, token string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, r.server.URL+path, nil)
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	t.Run("ok", func(t *testing.T) {
		resp := get("/api/v1/scenes/scene-1/state", r.token(t, "0xbob"))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, api.ContentTypeCRDT, resp.Header.Get("Content-Type"))
		assert.Equal(t, "1", resp.Header.Get("X-Scene-Entries"))

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NotEmpty(t, body)
		assert.Equal(t, byte(protocol.CommsCRDT), body[0])

		messages, err := protocol.DecodeAll(body[1:])
		require.NoError(t, err)
		assert.Equal(t, []protocol.Message{put}, messages)
	})

	t.Run("unknown scene is empty", func(t *testing.T) {
		resp := get("/api/v1/scenes/other/state", r.token(t, "0xbob"))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(protocol.CommsCRDT)}, body)
	})

	t.Run("unauthorized", func(t *testing.T) {
		resp := get("/api/v1/scenes/scene-1/state", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("invalid scene id", func(t *testing.T) {
		resp := get("/api/v1/scenes/bad%20id/state", r.token(t, "0xbob"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestWSHandler_Unauthorized(t *testing.T) {
	r := newTestRelay(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := ws.Dial(ctx, r.wsURL(), "", setupTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	_, err = ws.Dial(ctx, r.wsURL(), "garbage", setupTestLogger())
	require.Error(t, err)
}

func TestWSHandler_QueryToken(t *testing.T) {
	r := newTestRelay(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := ws.Dial(ctx, r.wsURL()+"?token="+r.token(t, "0xalice"), "", setupTestLogger())
	require.NoError(t, err)
	defer c.Close()

	require.Eventually(t, func() bool { return r.hub.Stats().Peers == 1 }, 2*time.Second, 10*time.Millisecond)
}

// Две сцены через настоящий relay сходятся к одному состоянию
func TestWSHandler_EndToEnd(t *testing.T) {
	r := newTestRelay(t)
	ctx := context.Background()

	newScene := func(address string, networkID uint32) *scene.Scene {
		s, err := scene.New(ctx, scene.Config{
			SceneID:   "plaza",
			NetworkID: networkID,
			Pipe:      r.dial(t, address),
			Logger:    setupTestLogger(),
		})
		require.NoError(t, err)
		t.Cleanup(s.Close)
		return s
	}

	alice := newScene("0xalice", 1)
	bob := newScene("0xbob", 2)

	require.Eventually(t, func() bool {
		return r.hub.Stats() == relay.Stats{Rooms: 1, Peers: 2}
	}, 2*time.Second, 10*time.Millisecond)

	_, err := alice.PutComponent(ctx, 512, 1, []byte("hello"))
	require.NoError(t, err)
	require.NoError(t, alice.Flush(ctx))

	require.Eventually(t, func() bool {
		if _, err := bob.ProcessInbound(ctx); err != nil {
			return false
		}
		_, ok := bob.Get(512, 1)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	entry, _ := bob.Get(512, 1)
	assert.Equal(t, []byte("hello"), entry.Content)

	// Новый peer получает состояние от relay и от bob
	carol := newScene("0xcarol", 3)
	require.Eventually(t, func() bool {
		return r.hub.Stats().Peers == 3
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, carol.RequestState(ctx))

	require.Eventually(t, func() bool {
		if _, err := carol.ProcessInbound(ctx); err != nil {
			return false
		}
		_, ok := carol.Get(512, 1)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	snapshot, err := r.hub.Snapshot(ctx, "plaza")
	require.NoError(t, err)
	assert.Equal(t, carol.Snapshot(), snapshot)
}
