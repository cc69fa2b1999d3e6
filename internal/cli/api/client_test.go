package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/scenesync/pkg/api"
)

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/")

	assert.Equal(t, "http://localhost:8080", client.BaseURL())
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
}

func TestClient_WebSocketURL(t *testing.T) {
	tests := []struct {
		baseURL string
		want    string
		wantErr bool
	}{
		{baseURL: "http://localhost:8080", want: "ws://localhost:8080/ws"},
		{baseURL: "https://relay.example.com/", want: "wss://relay.example.com/ws"},
		{baseURL: "https://example.com/relay", want: "wss://example.com/relay/ws"},
		{baseURL: "ws://localhost:1", want: "ws://localhost:1/ws"},
		{baseURL: "ftp://localhost", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.baseURL, func(t *testing.T) {
			got, err := NewClient(tt.baseURL).WebSocketURL()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_IssueToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/token", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req api.TokenRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "0xalice", req.Address)

		_ = json.NewEncoder(w).Encode(api.TokenResponse{AccessToken: "token-123", ExpiresIn: 900})
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).IssueToken(context.Background(), "0xalice")
	require.NoError(t, err)
	assert.Equal(t, "token-123", resp.AccessToken)
	assert.Equal(t, int64(900), resp.ExpiresIn)
}

func TestClient_ServerError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{
			name:    "json error",
			status:  http.StatusBadRequest,
			body:    `{"error":"Bad Request","message":"address cannot be empty"}`,
			wantMsg: "server error (400): address cannot be empty",
		},
		{
			name:    "plain text error",
			status:  http.StatusUnauthorized,
			body:    "Unauthorized: invalid token\n",
			wantMsg: "request failed with status 401: Unauthorized: invalid token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL).IssueToken(context.Background(), "0xalice")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestClient_SceneState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/scenes/plaza/state", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", api.ContentTypeCRDT)
		_, _ = w.Write([]byte{1, 2, 3})
	}))
	defer server.Close()

	body, err := NewClient(server.URL).SceneState(context.Background(), "secret", "plaza")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, body)
}

func TestClient_Health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/health", r.URL.Path)
		_ = json.NewEncoder(w).Encode(api.HealthResponse{Status: "ok", Version: "1.0.0", Rooms: 2})
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Rooms)
}

func TestClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewClient("http://127.0.0.1:1").Health(ctx)
	assert.Error(t, err)
}
