package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/scenesync/internal/relay/auth"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestAuthMiddleware(t *testing.T) {
	tokens := auth.New([]byte("test-secret-key-32-bytes-long!!!"), time.Minute)
	valid, _, err := tokens.Issue("0xalice")
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
		wantBody   string
	}{
		{name: "bearer header", header: "Bearer " + valid, wantStatus: http.StatusOK, wantBody: "0xalice"},
		{name: "lowercase scheme", header: "bearer " + valid, wantStatus: http.StatusOK, wantBody: "0xalice"},
		{name: "query token", query: "?token=" + valid, wantStatus: http.StatusOK, wantBody: "0xalice"},
		{name: "missing token", wantStatus: http.StatusUnauthorized, wantBody: "Unauthorized: missing token"},
		{name: "basic scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantBody: "Unauthorized: invalid token format"},
		{name: "empty bearer", header: "Bearer ", wantStatus: http.StatusUnauthorized, wantBody: "Unauthorized: invalid token format"},
		{name: "invalid token", header: "Bearer garbage", wantStatus: http.StatusUnauthorized, wantBody: "Unauthorized: invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AuthMiddleware(setupTestLogger(), tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				address, ok := AddressFromContext(r.Context())
				assert.True(t, ok)
				_, _ = w.Write([]byte(address))
			}))

			req := httptest.NewRequest(http.MethodGet, "/ws"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestAddressFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := AddressFromContext(req.Context())
	assert.False(t, ok)
}
