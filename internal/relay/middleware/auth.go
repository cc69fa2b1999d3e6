package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/scenesync/internal/relay/auth"
)

type contextKey string

// AddressKey хранит в контексте адрес аутентифицированного peer
const AddressKey contextKey = "peer_address"

// TokenValidator validates a bearer token.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// AddressFromContext returns the peer address stored by AuthMiddleware.
func AddressFromContext(ctx context.Context) (string, bool) {
	address, ok := ctx.Value(AddressKey).(string)
	return address, ok && address != ""
}

// ExtractToken достает токен из заголовка Authorization или query параметра token.
// Браузерный WebSocket не умеет передавать заголовки, поэтому query допустим.
func ExtractToken(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		// Ожидаем формат: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", errInvalidFormat
		}
		return parts[1], nil
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", errMissingToken
}

type authError string

func (e authError) Error() string { return string(e) }

const (
	errMissingToken  authError = "Unauthorized: missing token"
	errInvalidFormat authError = "Unauthorized: invalid token format"
)

// AuthMiddleware создает middleware для проверки JWT токена peer
func AuthMiddleware(logger *slog.Logger, tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := ExtractToken(r)
			if err != nil {
				logger.Warn("Rejected request without valid token", "path", r.URL.Path, "error", err)
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			claims, err := tokens.Validate(tokenString)
			if err != nil {
				logger.Warn("Invalid access token", "error", err)
				http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), AddressKey, claims.Address())
			logger.Debug("Peer authenticated", "address", claims.Address())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
