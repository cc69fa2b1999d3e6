package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/scenesync/internal/relay"
	"github.com/iudanet/scenesync/internal/validation"
	"github.com/iudanet/scenesync/pkg/api"
)

// TokenIssuer issues peer tokens.
type TokenIssuer interface {
	Issue(address string) (string, int64, error)
}

// TokenHandler выдает токены peer.
//
// Адрес не проверяется: relay доверяет тому, кто может достучаться до этого
// эндпоинта. В проде его закрывают на уровне сети или отключают.
type TokenHandler struct {
	logger *slog.Logger
	tokens TokenIssuer
}

// NewTokenHandler создает новый handler выдачи токенов
func NewTokenHandler(logger *slog.Logger, tokens TokenIssuer) *TokenHandler {
	return &TokenHandler{logger: logger, tokens: tokens}
}

// Issue обрабатывает POST /api/v1/token
func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode token request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateAddress(req.Address); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Address == relay.RelayAddress {
		sendError(h.logger, w, "address is reserved", http.StatusBadRequest)
		return
	}

	token, expiresIn, err := h.tokens.Issue(req.Address)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue token", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "token issued", slog.String("address", req.Address))
	sendJSON(h.logger, w, api.TokenResponse{AccessToken: token, ExpiresIn: expiresIn}, http.StatusOK)
}
