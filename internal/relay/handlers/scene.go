package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/iudanet/scenesync/internal/protocol"
	"github.com/iudanet/scenesync/internal/validation"
	"github.com/iudanet/scenesync/pkg/api"
)

// Snapshotter returns the relay copy of a scene.
type Snapshotter interface {
	Snapshot(ctx context.Context, sceneID string) ([]protocol.Message, error)
}

// SceneHandler отдает состояние сцены
type SceneHandler struct {
	logger *slog.Logger
	hub    Snapshotter
}

// NewSceneHandler создает новый handler состояния сцены
func NewSceneHandler(logger *slog.Logger, hub Snapshotter) *SceneHandler {
	return &SceneHandler{logger: logger, hub: hub}
}

// State обрабатывает GET /api/v1/scenes/{sceneID}/state.
// Ответ - CRDT batch [kind][frames...] из PUT_COMPONENT_NETWORK сообщений.
func (h *SceneHandler) State(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sceneID := mux.Vars(r)["sceneID"]

	if err := validation.ValidateSceneID(sceneID); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	snapshot, err := h.hub.Snapshot(ctx, sceneID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load scene state", slog.String("scene", sceneID), slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	body, err := protocol.AppendBatch(nil, snapshot)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to encode scene state", slog.String("scene", sceneID), slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", api.ContentTypeCRDT)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("X-Scene-Entries", strconv.Itoa(len(snapshot)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.WarnContext(ctx, "failed to write scene state", slog.Any("error", err))
	}
}
