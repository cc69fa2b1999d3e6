package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/scenesync/internal/relay"
	"github.com/iudanet/scenesync/internal/relay/middleware"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

// PeerHub is the part of relay.Hub used by the websocket endpoint.
type PeerHub interface {
	Register(address string) (*relay.Peer, error)
	Unregister(p *relay.Peer)
	HandlePacket(ctx context.Context, p *relay.Peer, data []byte) error
}

// WSHandler подключает peer к hub по websocket
type WSHandler struct {
	logger   *slog.Logger
	hub      PeerHub
	upgrader websocket.Upgrader
}

// NewWSHandler создает handler websocket эндпоинта
func NewWSHandler(logger *slog.Logger, hub PeerHub) *WSHandler {
	return &WSHandler{
		logger: logger,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Peer аутентифицируется токеном, Origin не проверяем
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve обрабатывает GET /ws. Адрес peer кладет в контекст AuthMiddleware.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	address, ok := middleware.AddressFromContext(r.Context())
	if !ok {
		sendError(h.logger, w, "missing peer address", http.StatusUnauthorized)
		return
	}

	peer, err := h.hub.Register(address)
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, relay.ErrInvalidAddress) {
			status = http.StatusBadRequest
		}
		sendError(h.logger, w, err.Error(), status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.logger.Warn("websocket upgrade failed", "address", address, "error", err)
		h.hub.Unregister(peer)
		return
	}

	done := make(chan struct{})
	go h.writePump(conn, peer, done)
	h.readPump(conn, peer)

	h.hub.Unregister(peer)
	<-done
	conn.Close()
}

func (h *WSHandler) readPump(conn *websocket.Conn, peer *relay.Peer) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := context.Background()
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read failed", "address", peer.Address(), "error", err)
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		// Ошибочный пакет не рвет соединение
		if err := h.hub.HandlePacket(ctx, peer, data); err != nil {
			h.logger.Warn("packet rejected", "address", peer.Address(), "error", err)
		}
	}
}

// writePump пишет доставки peer, пока hub не закроет очередь
func (h *WSHandler) writePump(conn *websocket.Conn, peer *relay.Peer, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-peer.Send():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				h.logger.Debug("websocket write failed", "address", peer.Address(), "error", err)
				// Закрываем соединение, чтобы readPump вышел и снял peer с hub
				conn.Close()
				drain(peer)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				drain(peer)
				return
			}
		}
	}
}

// drain ждет закрытия очереди, чтобы hub не блокировался на ней
func drain(peer *relay.Peer) {
	for range peer.Send() {
	}
}
