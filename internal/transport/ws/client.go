// Package ws implements pipe.ScenePipe over a websocket connection to the relay.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/scenesync/internal/pipe"
	"github.com/iudanet/scenesync/internal/transport"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

// ErrNotConnected is returned for asserted sends on a closed connection.
var ErrNotConnected = pipe.ErrNotConnected

type handlerKey struct {
	sceneID string
	msgType pipe.MsgType
}

// Client is a websocket connection to the relay. Adding the first handler
// for a scene joins it; removing the last one leaves it.
type Client struct {
	conn     *websocket.Conn
	logger   *slog.Logger
	handlers map[handlerKey]pipe.SceneMessageHandler
	scenes   map[string]int
	send     chan []byte
	done     chan struct{}
	err      error
	mu       sync.RWMutex
	wg       sync.WaitGroup
	once     sync.Once
}

var _ pipe.ScenePipe = (*Client)(nil)

// Dial connects to the relay websocket endpoint url with the bearer token.
func Dial(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial relay: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to dial relay: %w", err)
	}

	return newClient(conn, logger), nil
}

func newClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	c := &Client{
		conn:     conn,
		logger:   logger,
		handlers: make(map[handlerKey]pipe.SceneMessageHandler),
		scenes:   make(map[string]int),
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.writeLoop()
	return c
}

// SendMessage implements pipe.ScenePipe. The first byte of message is the
// pipe message type.
func (c *Client) SendMessage(ctx context.Context, message []byte, sceneID string, assertiveness pipe.Assertiveness, recipient string) error {
	if len(message) == 0 {
		return pipe.ErrEmptyMessage
	}

	data, err := transport.Packet{
		Op:            transport.OpMessage,
		MsgType:       pipe.MsgType(message[0]),
		Assertiveness: assertiveness,
		SceneID:       sceneID,
		Recipient:     recipient,
		Payload:       message[1:],
	}.Marshal()
	if err != nil {
		return err
	}

	if err := c.enqueue(ctx, data); err != nil {
		if assertiveness == pipe.DeliveryAsserted {
			return err
		}
		c.logger.Debug("Message dropped", "scene", sceneID, "error", err)
	}
	return nil
}

// AddSceneMessageHandler implements pipe.ScenePipe.
func (c *Client) AddSceneMessageHandler(sceneID string, msgType pipe.MsgType, handler pipe.SceneMessageHandler) {
	c.mu.Lock()
	key := handlerKey{sceneID: sceneID, msgType: msgType}
	_, replaced := c.handlers[key]
	c.handlers[key] = handler
	join := false
	if !replaced {
		c.scenes[sceneID]++
		join = c.scenes[sceneID] == 1
	}
	c.mu.Unlock()

	if join {
		c.control(transport.OpJoin, sceneID)
	}
}

// RemoveSceneMessageHandler implements pipe.ScenePipe.
func (c *Client) RemoveSceneMessageHandler(sceneID string, msgType pipe.MsgType) {
	c.mu.Lock()
	key := handlerKey{sceneID: sceneID, msgType: msgType}
	leave := false
	if _, ok := c.handlers[key]; ok {
		delete(c.handlers, key)
		c.scenes[sceneID]--
		if c.scenes[sceneID] <= 0 {
			delete(c.scenes, sceneID)
			leave = true
		}
	}
	c.mu.Unlock()

	if leave {
		c.control(transport.OpLeave, sceneID)
	}
}

func (c *Client) control(op transport.Op, sceneID string) {
	data, err := transport.Packet{Op: op, SceneID: sceneID}.Marshal()
	if err != nil {
		c.logger.Warn("Invalid scene id", "op", op, "error", err)
		return
	}
	if err := c.enqueue(context.Background(), data); err != nil {
		c.logger.Debug("Control packet dropped", "op", op, "scene", sceneID, "error", err)
	}
}

func (c *Client) enqueue(ctx context.Context, data []byte) error {
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) handler(sceneID string, msgType pipe.MsgType) pipe.SceneMessageHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.handlers[handlerKey{sceneID: sceneID, msgType: msgType}]
}

func (c *Client) readLoop() {
	defer c.wg.Done()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		d, err := transport.ParseDelivery(data)
		if err != nil {
			c.logger.Warn("Discarding malformed delivery", "error", err)
			continue
		}

		if h := c.handler(d.SceneID, d.MsgType); h != nil {
			h(pipe.DecodedMessage{Data: d.Payload, FromWalletID: d.Sender})
		}
	}
}

func (c *Client) writeLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				c.shutdown(err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown(err)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) shutdown(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
		c.conn.Close()
	})
}

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that closed the connection, nil after Close.
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if errors.Is(c.err, errClosed) {
		return nil
	}
	return c.err
}

var errClosed = errors.New("client closed")

// Close sends a close frame and waits for the connection goroutines.
func (c *Client) Close() error {
	select {
	case <-c.done:
	default:
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.shutdown(errClosed)
	}
	c.wg.Wait()
	return nil
}
