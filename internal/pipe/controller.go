package pipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iudanet/scenesync/internal/filter"
	"github.com/iudanet/scenesync/internal/nosync"
	"github.com/iudanet/scenesync/internal/protocol"
)

// ErrMalformedEvent is returned by ParseEvent for an event that does not
// carry a complete sender prefix.
var ErrMalformedEvent = errors.New("malformed inbound event")

// ErrControllerClosed is returned by SendBinary after Close.
var ErrControllerClosed = errors.New("communications controller closed")

// Controller is the communications controller of one scene. Outbound batches
// are filtered before they reach the pipe; inbound batches are filtered on
// arrival and queued until the scene drains them with EventsToProcess.
type Controller struct {
	pipe          ScenePipe
	filter        *filter.Filter
	logger        *slog.Logger
	sceneID       string
	events        [][]byte
	mu            sync.Mutex
	assertiveness Assertiveness
	closed        bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithAssertiveness sets the delivery mode used for outbound messages.
func WithAssertiveness(a Assertiveness) ControllerOption {
	return func(c *Controller) {
		c.assertiveness = a
	}
}

// WithFilter replaces the filter backed by the default no-sync set.
func WithFilter(f *filter.Filter) ControllerOption {
	return func(c *Controller) {
		if f != nil {
			c.filter = f
		}
	}
}

// NewController создает контроллер сцены и регистрирует обработчик входящих
// сообщений в pipe.
func NewController(sceneID string, p ScenePipe, logger *slog.Logger, opts ...ControllerOption) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		pipe:    p,
		filter:  filter.New(nosync.Default()),
		logger:  logger.With("scene", sceneID),
		sceneID: sceneID,
	}
	for _, opt := range opts {
		opt(c)
	}

	p.AddSceneMessageHandler(sceneID, MsgTypeUint8Array, c.onMessage)
	return c
}

// SceneID returns the scene the controller is bound to.
func (c *Controller) SceneID() string {
	return c.sceneID
}

// SendBinary filters every batch according to its comms kind and sends it
// through the pipe prefixed with the Uint8Array message type.
//
//   - CRDT: no-sync frames are removed.
//   - RES_CRDT_STATE: the payload is filtered and the message is addressed to
//     the peer named in the envelope.
//   - anything else is forwarded unchanged.
//
// A batch with a corrupt tail is sent up to the point of corruption; a batch
// with no intact frame is dropped. Send
// failures do not stop the remaining batches; they are returned joined.
func (c *Controller) SendBinary(ctx context.Context, batches [][]byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrControllerClosed
	}

	var errs []error
	for i, batch := range batches {
		if len(batch) == 0 {
			continue
		}

		message := make([]byte, 1+len(batch))
		message[0] = byte(MsgTypeUint8Array)

		n, recipient, err := c.filterBatch(batch, message[1:])
		if err != nil {
			// Без единого кадра отправлять нечего
			if n == 0 || n == protocol.CommsPrefixLength(message[1:1+n]) {
				c.logger.Warn("Dropping outbound batch", "index", i, "error", err)
				continue
			}
			c.logger.Warn("Outbound batch truncated", "index", i, "kept_bytes", n, "error", err)
		}

		if err := c.pipe.SendMessage(ctx, message[:1+n], c.sceneID, c.assertiveness, recipient); err != nil {
			errs = append(errs, fmt.Errorf("send batch %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// filterBatch пишет отфильтрованный batch в out и возвращает число байт и
// получателя (только для RES_CRDT_STATE).
func (c *Controller) filterBatch(batch, out []byte) (int, string, error) {
	var recipient string
	if protocol.CommsKind(batch[0]) == protocol.CommsResCRDTState {
		env, err := protocol.ParseStateEnvelope(batch)
		if err != nil {
			return 0, "", err
		}
		recipient = string(env.Address)
	}

	n, err := c.filter.FilterComms(batch, out)
	return n, recipient, err
}

func (c *Controller) onMessage(msg DecodedMessage) {
	if len(msg.Data) == 0 {
		return
	}
	if len(msg.FromWalletID) > protocol.MaxAddressLength {
		c.logger.Warn("Dropping inbound message: sender address too long", "length", len(msg.FromWalletID))
		return
	}

	prefix := 1 + len(msg.FromWalletID)
	event := make([]byte, prefix+len(msg.Data))
	event[0] = byte(len(msg.FromWalletID))
	copy(event[1:], msg.FromWalletID)

	n, _, err := c.filterBatch(msg.Data, event[prefix:])
	if err != nil {
		if n == 0 || n == protocol.CommsPrefixLength(event[prefix:prefix+n]) {
			c.logger.Warn("Dropping inbound batch", "from", msg.FromWalletID, "error", err)
			return
		}
		c.logger.Warn("Inbound batch truncated", "from", msg.FromWalletID, "kept_bytes", n, "error", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.events = append(c.events, event[:prefix+n])
}

// EventsToProcess returns the queued inbound events in arrival order and
// empties the queue. Each event is [len(sender)][sender][payload].
func (c *Controller) EventsToProcess() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	events := c.events
	c.events = nil
	return events
}

// Pending returns the number of queued inbound events.
func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.events)
}

// Close unregisters the inbound handler and drops queued events.
// Calling Close more than once is a no-op.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.events = nil
	c.mu.Unlock()

	c.pipe.RemoveSceneMessageHandler(c.sceneID, MsgTypeUint8Array)
}

// ParseEvent splits a queued event into the sender address and the filtered
// comms payload. Both alias event.
func ParseEvent(event []byte) (string, []byte, error) {
	if len(event) == 0 {
		return "", nil, fmt.Errorf("%w: empty event", ErrMalformedEvent)
	}
	senderLen := int(event[0])
	if len(event) < 1+senderLen {
		return "", nil, fmt.Errorf("%w: sender length %d exceeds %d bytes", ErrMalformedEvent, senderLen, len(event)-1)
	}
	return string(event[1 : 1+senderLen]), event[1+senderLen:], nil
}
