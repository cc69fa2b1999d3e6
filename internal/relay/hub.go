// Package relay implements the server side of the scene message pipe: peers
// join scenes, their traffic is filtered, merged into an authoritative copy
// of the scene state and fanned out to the other peers through a Broker.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/iudanet/scenesync/internal/crdt"
	"github.com/iudanet/scenesync/internal/filter"
	"github.com/iudanet/scenesync/internal/models"
	"github.com/iudanet/scenesync/internal/nosync"
	"github.com/iudanet/scenesync/internal/pipe"
	"github.com/iudanet/scenesync/internal/protocol"
	"github.com/iudanet/scenesync/internal/storage"
	"github.com/iudanet/scenesync/internal/transport"
)

// RelayAddress is the sender of state responses produced by the relay itself.
const RelayAddress = "relay"

const defaultSendBuffer = 256

var (
	// ErrHubClosed is returned after Close.
	ErrHubClosed = errors.New("hub closed")
	// ErrNotJoined is returned for messages to a scene the peer has not joined.
	ErrNotJoined = errors.New("peer has not joined the scene")
	// ErrUnknownOp is returned for packets with an unknown operation.
	ErrUnknownOp = errors.New("unknown packet operation")
	// ErrInvalidAddress is returned by Register for an empty or too long address.
	ErrInvalidAddress = errors.New("invalid peer address")
)

// Config описывает hub.
type Config struct {
	Broker     Broker               // Broker по умолчанию LocalBroker
	Storage    storage.SceneStorage // Storage может быть nil, тогда состояние живет только в памяти
	Filter     *filter.Filter
	Comparator crdt.Comparator
	Logger     *slog.Logger
	SendBuffer int
}

// Peer is one connected client. Deliveries for it are queued on Send.
type Peer struct {
	send      chan []byte
	scenes    map[string]struct{}
	address   string
	sessionID string
	dropped   atomic.Uint64
}

// Address returns the authenticated peer address.
func (p *Peer) Address() string { return p.address }

// SessionID returns the id of this connection.
func (p *Peer) SessionID() string { return p.sessionID }

// Send returns the queue of encoded deliveries. It is closed by Unregister.
func (p *Peer) Send() <-chan []byte { return p.send }

// Dropped returns the number of deliveries dropped because the queue was full.
func (p *Peer) Dropped() uint64 { return p.dropped.Load() }

type room struct {
	store       *crdt.Store
	peers       map[*Peer]struct{}
	unsubscribe func()
	mu          sync.Mutex // mu защищает store и порядок записи в storage
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Rooms int `json:"rooms"`
	Peers int `json:"peers"`
}

// Hub routes packets between peers of the same scene.
type Hub struct {
	broker     Broker
	storage    storage.SceneStorage
	filter     *filter.Filter
	comparator crdt.Comparator
	logger     *slog.Logger
	rooms      map[string]*room
	peers      map[*Peer]struct{}
	sendBuffer int
	mu         sync.RWMutex
	closed     bool
}

// NewHub creates a hub.
func NewHub(cfg Config) *Hub {
	h := &Hub{
		broker:     cfg.Broker,
		storage:    cfg.Storage,
		filter:     cfg.Filter,
		comparator: cfg.Comparator,
		logger:     cfg.Logger,
		sendBuffer: cfg.SendBuffer,
		rooms:      make(map[string]*room),
		peers:      make(map[*Peer]struct{}),
	}
	if h.broker == nil {
		h.broker = NewLocalBroker()
	}
	if h.filter == nil {
		h.filter = filter.New(nosync.Default())
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.sendBuffer <= 0 {
		h.sendBuffer = defaultSendBuffer
	}
	return h
}

// Register adds a peer with the given address.
func (h *Hub) Register(address string) (*Peer, error) {
	if address == "" || len(address) > transport.MaxFieldLength || address == RelayAddress {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	p := &Peer{
		address:   address,
		sessionID: uuid.NewString(),
		send:      make(chan []byte, h.sendBuffer),
		scenes:    make(map[string]struct{}),
	}
	h.peers[p] = struct{}{}

	h.logger.Info("Peer connected", "address", address, "session", p.sessionID)
	return p, nil
}

// Unregister removes the peer from all its scenes and closes its queue.
func (h *Hub) Unregister(p *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.peers[p]; !ok {
		return
	}
	for sceneID := range p.scenes {
		if r, ok := h.rooms[sceneID]; ok {
			delete(r.peers, p)
		}
	}
	delete(h.peers, p)
	close(p.send)

	h.logger.Info("Peer disconnected", "address", p.address, "session", p.sessionID, "dropped", p.Dropped())
}

// HandlePacket processes one client packet of peer.
func (h *Hub) HandlePacket(ctx context.Context, p *Peer, data []byte) error {
	packet, err := transport.ParsePacket(data)
	if err != nil {
		return err
	}

	switch packet.Op {
	case transport.OpJoin:
		return h.join(ctx, p, packet.SceneID)
	case transport.OpLeave:
		h.leave(p, packet.SceneID)
		return nil
	case transport.OpMessage:
		return h.message(ctx, p, packet)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOp, packet.Op)
	}
}

func (h *Hub) join(ctx context.Context, p *Peer, sceneID string) error {
	if sceneID == "" {
		return storage.ErrEmptySceneID
	}

	r, err := h.room(ctx, sceneID)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.peers[p]; !ok {
		return ErrHubClosed
	}
	r.peers[p] = struct{}{}
	p.scenes[sceneID] = struct{}{}

	h.logger.Debug("Peer joined scene", "address", p.address, "scene", sceneID)
	return nil
}

func (h *Hub) leave(p *Peer, sceneID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.rooms[sceneID]; ok {
		delete(r.peers, p)
	}
	delete(p.scenes, sceneID)
}

// room возвращает комнату сцены, загружая состояние и подписываясь на брокер при первом обращении
func (h *Hub) room(ctx context.Context, sceneID string) (*room, error) {
	h.mu.RLock()
	r, ok := h.rooms[sceneID]
	closed := h.closed
	h.mu.RUnlock()
	if ok {
		return r, nil
	}
	if closed {
		return nil, ErrHubClosed
	}

	store, err := h.load(ctx, sceneID)
	if err != nil {
		return nil, err
	}

	r = &room{store: store, peers: make(map[*Peer]struct{})}
	unsubscribe, err := h.broker.Subscribe(ctx, sceneID, func(data []byte) {
		h.fanout(sceneID, data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to scene %s: %w", sceneID, err)
	}
	r.unsubscribe = unsubscribe

	h.mu.Lock()
	if existing, ok := h.rooms[sceneID]; ok || h.closed {
		h.mu.Unlock()
		// Комнату успела создать другая горутина
		unsubscribe()
		if existing == nil {
			return nil, ErrHubClosed
		}
		return existing, nil
	}
	h.rooms[sceneID] = r
	h.mu.Unlock()

	h.logger.Info("Scene room opened", "scene", sceneID, "entries", store.Len())
	return r, nil
}

func (h *Hub) load(ctx context.Context, sceneID string) (*crdt.Store, error) {
	store := crdt.NewStore(crdt.WithComparator(h.comparator))
	if h.storage == nil {
		return store, nil
	}

	state, err := h.storage.LoadScene(ctx, sceneID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scene %s: %w", sceneID, err)
	}
	for _, id := range state.DeletedEntities {
		store.RestoreDeletedEntity(id)
	}
	for _, entry := range state.Entries {
		store.Restore(entry)
	}
	return store, nil
}

func (h *Hub) joined(p *Peer, sceneID string) (*room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := p.scenes[sceneID]; !ok {
		return nil, false
	}
	r, ok := h.rooms[sceneID]
	return r, ok
}

func (h *Hub) message(ctx context.Context, p *Peer, packet transport.Packet) error {
	r, ok := h.joined(p, packet.SceneID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotJoined, packet.SceneID)
	}

	payload := packet.Payload
	if packet.MsgType == pipe.MsgTypeUint8Array && len(payload) > 0 {
		filtered := make([]byte, len(payload))
		n, err := h.filter.FilterComms(payload, filtered)
		if err != nil {
			if n == 0 || n == protocol.CommsPrefixLength(filtered[:n]) {
				return fmt.Errorf("dropping malformed payload from %s: %w", p.address, err)
			}
			h.logger.Warn("Relaying partial batch", "from", p.address, "scene", packet.SceneID, "error", err)
		}
		payload = filtered[:n]

		if err := h.absorb(ctx, r, packet.SceneID, p, payload); err != nil {
			h.logger.Error("Failed to persist scene state", "scene", packet.SceneID, "error", err)
		}
	}

	data, err := transport.Delivery{
		MsgType:   packet.MsgType,
		SceneID:   packet.SceneID,
		Sender:    p.address,
		Recipient: packet.Recipient,
		Payload:   payload,
	}.Marshal()
	if err != nil {
		return err
	}

	if err := h.broker.Publish(ctx, packet.SceneID, data); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	return nil
}

// absorb merges CRDT traffic into the room state and answers state requests
// from the relay copy.
func (h *Hub) absorb(ctx context.Context, r *room, sceneID string, p *Peer, payload []byte) error {
	switch protocol.CommsKind(payload[0]) {
	case protocol.CommsCRDT:
		return h.merge(ctx, r, sceneID, payload[1:])
	case protocol.CommsResCRDTState:
		env, err := protocol.ParseStateEnvelope(payload)
		if err != nil {
			return nil
		}
		return h.merge(ctx, r, sceneID, env.Payload)
	case protocol.CommsReqCRDTState:
		h.answerState(r, sceneID, p)
	}
	return nil
}

func (h *Hub) merge(ctx context.Context, r *room, sceneID string, frames []byte) error {
	// Фильтр уже отбросил кадры после поврежденного, ошибка здесь невозможна
	messages, _ := protocol.DecodeAll(frames)

	r.mu.Lock()
	defer r.mu.Unlock()

	var dirty []*models.ComponentEntry
	var deleted []int32
	for _, m := range messages {
		outcome := r.store.Apply(m)
		if outcome == crdt.Stale {
			continue
		}
		switch {
		case m.Type.IsPut(), m.Type.IsDeleteComponent():
			dirty = append(dirty, models.NewComponentEntry(m, outcome == crdt.Deleted))
		case m.Type.IsDeleteEntity():
			deleted = append(deleted, m.EntityID)
		}
	}

	if h.storage == nil {
		return nil
	}

	var errs []error
	for _, id := range deleted {
		if err := h.storage.SaveDeletedEntity(ctx, sceneID, id); err != nil {
			errs = append(errs, err)
		}
	}
	if len(dirty) > 0 {
		if err := h.storage.SaveEntries(ctx, sceneID, dirty); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Hub) answerState(r *room, sceneID string, p *Peer) {
	r.mu.Lock()
	snapshot := r.store.Snapshot()
	r.mu.Unlock()

	if len(snapshot) == 0 {
		return
	}

	response, err := protocol.AppendStateEnvelope(nil, p.address)
	if err == nil {
		response, err = protocol.AppendFrames(response, snapshot)
	}
	if err != nil {
		h.logger.Warn("Cannot encode relay state", "scene", sceneID, "error", err)
		return
	}

	data, err := transport.Delivery{
		MsgType:   pipe.MsgTypeUint8Array,
		SceneID:   sceneID,
		Sender:    RelayAddress,
		Recipient: p.address,
		Payload:   response,
	}.Marshal()
	if err != nil {
		h.logger.Warn("Cannot encode relay state", "scene", sceneID, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.peers[p]; ok {
		h.deliver(p, data)
	}
}

// fanout delivers a broker message to the local peers of the scene.
func (h *Hub) fanout(sceneID string, data []byte) {
	d, err := transport.ParseDelivery(data)
	if err != nil {
		h.logger.Warn("Discarding malformed broker message", "scene", sceneID, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rooms[sceneID]
	if !ok {
		return
	}
	for p := range r.peers {
		if d.For(p.address) {
			h.deliver(p, data)
		}
	}
}

// deliver must be called with h.mu held.
func (h *Hub) deliver(p *Peer, data []byte) {
	select {
	case p.send <- data:
	default:
		p.dropped.Add(1)
		h.logger.Debug("Peer queue full, delivery dropped", "address", p.address)
	}
}

// Snapshot returns the relay copy of the scene as PUT_COMPONENT_NETWORK
// messages. Scenes without a room are read from storage.
func (h *Hub) Snapshot(ctx context.Context, sceneID string) ([]protocol.Message, error) {
	if sceneID == "" {
		return nil, storage.ErrEmptySceneID
	}

	h.mu.RLock()
	r, ok := h.rooms[sceneID]
	h.mu.RUnlock()

	if ok {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.store.Snapshot(), nil
	}

	store, err := h.load(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	return store.Snapshot(), nil
}

// Scenes returns the ids of the open rooms.
func (h *Hub) Scenes() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats returns the number of rooms and peers.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return Stats{Rooms: len(h.rooms), Peers: len(h.peers)}
}

// Close unregisters every peer and drops the broker subscriptions.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true

	unsubscribes := make([]func(), 0, len(h.rooms))
	for id, r := range h.rooms {
		unsubscribes = append(unsubscribes, r.unsubscribe)
		delete(h.rooms, id)
	}
	for p := range h.peers {
		delete(h.peers, p)
		close(p.send)
	}
	h.mu.Unlock()

	// Отписка ждет горутину брокера, которая может ждать h.mu
	for _, unsubscribe := range unsubscribes {
		unsubscribe()
	}
	return nil
}
