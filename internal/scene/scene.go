// Package scene runs the CRDT state of one scene: local edits get a logical
// timestamp, are applied to the LWW store and batched out through the pipe
// controller; inbound batches are merged and handed to the consumer.
//
// A Scene is owned by a single goroutine. Only the inbound queue of its
// controller is filled concurrently by the pipe.
package scene

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/scenesync/internal/crdt"
	"github.com/iudanet/scenesync/internal/filter"
	"github.com/iudanet/scenesync/internal/models"
	"github.com/iudanet/scenesync/internal/pipe"
	"github.com/iudanet/scenesync/internal/protocol"
	"github.com/iudanet/scenesync/internal/storage"
)

var (
	// ErrInvalidConfig is returned by New for a config without scene id or pipe.
	ErrInvalidConfig = errors.New("invalid scene config")
	// ErrEntityDeleted is returned for local edits of a deleted entity.
	ErrEntityDeleted = errors.New("entity is deleted")
	// ErrStaleEdit is returned when a local edit loses to the stored version.
	ErrStaleEdit = errors.New("local edit is stale")
)

// Consumer receives remote changes that were accepted by the store.
type Consumer interface {
	OnMessage(m protocol.Message, outcome crdt.Outcome)
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(m protocol.Message, outcome crdt.Outcome)

// OnMessage implements Consumer.
func (f ConsumerFunc) OnMessage(m protocol.Message, outcome crdt.Outcome) {
	f(m, outcome)
}

// Config описывает сцену.
type Config struct {
	Pipe       pipe.ScenePipe       // Pipe транспорт, обязателен
	Consumer   Consumer             // Consumer получатель удаленных изменений, может быть nil
	Storage    storage.SceneStorage // Storage хранилище состояния, может быть nil
	Comparator crdt.Comparator      // Comparator tie-break при равных timestamp
	Filter     *filter.Filter       // Filter фильтр no-sync компонентов
	Logger     *slog.Logger
	SceneID    string
	NetworkID  uint32 // NetworkID идентификатор этого peer, 0 - сгенерировать
}

// Stats summarizes one ProcessInbound call.
type Stats struct {
	Events        int
	Messages      int
	Accepted      int
	Deleted       int
	Stale         int
	Malformed     int
	StateRequests int
}

// Scene is the runtime of one scene.
type Scene struct {
	store      *crdt.Store
	clock      *crdt.Clock
	controller *pipe.Controller
	consumer   Consumer
	storage    storage.SceneStorage
	logger     *slog.Logger
	sceneID    string
	pending    []protocol.Message
	networkID  uint32
}

// New creates a scene, restores its persisted state and registers it with the pipe.
func New(ctx context.Context, cfg Config) (*Scene, error) {
	if cfg.SceneID == "" {
		return nil, fmt.Errorf("%w: scene id is empty", ErrInvalidConfig)
	}
	if cfg.Pipe == nil {
		return nil, fmt.Errorf("%w: pipe is nil", ErrInvalidConfig)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	networkID := cfg.NetworkID
	if networkID == 0 {
		networkID = NewNetworkID()
	}

	s := &Scene{
		store:     crdt.NewStore(crdt.WithComparator(cfg.Comparator)),
		clock:     crdt.NewClock(),
		consumer:  cfg.Consumer,
		storage:   cfg.Storage,
		logger:    logger.With("scene", cfg.SceneID),
		sceneID:   cfg.SceneID,
		networkID: networkID,
	}

	if err := s.restore(ctx); err != nil {
		return nil, err
	}

	s.controller = pipe.NewController(cfg.SceneID, cfg.Pipe, logger, pipe.WithFilter(cfg.Filter))

	s.logger.Info("Scene started",
		"network_id", networkID,
		"entries", s.store.Len(),
	)
	return s, nil
}

// NewNetworkID returns a random non-zero network id.
func NewNetworkID() uint32 {
	id := uuid.New()
	if v := binary.BigEndian.Uint32(id[:4]); v != 0 {
		return v
	}
	return 1
}

func (s *Scene) restore(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}

	state, err := s.storage.LoadScene(ctx, s.sceneID)
	if err != nil {
		return fmt.Errorf("failed to load scene state: %w", err)
	}

	for _, id := range state.DeletedEntities {
		s.store.RestoreDeletedEntity(id)
	}
	for _, entry := range state.Entries {
		if s.store.Restore(entry) {
			s.clock.Observe(entry.Key(), entry.Timestamp)
		}
	}
	return nil
}

// SceneID returns the scene id.
func (s *Scene) SceneID() string {
	return s.sceneID
}

// NetworkID returns the id that tags messages produced by this peer.
func (s *Scene) NetworkID() uint32 {
	return s.networkID
}

// PutComponent sets the component content and queues the change for Flush.
func (s *Scene) PutComponent(ctx context.Context, entityID int32, componentID uint32, content []byte) (protocol.Message, error) {
	return s.local(ctx, protocol.Message{
		Type:        protocol.PutComponentNetwork,
		EntityID:    entityID,
		ComponentID: componentID,
		Content:     content,
	})
}

// DeleteComponent removes the component and queues the change for Flush.
func (s *Scene) DeleteComponent(ctx context.Context, entityID int32, componentID uint32) (protocol.Message, error) {
	return s.local(ctx, protocol.Message{
		Type:        protocol.DeleteComponentNetwork,
		EntityID:    entityID,
		ComponentID: componentID,
	})
}

// AppendComponent queues an append-only value. It is kept in the bounded
// append history of the store, not as an LWW entry.
func (s *Scene) AppendComponent(ctx context.Context, entityID int32, componentID uint32, content []byte) (protocol.Message, error) {
	return s.local(ctx, protocol.Message{
		Type:        protocol.AppendComponent,
		EntityID:    entityID,
		ComponentID: componentID,
		Content:     content,
	})
}

// DeleteEntity removes the entity with all its components.
func (s *Scene) DeleteEntity(ctx context.Context, entityID int32) (protocol.Message, error) {
	return s.local(ctx, protocol.Message{
		Type:     protocol.DeleteEntityNetwork,
		EntityID: entityID,
	})
}

// local applies a locally produced message and queues it for Flush. The
// change is queued even if persisting it fails: the store already holds it,
// so peers must learn about it too. The persistence error is still returned.
func (s *Scene) local(ctx context.Context, m protocol.Message) (protocol.Message, error) {
	if len(m.Content) > protocol.MaxContentLength {
		return protocol.Message{}, protocol.ErrContentTooLarge
	}
	if m.Type.HasComponent() {
		m.Timestamp = s.clock.Tick(models.Key{EntityID: m.EntityID, ComponentID: m.ComponentID})
	}
	if m.Type.IsNetwork() {
		m.NetworkID = s.networkID
	}
	m = m.Clone()

	switch outcome := s.store.Apply(m); {
	case outcome != crdt.Stale:
	case m.Type.IsDeleteEntity():
		// Сущность уже удалена. Сохраняем еще раз на случай, если прошлая
		// запись не удалась; в очередь сообщение уже попало
		return m, s.persist(ctx, m)
	default:
		if s.store.IsEntityDeleted(m.EntityID) {
			return protocol.Message{}, fmt.Errorf("%w: %d", ErrEntityDeleted, m.EntityID)
		}
		return protocol.Message{}, ErrStaleEdit
	}

	s.pending = append(s.pending, m)
	if err := s.persist(ctx, m); err != nil {
		return m, err
	}
	return m, nil
}

// persist сохраняет принятое сообщение, если у сцены есть хранилище
func (s *Scene) persist(ctx context.Context, m protocol.Message) error {
	if s.storage == nil {
		return nil
	}

	var err error
	switch {
	case m.Type.IsPut():
		err = s.storage.SaveEntries(ctx, s.sceneID, []*models.ComponentEntry{models.NewComponentEntry(m, false)})
	case m.Type.IsDeleteComponent():
		err = s.storage.SaveEntries(ctx, s.sceneID, []*models.ComponentEntry{models.NewComponentEntry(m, true)})
	case m.Type.IsDeleteEntity():
		err = s.storage.SaveDeletedEntity(ctx, s.sceneID, m.EntityID)
	}
	if err != nil {
		return fmt.Errorf("failed to persist %s: %w", m.Type, err)
	}
	return nil
}

// Pending returns the number of local messages waiting for Flush.
func (s *Scene) Pending() int {
	return len(s.pending)
}

// Flush sends all pending local messages as one CRDT batch. The messages
// stay pending if the pipe rejects the batch.
func (s *Scene) Flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	batch, err := protocol.AppendBatch(nil, s.pending)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	if err := s.controller.SendBinary(ctx, [][]byte{batch}); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	s.logger.Debug("Batch sent", "messages", len(s.pending), "bytes", len(batch))
	s.pending = s.pending[:0]
	return nil
}

// RequestState asks the other peers of the scene for their full state.
func (s *Scene) RequestState(ctx context.Context) error {
	if err := s.controller.SendBinary(ctx, [][]byte{{byte(protocol.CommsReqCRDTState)}}); err != nil {
		return fmt.Errorf("failed to request state: %w", err)
	}
	return nil
}

// ProcessInbound drains the inbound queue. CRDT batches and state responses
// are merged into the store; state requests are answered with a snapshot
// addressed to the requester. Malformed input is counted and skipped.
func (s *Scene) ProcessInbound(ctx context.Context) (Stats, error) {
	var stats Stats
	var errs []error

	for _, event := range s.controller.EventsToProcess() {
		stats.Events++

		sender, payload, err := pipe.ParseEvent(event)
		if err != nil || len(payload) == 0 {
			stats.Malformed++
			continue
		}

		switch kind := protocol.CommsKind(payload[0]); kind {
		case protocol.CommsCRDT:
			errs = append(errs, s.merge(ctx, sender, payload[1:], &stats))
		case protocol.CommsResCRDTState:
			env, err := protocol.ParseStateEnvelope(payload)
			if err != nil {
				stats.Malformed++
				s.logger.Warn("Malformed state response", "from", sender, "error", err)
				continue
			}
			errs = append(errs, s.merge(ctx, sender, env.Payload, &stats))
		case protocol.CommsReqCRDTState:
			stats.StateRequests++
			errs = append(errs, s.respondState(ctx, sender))
		default:
			s.logger.Debug("Ignoring comms message", "kind", kind, "from", sender)
		}
	}

	return stats, errors.Join(errs...)
}

func (s *Scene) merge(ctx context.Context, sender string, frames []byte, stats *Stats) error {
	messages, err := protocol.DecodeAll(frames)
	if err != nil {
		stats.Malformed++
		s.logger.Warn("Malformed CRDT batch", "from", sender, "decoded", len(messages), "error", err)
	}

	var dirty []*models.ComponentEntry
	var errs []error

	for _, m := range messages {
		stats.Messages++

		if m.Type.HasComponent() {
			s.clock.Observe(models.Key{EntityID: m.EntityID, ComponentID: m.ComponentID}, m.Timestamp)
		}

		outcome := s.store.Apply(m)
		switch outcome {
		case crdt.Stale:
			stats.Stale++
			continue
		case crdt.Deleted:
			stats.Deleted++
		default:
			stats.Accepted++
		}

		switch {
		case m.Type.IsPut(), m.Type.IsDeleteComponent():
			dirty = append(dirty, models.NewComponentEntry(m, outcome == crdt.Deleted))
		case m.Type.IsDeleteEntity():
			if s.storage != nil {
				if err := s.storage.SaveDeletedEntity(ctx, s.sceneID, m.EntityID); err != nil {
					errs = append(errs, fmt.Errorf("failed to persist entity delete: %w", err))
				}
			}
		}

		if s.consumer != nil {
			s.consumer.OnMessage(m, outcome)
		}
	}

	if s.storage != nil && len(dirty) > 0 {
		if err := s.storage.SaveEntries(ctx, s.sceneID, dirty); err != nil {
			errs = append(errs, fmt.Errorf("failed to persist entries: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scene) respondState(ctx context.Context, requester string) error {
	response, err := protocol.AppendStateEnvelope(nil, requester)
	if err != nil {
		s.logger.Warn("Cannot answer state request", "from", requester, "error", err)
		return nil
	}

	snapshot := s.store.Snapshot()
	response, err = protocol.AppendFrames(response, snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := s.controller.SendBinary(ctx, [][]byte{response}); err != nil {
		return fmt.Errorf("failed to send state to %s: %w", requester, err)
	}

	s.logger.Debug("State sent", "to", requester, "entries", len(snapshot))
	return nil
}

// Get returns the live entry of (entityID, componentID).
func (s *Scene) Get(entityID int32, componentID uint32) (*models.ComponentEntry, bool) {
	return s.store.Get(entityID, componentID)
}

// Entries returns all live entries ordered by (entity, component).
func (s *Scene) Entries() []*models.ComponentEntry {
	return s.store.Entries()
}

// Snapshot returns the live state as PUT_COMPONENT_NETWORK messages.
func (s *Scene) Snapshot() []protocol.Message {
	return s.store.Snapshot()
}

// Run processes inbound traffic and flushes local edits every interval until
// ctx is done.
func (s *Scene) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.ProcessInbound(ctx); err != nil {
				s.logger.Warn("Inbound processing failed", "error", err)
			}
			if err := s.Flush(ctx); err != nil {
				s.logger.Warn("Flush failed", "error", err)
			}
		}
	}
}

// Close unregisters the scene from the pipe. Pending messages are dropped.
func (s *Scene) Close() {
	s.controller.Close()
	s.pending = nil
	s.logger.Info("Scene closed")
}
