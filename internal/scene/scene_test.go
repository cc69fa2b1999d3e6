package scene

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/scenesync/internal/crdt"
	"github.com/iudanet/scenesync/internal/models"
	"github.com/iudanet/scenesync/internal/nosync"
	"github.com/iudanet/scenesync/internal/pipe"
	"github.com/iudanet/scenesync/internal/protocol"
	"github.com/iudanet/scenesync/internal/storage"
	"github.com/iudanet/scenesync/internal/storage/boltdb"
)

const testSceneID = "bafkreiscene"

type received struct {
	message protocol.Message
	outcome crdt.Outcome
}

type recorder struct {
	got []received
}

func (r *recorder) OnMessage(m protocol.Message, outcome crdt.Outcome) {
	r.got = append(r.got, received{message: m, outcome: outcome})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newTestScene(t *testing.T, network *pipe.Loopback, address string, networkID uint32, consumer Consumer) *Scene {
	t.Helper()
	s, err := New(context.Background(), Config{
		SceneID:   testSceneID,
		NetworkID: networkID,
		Pipe:      network.Peer(address),
		Consumer:  consumer,
		Logger:    testLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestNew_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, Config{Pipe: pipe.NewLoopback().Peer("a")})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(ctx, Config{SceneID: "s"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNew_GeneratesNetworkID(t *testing.T) {
	s := newTestScene(t, pipe.NewLoopback(), "alice", 0, nil)
	assert.NotZero(t, s.NetworkID())
	assert.Equal(t, testSceneID, s.SceneID())
	assert.NotZero(t, NewNetworkID())
}

func TestScene_PutFlushReceive(t *testing.T) {
	ctx := context.Background()
	network := pipe.NewLoopback()
	consumer := &recorder{}

	alice := newTestScene(t, network, "alice", 1, nil)
	bob := newTestScene(t, network, "bob", 2, consumer)

	m, err := alice.PutComponent(ctx, 512, 1, []byte("transform"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), m.Timestamp)
	assert.Equal(t, uint32(1), m.NetworkID)
	assert.Equal(t, protocol.PutComponentNetwork, m.Type)
	assert.Equal(t, 1, alice.Pending())

	require.NoError(t, alice.Flush(ctx))
	assert.Equal(t, 0, alice.Pending())

	stats, err := bob.ProcessInbound(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Events: 1, Messages: 1, Accepted: 1}, stats)

	entry, ok := bob.Get(512, 1)
	require.True(t, ok)
	assert.Equal(t, []byte("transform"), entry.Content)

	require.Len(t, consumer.got, 1)
	assert.Equal(t, crdt.Accepted, consumer.got[0].outcome)
	assert.True(t, consumer.got[0].message.Equal(m))

	// Повторная обработка пустой очереди
	stats, err = bob.ProcessInbound(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestScene_FlushEmpty(t *testing.T) {
	alice := newTestScene(t, pipe.NewLoopback(), "alice", 1, nil)
	assert.NoError(t, alice.Flush(context.Background()))
}

func TestScene_NoSyncComponentStaysLocal(t *testing.T) {
	ctx := context.Background()
	network := pipe.NewLoopback()
	consumer := &recorder{}

	alice := newTestScene(t, network, "alice", 1, nil)
	bob := newTestScene(t, network, "bob", 2, consumer)

	_, err := alice.PutComponent(ctx, 1, nosync.NoSyncComponentID, []byte("local"))
	require.NoError(t, err)
	_, err = alice.PutComponent(ctx, 1, 7, []byte("shared"))
	require.NoError(t, err)
	require.NoError(t, alice.Flush(ctx))

	_, ok := alice.Get(1, nosync.NoSyncComponentID)
	assert.True(t, ok, "no-sync component is kept locally")

	stats, err := bob.ProcessInbound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Messages)

	_, ok = bob.Get(1, nosync.NoSyncComponentID)
	assert.False(t, ok)
	_, ok = bob.Get(1, 7)
	assert.True(t, ok)
}

func TestScene_ConcurrentEditsConverge(t *testing.T) {
	ctx := context.Background()
	network := pipe.NewLoopback()

	alice := newTestScene(t, network, "alice", 10, nil)
	bob := newTestScene(t, network, "bob", 20, nil)

	// Одинаковый timestamp у обоих, выигрывает больший network id
	_, err := alice.PutComponent(ctx, 1, 1, []byte("alice"))
	require.NoError(t, err)
	_, err = bob.PutComponent(ctx, 1, 1, []byte("bob"))
	require.NoError(t, err)

	require.NoError(t, alice.Flush(ctx))
	require.NoError(t, bob.Flush(ctx))

	aliceStats, err := alice.ProcessInbound(ctx)
	require.NoError(t, err)
	bobStats, err := bob.ProcessInbound(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, aliceStats.Accepted)
	assert.Equal(t, 1, bobStats.Stale)

	for _, s := range []*Scene{alice, bob} {
		entry, ok := s.Get(1, 1)
		require.True(t, ok)
		assert.Equal(t, []byte("bob"), entry.Content)
	}
	assert.Equal(t, alice.Snapshot(), bob.Snapshot())

	// Следующая правка alice учитывает чужой timestamp и выигрывает
	m, err := alice.PutComponent(ctx, 1, 1, []byte("alice again"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), m.Timestamp)
}

func TestScene_DeleteComponentAndEntity(t *testing.T) {
	ctx := context.Background()
	network := pipe.NewLoopback()
	consumer := &recorder{}

	alice := newTestScene(t, network, "alice", 1, nil)
	bob := newTestScene(t, network, "bob", 2, consumer)

	_, err := alice.PutComponent(ctx, 1, 1, []byte("a"))
	require.NoError(t, err)
	_, err = alice.PutComponent(ctx, 1, 2, []byte("b"))
	require.NoError(t, err)
	_, err = alice.PutComponent(ctx, 2, 1, []byte("c"))
	require.NoError(t, err)
	_, err = alice.DeleteComponent(ctx, 2, 1)
	require.NoError(t, err)
	_, err = alice.DeleteEntity(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, alice.Flush(ctx))

	stats, err := bob.ProcessInbound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Messages)
	assert.Equal(t, 3, stats.Accepted)
	assert.Equal(t, 2, stats.Deleted)

	assert.Empty(t, bob.Entries())
	assert.Empty(t, alice.Entries())

	// Правки удаленной сущности отклоняются
	_, err = alice.PutComponent(ctx, 1, 1, []byte("again"))
	assert.ErrorIs(t, err, ErrEntityDeleted)
	_, err = alice.AppendComponent(ctx, 1, 3, []byte("x"))
	assert.ErrorIs(t, err, ErrEntityDeleted)

	// Повторное удаление не ставится в очередь
	_, err = alice.DeleteEntity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, alice.Pending())
}

func TestScene_AppendComponent(t *testing.T) {
	ctx := context.Background()
	network := pipe.NewLoopback()
	consumer := &recorder{}

	alice := newTestScene(t, network, "alice", 1, nil)
	bob := newTestScene(t, network, "bob", 2, consumer)

	m, err := alice.AppendComponent(ctx, 1, 9, []byte("event"))
	require.NoError(t, err)
	assert.Equal(t, protocol.AppendComponent, m.Type)
	assert.Zero(t, m.NetworkID)
	require.NoError(t, alice.Flush(ctx))

	_, err = bob.ProcessInbound(ctx)
	require.NoError(t, err)

	require.Len(t, consumer.got, 1)
	assert.Equal(t, protocol.AppendComponent, consumer.got[0].message.Type)
	assert.Empty(t, bob.Entries(), "append values are not LWW entries")

	snapshot := bob.Snapshot()
	require.Len(t, snapshot, 1)
	assert.True(t, snapshot[0].Equal(m))

	// Повторная доставка того же значения не передается дальше
	alice.pending = append(alice.pending, m)
	require.NoError(t, alice.Flush(ctx))
	stats, err := bob.ProcessInbound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Stale)
	assert.Len(t, consumer.got, 1)
}

func TestScene_RequestState(t *testing.T) {
	ctx := context.Background()
	network := pipe.NewLoopback()

	alice := newTestScene(t, network, "alice", 1, nil)
	bob := newTestScene(t, network, "bob", 2, nil)

	_, err := alice.PutComponent(ctx, 1, 1, []byte("a"))
	require.NoError(t, err)
	_, err = alice.PutComponent(ctx, 2, 1, []byte("b"))
	require.NoError(t, err)
	_, err = alice.PutComponent(ctx, 3, nosync.NoSyncComponentID, []byte("local"))
	require.NoError(t, err)
	// Не отправляем: новый участник получит состояние через запрос
	alice.pending = nil

	carol := newTestScene(t, network, "carol", 3, nil)
	require.NoError(t, carol.RequestState(ctx))

	stats, err := alice.ProcessInbound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.StateRequests)

	// bob тоже получил запрос и ответил пустым состоянием
	stats, err = bob.ProcessInbound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.StateRequests)

	stats, err = carol.ProcessInbound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Events)
	assert.Equal(t, 2, stats.Accepted)

	assert.Len(t, carol.Entries(), 2)
	_, ok := carol.Get(3, nosync.NoSyncComponentID)
	assert.False(t, ok, "no-sync entries are filtered from state responses")

	// Ответ адресован только carol
	stats, err = bob.ProcessInbound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Events)
}

func TestScene_TruncatedInbound(t *testing.T) {
	ctx := context.Background()
	network := pipe.NewLoopback()
	bob := newTestScene(t, network, "bob", 2, nil)

	frame, err := protocol.Encode(protocol.Message{Type: protocol.PutComponent, EntityID: 1, ComponentID: 1, Timestamp: 1, Content: []byte("ok")})
	require.NoError(t, err)

	raw := append([]byte{byte(pipe.MsgTypeUint8Array), byte(protocol.CommsCRDT)}, frame...)
	raw = append(raw, 0xFF, 0xFF, 0xFF)
	require.NoError(t, network.Peer("evil").SendMessage(ctx, raw, testSceneID, pipe.DropIfNotConnected, ""))
	require.NoError(t, network.Peer("evil").SendMessage(ctx, []byte{byte(pipe.MsgTypeUint8Array), 42, 1}, testSceneID, pipe.DropIfNotConnected, ""))

	stats, err := bob.ProcessInbound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Events)
	assert.Equal(t, 1, stats.Accepted)

	_, ok := bob.Get(1, 1)
	assert.True(t, ok)
}

func TestScene_Persistence(t *testing.T) {
	ctx := context.Background()
	db, err := boltdb.New(ctx, filepath.Join(t.TempDir(), "scene.db"))
	require.NoError(t, err)
	defer db.Close()

	network := pipe.NewLoopback()
	cfg := Config{SceneID: testSceneID, NetworkID: 5, Pipe: network.Peer("alice"), Storage: db, Logger: testLogger()}

	s, err := New(ctx, cfg)
	require.NoError(t, err)
	_, err = s.PutComponent(ctx, 1, 1, []byte("v1"))
	require.NoError(t, err)
	_, err = s.PutComponent(ctx, 1, 1, []byte("v2"))
	require.NoError(t, err)
	_, err = s.PutComponent(ctx, 2, 1, []byte("gone"))
	require.NoError(t, err)
	_, err = s.DeleteComponent(ctx, 2, 1)
	require.NoError(t, err)
	_, err = s.DeleteEntity(ctx, 3)
	require.NoError(t, err)
	s.Close()

	restored, err := New(ctx, cfg)
	require.NoError(t, err)
	defer restored.Close()

	entry, ok := restored.Get(1, 1)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), entry.Content)
	_, ok = restored.Get(2, 1)
	assert.False(t, ok)

	// Часы продолжаются после восстановленного timestamp
	m, err := restored.PutComponent(ctx, 1, 1, []byte("v3"))
	require.NoError(t, err)
	assert.Equal(t, int32(3), m.Timestamp)

	m, err = restored.PutComponent(ctx, 2, 1, []byte("back"))
	require.NoError(t, err)
	assert.Equal(t, int32(3), m.Timestamp, "tombstone timestamp is restored")

	_, err = restored.PutComponent(ctx, 3, 1, nil)
	assert.ErrorIs(t, err, ErrEntityDeleted)
}

func TestScene_InboundPersisted(t *testing.T) {
	ctx := context.Background()
	var saved []*models.ComponentEntry
	var deleted []int32
	mockStorage := &storage.SceneStorageMock{
		LoadSceneFunc: func(ctx context.Context, sceneID string) (*models.SceneState, error) {
			return &models.SceneState{SceneID: sceneID}, nil
		},
		SaveEntriesFunc: func(ctx context.Context, sceneID string, entries []*models.ComponentEntry) error {
			saved = append(saved, entries...)
			return nil
		},
		SaveDeletedEntityFunc: func(ctx context.Context, sceneID string, entityID int32) error {
			deleted = append(deleted, entityID)
			return nil
		},
	}

	network := pipe.NewLoopback()
	alice := newTestScene(t, network, "alice", 1, nil)
	bob, err := New(ctx, Config{SceneID: testSceneID, NetworkID: 2, Pipe: network.Peer("bob"), Storage: mockStorage, Logger: testLogger()})
	require.NoError(t, err)
	defer bob.Close()

	_, err = alice.PutComponent(ctx, 1, 1, []byte("a"))
	require.NoError(t, err)
	_, err = alice.DeleteComponent(ctx, 1, 2)
	require.NoError(t, err)
	_, err = alice.DeleteEntity(ctx, 4)
	require.NoError(t, err)
	require.NoError(t, alice.Flush(ctx))

	_, err = bob.ProcessInbound(ctx)
	require.NoError(t, err)

	require.Len(t, saved, 2)
	assert.False(t, saved[0].Deleted)
	assert.True(t, saved[1].Deleted)
	assert.Equal(t, []int32{4}, deleted)
	assert.Len(t, mockStorage.SaveEntriesCalls(), 1, "inbound entries are saved in one call")
}

func TestScene_StorageErrors(t *testing.T) {
	ctx := context.Background()
	errDisk := errors.New("disk full")

	t.Run("load", func(t *testing.T) {
		mockStorage := &storage.SceneStorageMock{
			LoadSceneFunc: func(ctx context.Context, sceneID string) (*models.SceneState, error) {
				return nil, errDisk
			},
		}
		_, err := New(ctx, Config{SceneID: "s", Pipe: pipe.NewLoopback().Peer("a"), Storage: mockStorage})
		assert.ErrorIs(t, err, errDisk)
	})

	t.Run("save", func(t *testing.T) {
		mockStorage := &storage.SceneStorageMock{
			LoadSceneFunc: func(ctx context.Context, sceneID string) (*models.SceneState, error) {
				return &models.SceneState{}, nil
			},
			SaveEntriesFunc: func(ctx context.Context, sceneID string, entries []*models.ComponentEntry) error {
				return errDisk
			},
		}
		s, err := New(ctx, Config{SceneID: "s", Pipe: pipe.NewLoopback().Peer("a"), Storage: mockStorage, Logger: testLogger()})
		require.NoError(t, err)
		defer s.Close()

		m, err := s.PutComponent(ctx, 1, 1, []byte("x"))
		assert.ErrorIs(t, err, errDisk)
		assert.Equal(t, int32(1), m.Timestamp)

		// Изменение уже в состоянии, поэтому оно уходит участникам
		assert.Equal(t, 1, s.Pending())
		_, ok := s.Get(1, 1)
		assert.True(t, ok)
	})

	t.Run("entity delete", func(t *testing.T) {
		failing := true
		var deleted []int32
		mockStorage := &storage.SceneStorageMock{
			LoadSceneFunc: func(ctx context.Context, sceneID string) (*models.SceneState, error) {
				return &models.SceneState{}, nil
			},
			SaveDeletedEntityFunc: func(ctx context.Context, sceneID string, entityID int32) error {
				if failing {
					return errDisk
				}
				deleted = append(deleted, entityID)
				return nil
			},
		}
		s, err := New(ctx, Config{SceneID: "s", Pipe: pipe.NewLoopback().Peer("a"), Storage: mockStorage, Logger: testLogger()})
		require.NoError(t, err)
		defer s.Close()

		_, err = s.DeleteEntity(ctx, 7)
		assert.ErrorIs(t, err, errDisk)
		assert.Equal(t, 1, s.Pending(), "delete is queued for peers")

		// Повтор сохраняет удаление, но не дублирует его в очереди
		failing = false
		_, err = s.DeleteEntity(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, 1, s.Pending())
		assert.Equal(t, []int32{7}, deleted)
		assert.Len(t, mockStorage.SaveDeletedEntityCalls(), 2)
	})
}

func TestScene_FlushKeepsPendingOnError(t *testing.T) {
	ctx := context.Background()
	errOffline := errors.New("offline")
	mockPipe := &pipe.ScenePipeMock{
		AddSceneMessageHandlerFunc:    func(sceneID string, msgType pipe.MsgType, handler pipe.SceneMessageHandler) {},
		RemoveSceneMessageHandlerFunc: func(sceneID string, msgType pipe.MsgType) {},
		SendMessageFunc: func(ctx context.Context, message []byte, sceneID string, assertiveness pipe.Assertiveness, recipient string) error {
			return errOffline
		},
	}

	s, err := New(ctx, Config{SceneID: "s", NetworkID: 1, Pipe: mockPipe, Logger: testLogger()})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.PutComponent(ctx, 1, 1, []byte("x"))
	require.NoError(t, err)

	err = s.Flush(ctx)
	assert.ErrorIs(t, err, errOffline)
	assert.Equal(t, 1, s.Pending())

	mockPipe.SendMessageFunc = func(ctx context.Context, message []byte, sceneID string, assertiveness pipe.Assertiveness, recipient string) error {
		return nil
	}
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 0, s.Pending())

	calls := mockPipe.SendMessageCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, calls[0].Message, calls[1].Message)
}

func TestScene_LocalCopiesContent(t *testing.T) {
	ctx := context.Background()
	s := newTestScene(t, pipe.NewLoopback(), "alice", 1, nil)

	content := []byte("abc")
	_, err := s.PutComponent(ctx, 1, 1, content)
	require.NoError(t, err)
	content[0] = 'X'

	entry, ok := s.Get(1, 1)
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), entry.Content)
}
