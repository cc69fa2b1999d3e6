package pipe

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrNotConnected is returned for a DeliveryAsserted message when the
	// transport cannot deliver it.
	ErrNotConnected = errors.New("pipe not connected")
	// ErrEmptyMessage is returned when a message has no MsgType byte.
	ErrEmptyMessage = errors.New("empty pipe message")
)

type handlerKey struct {
	sceneID string
	msgType MsgType
}

// Loopback is an in-process pipe network. A message sent by one peer is
// delivered synchronously to every other peer that handles the same scene.
type Loopback struct {
	peers map[string]*LoopbackPeer
	mu    sync.RWMutex
}

// NewLoopback создает пустую локальную сеть.
func NewLoopback() *Loopback {
	return &Loopback{peers: make(map[string]*LoopbackPeer)}
}

// Peer returns the peer with the given address, creating it on first use.
func (l *Loopback) Peer(address string) *LoopbackPeer {
	l.mu.Lock()
	defer l.mu.Unlock()

	if p, ok := l.peers[address]; ok {
		return p
	}
	p := &LoopbackPeer{
		network:  l,
		address:  address,
		handlers: make(map[handlerKey]SceneMessageHandler),
	}
	l.peers[address] = p
	return p
}

// Disconnect removes a peer from the network.
func (l *Loopback) Disconnect(address string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.peers, address)
}

func (l *Loopback) targets(from, recipient string) []*LoopbackPeer {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if recipient != "" {
		if p, ok := l.peers[recipient]; ok && recipient != from {
			return []*LoopbackPeer{p}
		}
		return nil
	}

	addresses := make([]string, 0, len(l.peers))
	for address := range l.peers {
		if address != from {
			addresses = append(addresses, address)
		}
	}
	// Детерминированный порядок доставки
	slices.Sort(addresses)

	result := make([]*LoopbackPeer, 0, len(addresses))
	for _, address := range addresses {
		result = append(result, l.peers[address])
	}
	return result
}

// LoopbackPeer is one participant of a Loopback network. It implements ScenePipe.
type LoopbackPeer struct {
	network  *Loopback
	handlers map[handlerKey]SceneMessageHandler
	address  string
	mu       sync.RWMutex
}

var _ ScenePipe = (*LoopbackPeer)(nil)

// Address returns the peer address seen by receivers as FromWalletID.
func (p *LoopbackPeer) Address() string {
	return p.address
}

// SendMessage implements ScenePipe.
func (p *LoopbackPeer) SendMessage(ctx context.Context, message []byte, sceneID string, assertiveness Assertiveness, recipient string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(message) == 0 {
		return ErrEmptyMessage
	}

	msgType := MsgType(message[0])
	delivered := 0
	for _, target := range p.network.targets(p.address, recipient) {
		handler := target.handler(sceneID, msgType)
		if handler == nil {
			continue
		}
		// Получатель не должен видеть буфер отправителя
		data := append([]byte(nil), message[1:]...)
		handler(DecodedMessage{Data: data, FromWalletID: p.address})
		delivered++
	}

	if delivered == 0 && recipient != "" && assertiveness == DeliveryAsserted {
		return fmt.Errorf("%w: no peer %q in scene %s", ErrNotConnected, recipient, sceneID)
	}
	return nil
}

// AddSceneMessageHandler implements ScenePipe.
func (p *LoopbackPeer) AddSceneMessageHandler(sceneID string, msgType MsgType, handler SceneMessageHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.handlers[handlerKey{sceneID: sceneID, msgType: msgType}] = handler
}

// RemoveSceneMessageHandler implements ScenePipe.
func (p *LoopbackPeer) RemoveSceneMessageHandler(sceneID string, msgType MsgType) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.handlers, handlerKey{sceneID: sceneID, msgType: msgType})
}

func (p *LoopbackPeer) handler(sceneID string, msgType MsgType) SceneMessageHandler {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.handlers[handlerKey{sceneID: sceneID, msgType: msgType}]
}
