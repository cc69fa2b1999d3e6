// Package pipe is the boundary between a scene and the peer-to-peer message
// pipe. The pipe itself is an external collaborator described by ScenePipe;
// Controller filters every batch that crosses it in either direction.
package pipe

import (
	"context"
	"fmt"
)

// MsgType is the first byte of every message handed to the pipe.
type MsgType uint8

// Pipe message types.
const (
	MsgTypeString     MsgType = 1
	MsgTypeUint8Array MsgType = 2
)

// String implements fmt.Stringer.
func (t MsgType) String() string {
	switch t {
	case MsgTypeString:
		return "String"
	case MsgTypeUint8Array:
		return "Uint8Array"
	default:
		return fmt.Sprintf("MsgType(%d)", uint8(t))
	}
}

// Assertiveness tells the pipe what to do with a message when the peer
// connection is not available.
type Assertiveness uint8

const (
	// DropIfNotConnected - сообщение отбрасывается без ошибки.
	DropIfNotConnected Assertiveness = iota
	// DeliveryAsserted - отправка без соединения возвращает ошибку.
	DeliveryAsserted
)

// String implements fmt.Stringer.
func (a Assertiveness) String() string {
	if a == DeliveryAsserted {
		return "DeliveryAsserted"
	}
	return "DropIfNotConnected"
}

// DecodedMessage is an inbound message with the pipe type byte removed.
type DecodedMessage struct {
	Data         []byte // Data payload без байта MsgType
	FromWalletID string // FromWalletID адрес отправителя
}

// SceneMessageHandler receives inbound messages for one scene and message type.
// Data is only valid for the duration of the call.
type SceneMessageHandler func(DecodedMessage)

//go:generate moq -out pipe_mock.go . ScenePipe

// ScenePipe is the transport that carries scene messages between peers.
//
// message starts with a MsgType byte. An empty recipient broadcasts to every
// peer of the scene.
type ScenePipe interface {
	SendMessage(ctx context.Context, message []byte, sceneID string, assertiveness Assertiveness, recipient string) error
	AddSceneMessageHandler(sceneID string, msgType MsgType, handler SceneMessageHandler)
	RemoveSceneMessageHandler(sceneID string, msgType MsgType)
}
