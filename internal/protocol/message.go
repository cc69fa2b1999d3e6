// Package protocol implements the binary CRDT message format exchanged between
// a scene runtime and its peers: frame encoding, lazy frame decoding and the
// comms-level envelopes that wrap CRDT payloads.
package protocol

import (
	"bytes"
	"fmt"
)

// MessageHeaderLength - размер общего заголовка кадра: int32 length + uint32 type.
const MessageHeaderLength = 8

// Размеры тела заголовка (без содержимого) для каждого типа сообщения.
const (
	putComponentHeaderLength           = 16 // entity, component, timestamp, contentLength
	deleteComponentHeaderLength        = 12 // entity, component, timestamp
	deleteEntityHeaderLength           = 4  // entity
	putComponentNetworkHeaderLength    = 20 // entity, component, timestamp, networkId, contentLength
	deleteComponentNetworkHeaderLength = 16 // entity, component, timestamp, networkId
	deleteEntityNetworkHeaderLength    = 8  // entity, networkId
)

// MaxContentLength bounds a single frame so that its total length fits in int32.
const MaxContentLength = 1<<31 - 1 - MessageHeaderLength - putComponentNetworkHeaderLength

// MessageType is the CRDT message discriminant as written on the wire.
type MessageType uint32

// CRDT message types. Values match the wire constants.
const (
	Unknown                MessageType = 0
	PutComponent           MessageType = 1
	DeleteComponent        MessageType = 2
	DeleteEntity           MessageType = 3
	AppendComponent        MessageType = 4
	PutComponentNetwork    MessageType = 5
	DeleteComponentNetwork MessageType = 6
	DeleteEntityNetwork    MessageType = 7
)

// String implements fmt.Stringer.
func (t MessageType) String() string {
	switch t {
	case PutComponent:
		return "PUT_COMPONENT"
	case DeleteComponent:
		return "DELETE_COMPONENT"
	case DeleteEntity:
		return "DELETE_ENTITY"
	case AppendComponent:
		return "APPEND_COMPONENT"
	case PutComponentNetwork:
		return "PUT_COMPONENT_NETWORK"
	case DeleteComponentNetwork:
		return "DELETE_COMPONENT_NETWORK"
	case DeleteEntityNetwork:
		return "DELETE_ENTITY_NETWORK"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint32(t))
	}
}

// Known reports whether t is one of the defined message types.
func (t MessageType) Known() bool {
	return t >= PutComponent && t <= DeleteEntityNetwork
}

// IsNetwork reports whether frames of this type carry a network id.
func (t MessageType) IsNetwork() bool {
	return t == PutComponentNetwork || t == DeleteComponentNetwork || t == DeleteEntityNetwork
}

// HasContent reports whether frames of this type carry a length-prefixed payload.
func (t MessageType) HasContent() bool {
	return t == PutComponent || t == AppendComponent || t == PutComponentNetwork
}

// HasComponent reports whether frames of this type address a single component.
func (t MessageType) HasComponent() bool {
	return t != DeleteEntity && t != DeleteEntityNetwork && t.Known()
}

// IsPut reports whether t creates or replaces component state.
func (t MessageType) IsPut() bool {
	return t == PutComponent || t == PutComponentNetwork
}

// IsDeleteComponent reports whether t removes a single component.
func (t MessageType) IsDeleteComponent() bool {
	return t == DeleteComponent || t == DeleteComponentNetwork
}

// IsDeleteEntity reports whether t removes a whole entity.
func (t MessageType) IsDeleteEntity() bool {
	return t == DeleteEntity || t == DeleteEntityNetwork
}

// HeaderLength returns the full frame header size for t, including the common
// MessageHeaderLength prefix. It returns 0 for unknown types.
func HeaderLength(t MessageType) int {
	switch t {
	case PutComponent, AppendComponent:
		return MessageHeaderLength + putComponentHeaderLength
	case DeleteComponent:
		return MessageHeaderLength + deleteComponentHeaderLength
	case DeleteEntity:
		return MessageHeaderLength + deleteEntityHeaderLength
	case PutComponentNetwork:
		return MessageHeaderLength + putComponentNetworkHeaderLength
	case DeleteComponentNetwork:
		return MessageHeaderLength + deleteComponentNetworkHeaderLength
	case DeleteEntityNetwork:
		return MessageHeaderLength + deleteEntityNetworkHeaderLength
	default:
		return 0
	}
}

// Message is a single CRDT state change.
//
// Fields that a given Type does not carry on the wire are ignored by Encode
// and left zero by the decoder: ComponentID and Timestamp for entity deletes,
// NetworkID for non-network types, Content for deletes.
type Message struct {
	Content     []byte
	Type        MessageType
	EntityID    int32
	ComponentID uint32
	Timestamp   int32
	NetworkID   uint32
}

// ContentLength returns the payload length as it is written on the wire.
func (m Message) ContentLength() int {
	if !m.Type.HasContent() {
		return 0
	}
	return len(m.Content)
}

// Clone returns a copy of m that does not share the content buffer.
func (m Message) Clone() Message {
	if m.Content != nil {
		content := make([]byte, len(m.Content))
		copy(content, m.Content)
		m.Content = content
	}
	return m
}

// Equal compares two messages field by field, treating nil and empty content
// as equal.
func (m Message) Equal(other Message) bool {
	if m.Type != other.Type || m.EntityID != other.EntityID || m.ComponentID != other.ComponentID ||
		m.Timestamp != other.Timestamp || m.NetworkID != other.NetworkID {
		return false
	}
	return bytes.Equal(m.Content, other.Content)
}
