// Package transport defines the binary packets exchanged between pipe
// clients and the relay.
package transport

import (
	"errors"
	"fmt"

	"github.com/iudanet/scenesync/internal/pipe"
	"github.com/iudanet/scenesync/internal/protocol"
)

var (
	// ErrMalformedPacket indicates a packet that cannot be parsed
	ErrMalformedPacket = errors.New("malformed relay packet")
	// ErrFieldTooLong indicates a string field longer than 255 bytes
	ErrFieldTooLong = errors.New("relay packet field too long")
)

// MaxFieldLength is the longest scene id, sender or recipient a packet can carry.
const MaxFieldLength = 255

// Op is the operation of a client packet.
type Op uint8

// Client packet operations.
const (
	OpJoin    Op = 1
	OpLeave   Op = 2
	OpMessage Op = 3
)

// String implements fmt.Stringer.
func (o Op) String() string {
	switch o {
	case OpJoin:
		return "join"
	case OpLeave:
		return "leave"
	case OpMessage:
		return "message"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Packet is sent by a client to the relay:
//
//	[op][msgType][assertiveness][sceneLen][scene][recipientLen][recipient][payload]
type Packet struct {
	Payload       []byte
	SceneID       string
	Recipient     string
	Op            Op
	MsgType       pipe.MsgType
	Assertiveness pipe.Assertiveness
}

// Marshal encodes the packet.
func (p Packet) Marshal() ([]byte, error) {
	if err := checkFields(p.SceneID, p.Recipient); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, 5+len(p.SceneID)+len(p.Recipient)+len(p.Payload))
	buf = append(buf, byte(p.Op), byte(p.MsgType), byte(p.Assertiveness))
	buf = appendString(buf, p.SceneID)
	buf = appendString(buf, p.Recipient)
	return append(buf, p.Payload...), nil
}

// ParsePacket decodes a client packet. Payload aliases b.
func ParsePacket(b []byte) (Packet, error) {
	r := protocol.NewReader(b)

	op, ok1 := r.Uint8()
	msgType, ok2 := r.Uint8()
	assertiveness, ok3 := r.Uint8()
	if !ok1 || !ok2 || !ok3 {
		return Packet{}, fmt.Errorf("%w: short header", ErrMalformedPacket)
	}

	scene, err := readString(r, "scene")
	if err != nil {
		return Packet{}, err
	}
	recipient, err := readString(r, "recipient")
	if err != nil {
		return Packet{}, err
	}
	payload, _ := r.Bytes(r.Remaining())

	return Packet{
		Op:            Op(op),
		MsgType:       pipe.MsgType(msgType),
		Assertiveness: pipe.Assertiveness(assertiveness),
		SceneID:       scene,
		Recipient:     recipient,
		Payload:       payload,
	}, nil
}

// Delivery is sent by the relay to clients and through the broker:
//
//	[msgType][sceneLen][scene][senderLen][sender][recipientLen][recipient][payload]
type Delivery struct {
	Payload   []byte
	SceneID   string
	Sender    string
	Recipient string
	MsgType   pipe.MsgType
}

// Marshal encodes the delivery.
func (d Delivery) Marshal() ([]byte, error) {
	if err := checkFields(d.SceneID, d.Sender, d.Recipient); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, 4+len(d.SceneID)+len(d.Sender)+len(d.Recipient)+len(d.Payload))
	buf = append(buf, byte(d.MsgType))
	buf = appendString(buf, d.SceneID)
	buf = appendString(buf, d.Sender)
	buf = appendString(buf, d.Recipient)
	return append(buf, d.Payload...), nil
}

// ParseDelivery decodes a delivery. Payload aliases b.
func ParseDelivery(b []byte) (Delivery, error) {
	r := protocol.NewReader(b)

	msgType, ok := r.Uint8()
	if !ok {
		return Delivery{}, fmt.Errorf("%w: empty delivery", ErrMalformedPacket)
	}

	var fields [3]string
	for i, name := range []string{"scene", "sender", "recipient"} {
		v, err := readString(r, name)
		if err != nil {
			return Delivery{}, err
		}
		fields[i] = v
	}
	payload, _ := r.Bytes(r.Remaining())

	return Delivery{
		MsgType:   pipe.MsgType(msgType),
		SceneID:   fields[0],
		Sender:    fields[1],
		Recipient: fields[2],
		Payload:   payload,
	}, nil
}

// For reports whether peer should receive the delivery.
func (d Delivery) For(peer string) bool {
	if peer == d.Sender {
		return false
	}
	return d.Recipient == "" || d.Recipient == peer
}

func checkFields(values ...string) error {
	for _, v := range values {
		if len(v) > MaxFieldLength {
			return fmt.Errorf("%w: %d bytes", ErrFieldTooLong, len(v))
		}
	}
	return nil
}

func appendString(buf []byte, s string) []byte {
	buf = append(buf, byte(len(s)))
	return append(buf, s...)
}

func readString(r *protocol.Reader, name string) (string, error) {
	n, ok := r.Uint8()
	if !ok {
		return "", fmt.Errorf("%w: missing %s length", ErrMalformedPacket, name)
	}
	b, ok := r.Bytes(int(n))
	if !ok {
		return "", fmt.Errorf("%w: %s length %d exceeds %d remaining bytes", ErrMalformedPacket, name, n, r.Remaining())
	}
	return string(b), nil
}
