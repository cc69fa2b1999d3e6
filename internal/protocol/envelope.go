package protocol

import "fmt"

// CommsKind is the first byte of every scene comms message. It tells the
// receiver how to interpret the rest of the payload.
type CommsKind uint8

// Comms message kinds.
const (
	CommsCRDT         CommsKind = 1 // [kind][frames...]
	CommsReqCRDTState CommsKind = 2 // [kind][opaque]
	CommsResCRDTState CommsKind = 3 // [kind][addrLen][addr][frames...]
)

// String implements fmt.Stringer.
func (k CommsKind) String() string {
	switch k {
	case CommsCRDT:
		return "CRDT"
	case CommsReqCRDTState:
		return "REQ_CRDT_STATE"
	case CommsResCRDTState:
		return "RES_CRDT_STATE"
	default:
		return fmt.Sprintf("COMMS(%d)", uint8(k))
	}
}

// MaxAddressLength is the longest address a state envelope can carry.
const MaxAddressLength = 255

// StateEnvelope is a parsed RES_CRDT_STATE message. Address and Payload
// alias the parsed buffer.
type StateEnvelope struct {
	Address []byte
	Payload []byte
	Kind    CommsKind
}

// PrefixLength returns the size of [kind][addrLen][addr].
func (e StateEnvelope) PrefixLength() int {
	return 2 + len(e.Address)
}

// ParseStateEnvelope splits buf into its address prefix and CRDT payload.
// The kind byte is not checked against CommsResCRDTState.
func ParseStateEnvelope(buf []byte) (StateEnvelope, error) {
	r := NewReader(buf)

	kind, ok := r.Uint8()
	if !ok {
		return StateEnvelope{}, fmt.Errorf("%w: missing kind tag", ErrMalformedEnvelope)
	}
	addrLen, ok := r.Uint8()
	if !ok {
		return StateEnvelope{}, fmt.Errorf("%w: missing address length", ErrMalformedEnvelope)
	}
	addr, ok := r.Bytes(int(addrLen))
	if !ok {
		return StateEnvelope{}, fmt.Errorf("%w: address length %d exceeds %d remaining bytes",
			ErrMalformedEnvelope, addrLen, r.Remaining())
	}
	payload, _ := r.Bytes(r.Remaining())

	return StateEnvelope{Kind: CommsKind(kind), Address: addr, Payload: payload}, nil
}

// CommsPrefixLength returns the size of the comms header that precedes the
// frames of payload: the kind tag, plus the address prefix for a well-formed
// state response. It returns 0 for an empty payload.
func CommsPrefixLength(payload []byte) int {
	if len(payload) == 0 {
		return 0
	}
	if CommsKind(payload[0]) == CommsResCRDTState {
		if env, err := ParseStateEnvelope(payload); err == nil {
			return env.PrefixLength()
		}
	}
	return 1
}

// AppendStateEnvelope appends [CommsResCRDTState][len(address)][address] to dst.
// The CRDT payload is expected to be appended by the caller.
func AppendStateEnvelope(dst []byte, address string) ([]byte, error) {
	if len(address) > MaxAddressLength {
		return dst, fmt.Errorf("%w: address is %d bytes, max %d", ErrMalformedEnvelope, len(address), MaxAddressLength)
	}
	dst = append(dst, byte(CommsResCRDTState), byte(len(address)))
	return append(dst, address...), nil
}

// AppendBatch appends a CRDT comms batch [CommsCRDT][frames...] built from messages.
func AppendBatch(dst []byte, messages []Message) ([]byte, error) {
	dst = append(dst, byte(CommsCRDT))
	return AppendFrames(dst, messages)
}

// AppendFrames appends the frames of messages to dst. On error the frames
// appended before the failing message are kept.
func AppendFrames(dst []byte, messages []Message) ([]byte, error) {
	var err error
	for i, m := range messages {
		dst, err = AppendEncode(dst, m)
		if err != nil {
			return dst, fmt.Errorf("message %d: %w", i, err)
		}
	}
	return dst, nil
}
