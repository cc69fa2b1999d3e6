// Package filter strips no-sync component frames from outbound and inbound
// CRDT batches without re-encoding the frames it keeps.
package filter

import (
	"errors"
	"fmt"

	"github.com/iudanet/scenesync/internal/nosync"
	"github.com/iudanet/scenesync/internal/protocol"
)

// ErrShortBuffer indicates that the caller-provided output buffer cannot hold
// the filtered result. An output at least as long as the input always fits.
var ErrShortBuffer = errors.New("filter output buffer too small")

// Filter removes frames whose component id is registered as no-sync.
type Filter struct {
	registry nosync.Registry
}

// New creates a Filter backed by registry.
func New(registry nosync.Registry) *Filter {
	return &Filter{registry: registry}
}

var defaultFilter = New(nosync.Default())

// FilterSceneMessageBatch filters a comms batch using the default no-sync set.
func FilterSceneMessageBatch(input, output []byte) (int, error) {
	return defaultFilter.FilterSceneMessageBatch(input, output)
}

// FilterCRDTState filters a state-response envelope using the default no-sync set.
func FilterCRDTState(input, output []byte) (int, error) {
	return defaultFilter.FilterCRDTState(input, output)
}

// FilterSceneMessageBatch copies the leading kind tag of input and then every
// frame that does not reference a no-sync component, byte for byte, into
// output. It returns the number of bytes written.
//
// If the batch is malformed the frames before the corrupt one are kept and the
// decoding error is returned together with the bytes written so far.
func (f *Filter) FilterSceneMessageBatch(input, output []byte) (int, error) {
	if len(input) == 0 {
		return 0, nil
	}

	w := protocol.NewWriter(output)
	if !w.Uint8(input[0]) {
		return 0, ErrShortBuffer
	}

	err := f.filterFrames(input[1:], w)
	return w.Len(), err
}

// FilterCRDTState copies the [kind][addrLen][addr] prefix of a state-response
// envelope unchanged and filters the CRDT payload that follows it.
func (f *Filter) FilterCRDTState(input, output []byte) (int, error) {
	env, err := protocol.ParseStateEnvelope(input)
	if err != nil {
		return 0, err
	}

	w := protocol.NewWriter(output)
	if !w.Write(input[:env.PrefixLength()]) {
		return 0, ErrShortBuffer
	}

	err = f.filterFrames(env.Payload, w)
	return w.Len(), err
}

// FilterFrames filters a bare sequence of frames with no comms prefix.
func (f *Filter) FilterFrames(input, output []byte) (int, error) {
	w := protocol.NewWriter(output)
	err := f.filterFrames(input, w)
	return w.Len(), err
}

// Keep reports whether frame survives filtering. Frames that do not address a
// component, including opaque unknown ones, are always kept.
func (f *Filter) Keep(frame protocol.Frame) bool {
	m := frame.Message
	return !m.Type.HasComponent() || !f.registry.IsNoSync(m.ComponentID)
}

func (f *Filter) filterFrames(payload []byte, w *protocol.Writer) error {
	d := protocol.NewDecoder(payload)
	for d.Next() {
		frame := d.Frame()
		if !f.Keep(frame) {
			continue
		}
		if !w.Write(frame.Raw) {
			return fmt.Errorf("%w: frame at offset %d needs %d bytes, %d left",
				ErrShortBuffer, frame.Offset, len(frame.Raw), w.Remaining())
		}
	}
	return d.Err()
}

// FilterComms filters a comms message according to its kind tag: CRDT
// batches and state responses lose their no-sync frames, every other kind is
// copied unchanged.
func (f *Filter) FilterComms(input, output []byte) (int, error) {
	if len(input) == 0 {
		return 0, nil
	}

	switch protocol.CommsKind(input[0]) {
	case protocol.CommsCRDT:
		return f.FilterSceneMessageBatch(input, output)
	case protocol.CommsResCRDTState:
		return f.FilterCRDTState(input, output)
	default:
		if len(output) < len(input) {
			return 0, ErrShortBuffer
		}
		return copy(output, input), nil
	}
}
