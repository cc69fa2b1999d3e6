package protocol

import (
	"encoding/binary"
	"fmt"
)

// EncodedLen returns the number of bytes Encode would produce for m, or 0 if
// the message type is unknown.
func EncodedLen(m Message) int {
	hl := HeaderLength(m.Type)
	if hl == 0 {
		return 0
	}
	return hl + m.ContentLength()
}

// Encode serializes m into a new frame.
func Encode(m Message) ([]byte, error) {
	return AppendEncode(make([]byte, 0, EncodedLen(m)), m)
}

// AppendEncode appends the frame for m to dst and returns the extended slice.
// On error dst is returned unchanged.
func AppendEncode(dst []byte, m Message) ([]byte, error) {
	if !m.Type.Known() {
		return dst, fmt.Errorf("%w: %s", ErrUnknownMessageType, m.Type)
	}
	if m.Type.HasContent() && len(m.Content) > MaxContentLength {
		return dst, fmt.Errorf("%w: %d bytes", ErrContentTooLarge, len(m.Content))
	}

	le := binary.LittleEndian
	dst = le.AppendUint32(dst, uint32(EncodedLen(m)))
	dst = le.AppendUint32(dst, uint32(m.Type))
	dst = le.AppendUint32(dst, uint32(m.EntityID))

	if m.Type.HasComponent() {
		dst = le.AppendUint32(dst, m.ComponentID)
		dst = le.AppendUint32(dst, uint32(m.Timestamp))
	}
	if m.Type.IsNetwork() {
		dst = le.AppendUint32(dst, m.NetworkID)
	}
	if m.Type.HasContent() {
		dst = le.AppendUint32(dst, uint32(len(m.Content)))
		dst = append(dst, m.Content...)
	}

	return dst, nil
}

// Frame is one decoded frame together with its original bytes.
// Message.Content and Raw alias the decoded buffer; empty content decodes as nil.
type Frame struct {
	Raw      []byte
	Message  Message
	Offset   int
	WireType uint32
}

// Decoder walks a buffer of concatenated frames.
//
//	d := protocol.NewDecoder(buf)
//	for d.Next() {
//		f := d.Frame()
//	}
//	if err := d.Err(); err != nil { ... }
//
// A Decoder can only start from the beginning of a buffer: frame boundaries
// are known only by reading each header in turn. On the first malformed frame
// it stops and the rest of the buffer is discarded.
type Decoder struct {
	err   error
	buf   []byte
	frame Frame
	pos   int
}

// NewDecoder creates a Decoder over buf. buf is never modified.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Next advances to the next frame. It returns false at the end of the buffer
// or after a decoding error.
func (d *Decoder) Next() bool {
	if d.err != nil || d.pos >= len(d.buf) {
		return false
	}

	f, err := decodeFrame(d.buf, d.pos)
	if err != nil {
		d.err = err
		d.pos = len(d.buf)
		return false
	}

	d.frame = f
	d.pos += len(f.Raw)
	return true
}

// Frame returns the frame produced by the last successful Next.
func (d *Decoder) Frame() Frame {
	return d.frame
}

// Offset returns the offset of the first byte not yet consumed.
func (d *Decoder) Offset() int {
	return d.pos
}

// Err returns the error that stopped decoding, if any.
func (d *Decoder) Err() error {
	return d.err
}

// DecodeAll decodes every frame in buf. On error it returns the messages
// decoded before the malformed frame along with the error.
// Unknown frames are skipped.
func DecodeAll(buf []byte) ([]Message, error) {
	var messages []Message

	d := NewDecoder(buf)
	for d.Next() {
		f := d.Frame()
		if f.Message.Type == Unknown {
			continue
		}
		messages = append(messages, f.Message)
	}

	return messages, d.Err()
}

func decodeFrame(buf []byte, offset int) (Frame, error) {
	r := NewReader(buf[offset:])
	if r.Remaining() < MessageHeaderLength {
		return Frame{}, malformed(offset, "truncated header: %d bytes left", r.Remaining())
	}

	length, _ := r.Int32()
	wireType, _ := r.Uint32()

	if length < MessageHeaderLength {
		return Frame{}, malformed(offset, "declared length %d is below header size", length)
	}
	if int(length) > len(buf)-offset {
		return Frame{}, malformed(offset, "declared length %d exceeds remaining %d bytes", length, len(buf)-offset)
	}

	raw := buf[offset : offset+int(length) : offset+int(length)]
	frame := Frame{Raw: raw, Offset: offset, WireType: wireType}

	t := MessageType(wireType)
	if !t.Known() {
		// Длина кадра валидна - пропускаем его как непрозрачный
		return frame, nil
	}

	hl := HeaderLength(t)
	if int(length) < hl {
		return Frame{}, malformed(offset, "declared length %d is below %s header size %d", length, t, hl)
	}

	body := NewReader(raw[MessageHeaderLength:])
	m := Message{Type: t}
	m.EntityID, _ = body.Int32()

	if t.HasComponent() {
		m.ComponentID, _ = body.Uint32()
		m.Timestamp, _ = body.Int32()
	}
	if t.IsNetwork() {
		m.NetworkID, _ = body.Uint32()
	}

	if t.HasContent() {
		contentLength, _ := body.Int32()
		if contentLength < 0 {
			return Frame{}, malformed(offset, "negative content length %d", contentLength)
		}
		if int(contentLength) != int(length)-hl {
			return Frame{}, malformed(offset, "content length %d does not match frame length %d", contentLength, length)
		}
		content, ok := body.Bytes(int(contentLength))
		if !ok {
			return Frame{}, malformed(offset, "content truncated")
		}
		if len(content) > 0 {
			m.Content = content
		}
	} else if int(length) != hl {
		return Frame{}, malformed(offset, "unexpected %d trailing bytes in %s", int(length)-hl, t)
	}

	frame.Message = m
	return frame, nil
}
