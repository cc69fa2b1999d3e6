package protocol

import "encoding/binary"

// byteOrder - порядок байт для всех целых чисел протокола.
var byteOrder = binary.LittleEndian

// Reader is a bounds-checked read cursor over a byte slice.
// Every read reports whether enough bytes remained; a failed read leaves the
// cursor where it was.
type Reader struct {
	buf []byte
	pos int
}

// NewReader creates a Reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current offset.
func (r *Reader) Pos() int { return r.pos }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// Uint8 reads one byte.
func (r *Reader) Uint8() (uint8, bool) {
	if r.Remaining() < 1 {
		return 0, false
	}
	v := r.buf[r.pos]
	r.pos++
	return v, true
}

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32() (uint32, bool) {
	if r.Remaining() < 4 {
		return 0, false
	}
	v := byteOrder.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, true
}

// Int32 reads a little-endian int32.
func (r *Reader) Int32() (int32, bool) {
	v, ok := r.Uint32()
	return int32(v), ok
}

// Bytes returns the next n bytes without copying.
func (r *Reader) Bytes(n int) ([]byte, bool) {
	if n < 0 || r.Remaining() < n {
		return nil, false
	}
	v := r.buf[r.pos : r.pos+n : r.pos+n]
	r.pos += n
	return v, true
}

// Writer is a bounds-checked write cursor over a caller-provided byte slice.
// It never grows the slice.
type Writer struct {
	buf []byte
	pos int
}

// NewWriter creates a Writer positioned at the start of buf.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return w.pos }

// Remaining returns the free space left in the buffer.
func (w *Writer) Remaining() int { return len(w.buf) - w.pos }

// Bytes returns the written prefix of the buffer.
func (w *Writer) Bytes() []byte { return w.buf[:w.pos] }

// Uint8 writes one byte.
func (w *Writer) Uint8(v uint8) bool {
	if w.Remaining() < 1 {
		return false
	}
	w.buf[w.pos] = v
	w.pos++
	return true
}

// Uint32 writes a little-endian uint32.
func (w *Writer) Uint32(v uint32) bool {
	if w.Remaining() < 4 {
		return false
	}
	byteOrder.PutUint32(w.buf[w.pos:], v)
	w.pos += 4
	return true
}

// Int32 writes a little-endian int32.
func (w *Writer) Int32(v int32) bool {
	return w.Uint32(uint32(v))
}

// Write copies p in full or not at all.
func (w *Writer) Write(p []byte) bool {
	if w.Remaining() < len(p) {
		return false
	}
	w.pos += copy(w.buf[w.pos:], p)
	return true
}
