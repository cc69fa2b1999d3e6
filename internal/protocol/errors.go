package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedFrame indicates that a frame header is inconsistent with the
	// bytes that follow it. Decoding stops at the offending frame.
	ErrMalformedFrame = errors.New("malformed CRDT frame")

	// ErrUnknownMessageType indicates a message type the codec cannot encode.
	ErrUnknownMessageType = errors.New("unknown CRDT message type")

	// ErrMalformedEnvelope indicates that a comms envelope prefix is truncated.
	ErrMalformedEnvelope = errors.New("malformed comms envelope")

	// ErrContentTooLarge indicates that a message payload does not fit a frame.
	ErrContentTooLarge = errors.New("CRDT content too large")
)

// FrameError describes where and why decoding stopped.
type FrameError struct {
	Reason string
	Offset int
}

// Error implements error.
func (e *FrameError) Error() string {
	return fmt.Sprintf("%s at offset %d: %s", ErrMalformedFrame, e.Offset, e.Reason)
}

// Unwrap makes errors.Is(err, ErrMalformedFrame) hold.
func (e *FrameError) Unwrap() error {
	return ErrMalformedFrame
}

func malformed(offset int, format string, args ...any) error {
	return &FrameError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}
