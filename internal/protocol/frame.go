package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame layout: [length(4, big-endian)] [body(length bytes, UTF-8 JSON)].
const frameHeaderSize = 4

// MaxFrameSize bounds a single body. Session messages are tiny; anything
// larger means the stream is desynchronized and must be torn down.
const MaxFrameSize = 1 << 16

// ErrFrameTooLarge marks a length prefix beyond MaxFrameSize. Unlike a
// malformed body this is fatal for the connection.
var ErrFrameTooLarge = errors.New("protocol: frame exceeds maximum size")

// WriteFrame encodes the message and writes one complete frame. The caller
// serializes writers; partial frames from interleaved writes corrupt the
// stream for good.
func WriteFrame(w io.Writer, m Message) error {
	body, err := Encode(m)
	if err != nil {
		return err
	}
	buf := make([]byte, frameHeaderSize+len(body))
	binary.BigEndian.PutUint32(buf[:frameHeaderSize], uint32(len(body)))
	copy(buf[frameHeaderSize:], body)
	if _, err := w.Write(buf); err != nil {
		return err
	}
	return nil
}

// ReadFrameBody blocks until one complete frame body is read. io.EOF means
// the peer closed the stream, whether between frames or mid-frame; any other
// error (including ErrFrameTooLarge) is fatal for the connection. The body
// itself may still be malformed; that is Decode's concern and leaves the
// stream at a valid frame boundary.
func ReadFrameBody(r io.Reader) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return body, nil
}

// ReadFrame reads and decodes one complete frame.
func ReadFrame(r io.Reader) (Message, error) {
	body, err := ReadFrameBody(r)
	if err != nil {
		return Message{}, err
	}
	return Decode(body)
}
