// Package wire implements the length-prefixed frame used on every socket:
// [1 byte opcode][4 byte big-endian payload length][payload].
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"gitlab.com/distbuild.net/internal/tcp/defs"
)

// ErrUnknownOpcode is returned when a header carries an opcode outside the fixed set
var ErrUnknownOpcode = errors.New("unknown opcode")

// Message is one frame
type Message struct {
	Op      defs.Opcode
	Payload []byte
}

// NewMessage creates a message
func NewMessage(op defs.Opcode, payload []byte) Message {
	return Message{Op: op, Payload: payload}
}

// Serialize encodes the message into a single buffer
func (m Message) Serialize() []byte {
	buf := make([]byte, defs.HeaderSize, defs.HeaderSize+len(m.Payload))
	buf[0] = byte(m.Op)
	binary.BigEndian.PutUint32(buf[1:defs.HeaderSize], uint32(len(m.Payload)))
	return append(buf, m.Payload...)
}

// ReadMessage blocks until one full frame has been read from r.
// The opcode is validated before any payload byte is consumed.
func ReadMessage(r io.Reader) (Message, error) {
	var header [defs.HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Message{}, err
	}

	op := defs.Opcode(header[0])
	if !op.Known() {
		return Message{}, fmt.Errorf("%w: 0x%02x", ErrUnknownOpcode, header[0])
	}
	payloadLen := binary.BigEndian.Uint32(header[1:defs.HeaderSize])

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Message{}, err
	}

	return Message{Op: op, Payload: payload}, nil
}

// WriteMessage writes one frame to w in a single write
func WriteMessage(w io.Writer, op defs.Opcode, payload []byte) error {
	if _, err := w.Write(NewMessage(op, payload).Serialize()); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", op, err)
	}
	return nil
}
