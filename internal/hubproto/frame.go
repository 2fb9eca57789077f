// Package hubproto implements the length-prefixed binary framing used to
// talk to the home-automation hub's native device protocol over TCP (spec
// section 6). No generated-protobuf dependency is introduced: no repo in
// the reference corpus uses google.golang.org/protobuf as a direct
// dependency with real generated code (it only ever appears transitively,
// via gRPC), so this hand-rolls a frame format in the same
// encoding/binary idiom the teacher already uses for PCM framing in
// internal/audio.
package hubproto

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MessageType tags the payload carried by a Frame.
type MessageType uint16

const (
	MsgHello MessageType = iota + 1
	MsgHelloAck
	MsgPing
	MsgPong
	MsgEntityList
	MsgEntityState
	MsgEntityCommand
	MsgAudioStreamStart
	MsgAudioChunk
	MsgAudioStreamEnd
	MsgConversationText
	MsgCancel
	MsgDisconnect
)

// MaxPayloadBytes bounds a single frame's payload, guarding against a
// misbehaving or compromised peer declaring an absurd length.
const MaxPayloadBytes = 16 * 1024 * 1024

// Frame is one hub-protocol message: a 2-byte type, a 4-byte big-endian
// length, and the payload.
type Frame struct {
	Type    MessageType
	Payload []byte
}

// WriteFrame writes f to w in wire format: [type:2][length:4][payload].
func WriteFrame(w io.Writer, f Frame) error {
	header := make([]byte, 6)
	binary.BigEndian.PutUint16(header[0:2], uint16(f.Type))
	binary.BigEndian.PutUint32(header[2:6], uint32(len(f.Payload)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("hubproto: write header: %w", err)
	}
	if len(f.Payload) > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return fmt.Errorf("hubproto: write payload: %w", err)
		}
	}
	return nil
}

// ReadFrame reads one Frame from r, blocking until a full frame arrives.
func ReadFrame(r io.Reader) (Frame, error) {
	header := make([]byte, 6)
	if _, err := io.ReadFull(r, header); err != nil {
		return Frame{}, err
	}
	typ := MessageType(binary.BigEndian.Uint16(header[0:2]))
	length := binary.BigEndian.Uint32(header[2:6])
	if length > MaxPayloadBytes {
		return Frame{}, fmt.Errorf("hubproto: frame length %d exceeds maximum", length)
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, fmt.Errorf("hubproto: read payload: %w", err)
		}
	}
	return Frame{Type: typ, Payload: payload}, nil
}
