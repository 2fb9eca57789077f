package hubproto

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Frame{Type: MsgEntityCommand, Payload: []byte(`{"key":"x"}`)}))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, MsgEntityCommand, got.Type)
	assert.Equal(t, []byte(`{"key":"x"}`), got.Payload)
}

func TestReadFrameWithEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Frame{Type: MsgPing}))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, MsgPing, got.Type)
	assert.Empty(t, got.Payload)
}

func TestReadFrameRejectsOversizeLength(t *testing.T) {
	header := make([]byte, 6)
	binary.BigEndian.PutUint16(header[0:2], uint16(MsgAudioChunk))
	binary.BigEndian.PutUint32(header[2:6], MaxPayloadBytes+1)

	_, err := ReadFrame(bytes.NewReader(header))
	assert.Error(t, err)
}

func TestReadFrameOnTruncatedHeaderErrors(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0x00, 0x01}))
	assert.Error(t, err)
}

func TestEntityDescriptorRoundTripsThroughJSON(t *testing.T) {
	d := EntityDescriptor{Key: "number.x", Kind: KindNumber, Name: "X", Min: 1, Max: 10}
	var out EntityDescriptor
	require.NoError(t, UnmarshalJSON(MarshalJSON(d), &out))
	assert.Equal(t, d, out)
}
