package protocol

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	thread := int64(3)

	env := NewEnvelope(MessageTypeCommand, SendMessageRequest{Message: "hi", Sport: "futebol", ThreadID: &thread})
	env.Token = "tok"
	env.Metadata = map[string]interface{}{MetaAction: ActionSendMessage}
	require.NoError(t, NewEncoder(&buf).Encode(ctx, env))
	require.NoError(t, NewEncoder(&buf).Encode(ctx, NewEnvelope(MessageTypeAck, nil)))

	dec := NewDecoder(&buf)
	got, err := dec.Decode(ctx)
	require.NoError(t, err)
	assert.Equal(t, env.ID, got.ID)
	assert.Equal(t, MessageTypeCommand, got.Type)
	assert.Equal(t, "tok", got.Token)
	assert.Equal(t, ActionSendMessage, got.MetadataString(MetaAction))
	assert.Empty(t, got.MetadataString("missing"))

	req, err := DecodePayload[SendMessageRequest](got.Payload)
	require.NoError(t, err)
	assert.Equal(t, "hi", req.Message)
	require.NotNil(t, req.ThreadID)
	assert.Equal(t, int64(3), *req.ThreadID)

	second, err := dec.Decode(ctx)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeAck, second.Type)

	_, err = dec.Decode(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecode_RejectsBadFrames(t *testing.T) {
	ctx := context.Background()

	zero := make([]byte, frameHeaderBytes)
	_, err := NewDecoder(bytes.NewReader(zero)).Decode(ctx)
	assert.ErrorIs(t, err, ErrEmptyFrame)

	big := make([]byte, frameHeaderBytes)
	binary.BigEndian.PutUint32(big, 64)
	_, err = NewDecoderSize(bytes.NewReader(big), 16).Decode(ctx)
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	truncated := make([]byte, frameHeaderBytes, frameHeaderBytes+3)
	binary.BigEndian.PutUint32(truncated, 10)
	truncated = append(truncated, '{', '"', 'a')
	_, err = NewDecoder(bytes.NewReader(truncated)).Decode(ctx)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	garbage := make([]byte, frameHeaderBytes)
	binary.BigEndian.PutUint32(garbage, 3)
	garbage = append(garbage, 'n', 'o', 'p')
	_, err = NewDecoder(bytes.NewReader(garbage)).Decode(ctx)
	assert.Error(t, err)
}

func TestDecode_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDecoder(bytes.NewReader([]byte{0, 0, 0, 1, 'x'})).Decode(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCodec_OverPipe(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	ctx := context.Background()

	sent := NewEnvelope(MessageTypeAuthRequest, AuthRequest{Action: AuthActionLogin, Username: "alice", Password: "secret1"})
	go func() {
		_ = NewEncoder(client).Encode(ctx, sent)
	}()

	got, err := NewDecoder(server).Decode(ctx)
	require.NoError(t, err)
	req, err := DecodePayload[AuthRequest](got.Payload)
	require.NoError(t, err)
	assert.Equal(t, AuthRequest{Action: AuthActionLogin, Username: "alice", Password: "secret1"}, req)
}

func TestDecodePayload_Missing(t *testing.T) {
	_, err := DecodePayload[TurnRequest](nil)
	assert.ErrorIs(t, err, ErrMissingPayload)
}
