package protocol

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

const frameHeaderBytes = 4

// DefaultMaxFrameBytes bounds a single frame unless the decoder is told otherwise.
const DefaultMaxFrameBytes = 1 << 20

var (
	ErrEmptyFrame    = errors.New("frame length zero")
	ErrFrameTooLarge = errors.New("frame too large")
)

// Encoder writes envelopes as a 4-byte big-endian length followed by JSON.
type Encoder struct {
	writer io.Writer
}

// Decoder reads frames written by Encoder.
type Decoder struct {
	reader   *bufio.Reader
	maxFrame uint32
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{writer: w}
}

// NewDecoder creates a decoder accepting frames up to DefaultMaxFrameBytes.
func NewDecoder(r io.Reader) *Decoder {
	return NewDecoderSize(r, DefaultMaxFrameBytes)
}

// NewDecoderSize creates a decoder accepting frames up to maxFrame bytes.
func NewDecoderSize(r io.Reader, maxFrame int) *Decoder {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameBytes
	}
	return &Decoder{reader: bufio.NewReader(r), maxFrame: uint32(maxFrame)}
}

// Encode writes the envelope as one frame.
func (e *Encoder) Encode(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal envelope")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	frame := make([]byte, frameHeaderBytes+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[frameHeaderBytes:], data)

	_, err = e.writer.Write(frame)
	return err
}

// Decode reads the next envelope from the stream.
func (d *Decoder) Decode(ctx context.Context) (Envelope, error) {
	var env Envelope

	header := make([]byte, frameHeaderBytes)
	if err := d.readFull(ctx, header); err != nil {
		return env, err
	}

	length := binary.BigEndian.Uint32(header)
	if length == 0 {
		return env, ErrEmptyFrame
	}
	if length > d.maxFrame {
		return env, errors.Wrapf(ErrFrameTooLarge, "%d bytes", length)
	}

	payload := make([]byte, length)
	if err := d.readFull(ctx, payload); err != nil {
		return env, err
	}

	if err := json.Unmarshal(payload, &env); err != nil {
		return env, errors.Wrap(err, "unmarshal envelope")
	}
	return env, nil
}

func (d *Decoder) readFull(ctx context.Context, buf []byte) error {
	read := 0
	for read < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := d.reader.Read(buf[read:])
		read += n
		if err != nil {
			if errors.Is(err, io.EOF) && read > 0 && read < len(buf) {
				return io.ErrUnexpectedEOF
			}
			if read == len(buf) {
				return nil
			}
			return err
		}
	}
	return nil
}
