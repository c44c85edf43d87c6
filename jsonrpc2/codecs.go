package jsonrpc2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/vipnode/birpc/internal/pretty"
)

// Codec is an abstraction for receiving and sending JSONRPC messages.
type Codec interface {
	ReadMessage() (*Message, error)
	WriteMessage(*Message) error
	Close() error
}

// DecodeError is returned by a Codec when one frame could not be decoded but
// the stream is still usable. Readers can skip the frame and keep reading.
type DecodeError struct {
	Err error
}

func (err DecodeError) Error() string {
	return fmt.Sprintf("failed to decode message: %s", err.Err)
}

func (err DecodeError) Unwrap() error {
	return err.Err
}

var _ Codec = &jsonCodec{}

// IOCodec returns a Codec that wraps JSON encoding and decoding over IO. Each
// message is written as one line of JSON.
func IOCodec(rwc io.ReadWriteCloser) *jsonCodec {
	return &jsonCodec{
		decoder: json.NewDecoder(rwc),
		encoder: json.NewEncoder(rwc),
		closer:  rwc,
	}
}

type jsonCodec struct {
	muRead  sync.Mutex
	muWrite sync.Mutex
	decoder *json.Decoder
	encoder *json.Encoder
	closer  io.Closer
}

func (codec *jsonCodec) ReadMessage() (*Message, error) {
	codec.muRead.Lock()
	defer codec.muRead.Unlock()
	var msg Message
	err := codec.decoder.Decode(&msg)
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		// The value was consumed, only its shape was wrong.
		return nil, DecodeError{err}
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (codec *jsonCodec) WriteMessage(msg *Message) error {
	codec.muWrite.Lock()
	defer codec.muWrite.Unlock()
	return codec.encoder.Encode(msg)
}

func (codec *jsonCodec) Close() error {
	if codec.closer == nil {
		return nil
	}
	return codec.closer.Close()
}

// DebugCodec wraps a Codec and logs every message that passes through it,
// labelled with label (usually the remote address).
func DebugCodec(label string, codec Codec) Codec {
	return &debugCodec{Codec: codec, label: label}
}

type debugCodec struct {
	Codec
	label string
}

func (codec *debugCodec) ReadMessage() (*Message, error) {
	msg, err := codec.Codec.ReadMessage()
	if err != nil {
		logger.Printf("%s -> read error: %s", codec.label, err)
		return msg, err
	}
	logger.Printf("%s -> %s", codec.label, pretty.Abbrev(msg.String(), 500, 497))
	return msg, nil
}

func (codec *debugCodec) WriteMessage(msg *Message) error {
	logger.Printf("%s <- %s", codec.label, pretty.Abbrev(msg.String(), 500, 497))
	return codec.Codec.WriteMessage(msg)
}

var _ Transport = &StreamTransport{}

// CodecTransport returns a Transport that sends and receives through codec.
// Inbound messages are only delivered while Serve is running.
func CodecTransport(codec Codec) *StreamTransport {
	return &StreamTransport{codec: codec}
}

// StreamTransport is a Transport over a Codec.
type StreamTransport struct {
	Listeners
	codec Codec
}

// Codec returns the underlying codec.
func (t *StreamTransport) Codec() Codec {
	return t.codec
}

func (t *StreamTransport) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.codec.WriteMessage(msg)
}

// Serve reads messages until the codec fails and dispatches each one to the
// listeners. Frames that fail to decode are dropped. It returns the read
// error that ended the loop, such as io.EOF.
func (t *StreamTransport) Serve() error {
	for {
		msg, err := t.codec.ReadMessage()
		var decodeErr DecodeError
		if errors.As(err, &decodeErr) {
			logger.Printf("StreamTransport.Serve(): Dropping undecodable message: %s", err)
			continue
		}
		if err != nil {
			return err
		}
		t.Dispatch(msg)
	}
}

// Close closes the underlying codec, which ends Serve.
func (t *StreamTransport) Close() error {
	return t.codec.Close()
}
