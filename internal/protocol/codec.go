package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrUnknownCodec = errors.New("unknown codec")
	ErrEmptyPayload = errors.New("empty payload")
)

// Frame is one decoded envelope. The payload stays in wire form until a
// handler asks for it.
type Frame struct {
	Event Event
	data  []byte
	codec Codec
}

func (f Frame) Decode(v any) error {
	if len(f.data) == 0 || f.codec == nil {
		return fmt.Errorf("%s: %w", f.Event, ErrEmptyPayload)
	}
	if err := f.codec.unmarshal(f.data, v); err != nil {
		return fmt.Errorf("%s: %w", f.Event, err)
	}
	return nil
}

// Codec turns (event, payload) pairs into websocket messages and back.
type Codec interface {
	Name() string
	// Binary reports whether encoded frames go out as binary messages.
	Binary() bool
	Encode(event Event, payload any) ([]byte, error)
	Decode(msg []byte) (Frame, error)
	unmarshal(data []byte, v any) error
}

const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return JSONCodec{}, nil
	case CodecMsgpack:
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

type outEnvelope struct {
	Event Event `json:"event"`
	Data  any   `json:"data"`
}

type JSONCodec struct{}

func (JSONCodec) Name() string { return CodecJSON }
func (JSONCodec) Binary() bool { return false }

func (JSONCodec) Encode(event Event, payload any) ([]byte, error) {
	return json.Marshal(outEnvelope{Event: event, Data: payload})
}

func (c JSONCodec) Decode(msg []byte) (Frame, error) {
	var env struct {
		Event Event           `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(msg, &env); err != nil {
		return Frame{}, err
	}
	if env.Event == "" {
		return Frame{}, errors.New("missing event")
	}
	var data []byte
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		data = env.Data
	}
	return Frame{Event: env.Event, data: data, codec: c}, nil
}

func (JSONCodec) unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// MsgpackCodec reuses the json struct tags so payload types are declared once.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return CodecMsgpack }
func (MsgpackCodec) Binary() bool { return true }

func (MsgpackCodec) Encode(event Event, payload any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(outEnvelope{Event: event, Data: payload}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c MsgpackCodec) Decode(msg []byte) (Frame, error) {
	var env struct {
		Event Event              `json:"event"`
		Data  msgpack.RawMessage `json:"data"`
	}
	dec := msgpack.NewDecoder(bytes.NewReader(msg))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&env); err != nil {
		return Frame{}, err
	}
	if env.Event == "" {
		return Frame{}, errors.New("missing event")
	}
	var data []byte
	// 0xc0 is msgpack nil
	if len(env.Data) > 0 && !(len(env.Data) == 1 && env.Data[0] == 0xc0) {
		data = env.Data
	}
	return Frame{Event: env.Event, data: data, codec: c}, nil
}

func (MsgpackCodec) unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// NewFrame builds a frame as if it had been received over a JSON connection.
func NewFrame(event Event, payload any) (Frame, error) {
	var c JSONCodec
	msg, err := c.Encode(event, payload)
	if err != nil {
		return Frame{}, err
	}
	return c.Decode(msg)
}
