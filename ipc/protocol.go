package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// maxFrame bounds a single envelope. Game states of large maps run to a
// few hundred kilobytes.
const maxFrame = 4 << 20

// Envelope is the wire format shared with the game mod.
// Data is kept as RawMessage so handlers can defer deserialization to the concrete type.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func NewEnvelope(msgType string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", msgType, err)
	}
	return Envelope{Type: msgType, Data: raw}, nil
}

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", e.Type, err)
	}
	return nil
}

// ReadEnvelope reads a single length-prefixed JSON envelope.
// The 4-byte LE prefix matches the C# BinaryWriter on the mod side.
func ReadEnvelope(r io.Reader) (Envelope, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return Envelope{}, fmt.Errorf("read length: %w", err)
	}

	if length == 0 || length > maxFrame {
		return Envelope{}, fmt.Errorf("invalid message length: %d", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Envelope{}, fmt.Errorf("read payload: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}

	return env, nil
}

func WriteEnvelope(w io.Writer, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if len(payload) > maxFrame {
		return fmt.Errorf("envelope too large: %d bytes", len(payload))
	}

	// Prefix and payload go out in a single write.
	frame := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}
