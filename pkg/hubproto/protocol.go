// Package hubproto encodes and decodes the SignalR JSON hub protocol
// (version 1) spoken between the gateway and dashboard clients.
package hubproto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// RecordSeparator terminates every JSON record on the wire.
	RecordSeparator byte = 0x1e

	ProtocolName    = "json"
	ProtocolVersion = 1
)

type MessageType int

const (
	TypeInvocation       MessageType = 1
	TypeStreamItem       MessageType = 2
	TypeCompletion       MessageType = 3
	TypeStreamInvocation MessageType = 4
	TypeCancelInvocation MessageType = 5
	TypePing             MessageType = 6
	TypeClose            MessageType = 7
)

var ErrIncompleteRecord = errors.New("hubproto: record separator missing")

type HandshakeRequest struct {
	Protocol string `json:"protocol"`
	Version  int    `json:"version"`
}

type HandshakeResponse struct {
	Error string `json:"error,omitempty"`
}

// Message is the envelope shared by every hub message. Only the fields
// relevant to Type are populated.
type Message struct {
	Type           MessageType       `json:"type"`
	InvocationID   string            `json:"invocationId,omitempty"`
	Target         string            `json:"target,omitempty"`
	Arguments      []json.RawMessage `json:"arguments,omitempty"`
	Error          string            `json:"error,omitempty"`
	AllowReconnect bool              `json:"allowReconnect,omitempty"`
}

// Invocation builds a non-blocking invocation (no invocationId) of target.
func Invocation(target string, args ...interface{}) (Message, error) {
	msg := Message{Type: TypeInvocation, Target: target, Arguments: make([]json.RawMessage, 0, len(args))}
	for i, a := range args {
		raw, err := json.Marshal(a)
		if err != nil {
			return Message{}, fmt.Errorf("hubproto: argument %d of %s: %w", i, target, err)
		}
		msg.Arguments = append(msg.Arguments, raw)
	}
	return msg, nil
}

// Encode marshals v and appends the record separator.
func Encode(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, RecordSeparator), nil
}

// Split breaks a frame into records. A trailing partial record is an error.
func Split(frame []byte) ([][]byte, error) {
	records, rest := SplitPartial(frame)
	if len(rest) > 0 {
		return records, ErrIncompleteRecord
	}
	return records, nil
}

// SplitPartial breaks buf into complete records and returns the unterminated
// tail, which the caller prepends to the next frame.
func SplitPartial(buf []byte) (records [][]byte, rest []byte) {
	for len(buf) > 0 {
		i := bytes.IndexByte(buf, RecordSeparator)
		if i < 0 {
			return records, buf
		}
		if i > 0 {
			records = append(records, buf[:i])
		}
		buf = buf[i+1:]
	}
	return records, nil
}

func Decode(record []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(record, &msg); err != nil {
		return Message{}, fmt.Errorf("hubproto: decode message: %w", err)
	}
	return msg, nil
}

var (
	pingRecord      = mustEncode(Message{Type: TypePing})
	handshakeRecord = mustEncode(HandshakeRequest{Protocol: ProtocolName, Version: ProtocolVersion})
	handshakeOK     = mustEncode(HandshakeResponse{})
)

// PingRecord returns the encoded ping message.
func PingRecord() []byte { return append([]byte(nil), pingRecord...) }

// HandshakeRecord returns the encoded client handshake request.
func HandshakeRecord() []byte { return append([]byte(nil), handshakeRecord...) }

// HandshakeOKRecord returns the encoded successful handshake response.
func HandshakeOKRecord() []byte { return append([]byte(nil), handshakeOK...) }

// CloseRecord returns an encoded close message.
func CloseRecord(reason string, allowReconnect bool) []byte {
	return mustEncode(Message{Type: TypeClose, Error: reason, AllowReconnect: allowReconnect})
}

func mustEncode(v interface{}) []byte {
	b, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return b
}
