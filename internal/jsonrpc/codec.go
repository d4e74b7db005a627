package jsonrpc

import "github.com/bytedance/sonic"

// std is a sonic API configured for encoding/json compatibility; message
// bytes must round-trip identically across implementations.
var std = sonic.ConfigStd

// Marshal serializes a message to a single line of JSON (no trailing
// newline).
func Marshal(m *Message) ([]byte, error) {
	return std.Marshal(m)
}

// Parse decodes one line into a message. Malformed JSON yields the
// canonical parse error; a structurally invalid message yields an
// invalid-request error.
func Parse(line []byte) (*Message, error) {
	var m Message
	if err := std.Unmarshal(line, &m); err != nil {
		return nil, ErrParse()
	}
	if err := m.Validate(); err != nil {
		return nil, ErrInvalidRequest(err.Error())
	}
	return &m, nil
}

func marshalValue(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return std.Marshal(v)
}

func unmarshalValue(data []byte, v interface{}) error {
	return std.Unmarshal(data, v)
}
