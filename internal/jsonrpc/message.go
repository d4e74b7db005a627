package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Version is the fixed protocol version marker.
const Version = "2.0"

// ID is a request identifier: either an integer or a string, per the
// JSON-RPC 2.0 specification. The zero value is invalid; use IntID or
// StringID. Marshalling preserves the original form exactly.
type ID struct {
	num   int64
	str   string
	isStr bool
}

// IntID creates an integer request ID.
func IntID(n int64) ID {
	return ID{num: n}
}

// StringID creates a string request ID.
func StringID(s string) ID {
	return ID{str: s, isStr: true}
}

// FreshID returns a unique string ID for client-issued requests.
func FreshID() ID {
	return StringID(uuid.NewString())
}

// Int returns the numeric value and whether the ID is numeric.
func (id ID) Int() (int64, bool) {
	return id.num, !id.isStr
}

// String renders the ID for logs and errors.
func (id ID) String() string {
	if id.isStr {
		return id.str
	}
	return strconv.FormatInt(id.num, 10)
}

// Equal reports whether two IDs are the same value and type.
func (id ID) Equal(other ID) bool {
	return id == other
}

// MarshalJSON encodes the ID in its original form.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.isStr {
		return json.Marshal(id.str)
	}
	return json.Marshal(id.num)
}

// UnmarshalJSON accepts integers and strings, rejecting everything else.
// null is rejected too: an absent ID is a missing field, not a null one.
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return errors.New("jsonrpc: id must not be null")
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = StringID(s)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*id = IntID(n)
		return nil
	}
	return fmt.Errorf("jsonrpc: id must be an integer or a string, got %s", data)
}

// Message is one JSON-RPC 2.0 message. Which of the three forms it takes
// is determined by the populated fields:
//
//	Request:      ID + Method
//	Notification: Method, no ID
//	Response:     ID + exactly one of Result/Error
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewRequest builds a request message. params may be nil.
func NewRequest(requestID ID, method string, params interface{}) (*Message, error) {
	raw, err := marshalValue(params)
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: marshal params: %w", err)
	}
	return &Message{
		JSONRPC: Version,
		ID:      &requestID,
		Method:  method,
		Params:  raw,
	}, nil
}

// NewNotification builds a notification message. params may be nil.
func NewNotification(method string, params interface{}) (*Message, error) {
	raw, err := marshalValue(params)
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: marshal params: %w", err)
	}
	return &Message{
		JSONRPC: Version,
		Method:  method,
		Params:  raw,
	}, nil
}

// NewResult builds a success response.
func NewResult(requestID ID, result interface{}) (*Message, error) {
	raw, err := marshalValue(result)
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: marshal result: %w", err)
	}
	if raw == nil {
		raw = json.RawMessage("null")
	}
	return &Message{
		JSONRPC: Version,
		ID:      &requestID,
		Result:  raw,
	}, nil
}

// NewError builds an error response. requestID may be nil when the request
// ID could not be determined (e.g. a parse error).
func NewError(requestID *ID, rpcErr *Error) *Message {
	return &Message{
		JSONRPC: Version,
		ID:      requestID,
		Error:   rpcErr,
	}
}

// IsRequest reports whether the message is a request expecting a response.
func (m *Message) IsRequest() bool {
	return m.Method != "" && m.ID != nil
}

// IsNotification reports whether the message is a fire-and-forget call.
func (m *Message) IsNotification() bool {
	return m.Method != "" && m.ID == nil
}

// IsResponse reports whether the message answers a request.
func (m *Message) IsResponse() bool {
	return m.Method == "" && (m.Result != nil || m.Error != nil)
}

// Validate checks structural invariants: the version marker, and that a
// response carries exactly one of result/error.
func (m *Message) Validate() error {
	if m.JSONRPC != Version {
		return fmt.Errorf("jsonrpc: unsupported version %q", m.JSONRPC)
	}
	if m.Method == "" {
		if m.Result != nil && m.Error != nil {
			return errors.New("jsonrpc: response carries both result and error")
		}
		if m.Result == nil && m.Error == nil {
			return errors.New("jsonrpc: message has no method, result or error")
		}
	}
	return nil
}

// UnmarshalParams decodes the params field into v.
func (m *Message) UnmarshalParams(v interface{}) error {
	if m.Params == nil {
		return nil
	}
	return unmarshalValue(m.Params, v)
}

// UnmarshalResult decodes the result field into v.
func (m *Message) UnmarshalResult(v interface{}) error {
	if m.Result == nil {
		return nil
	}
	return unmarshalValue(m.Result, v)
}
