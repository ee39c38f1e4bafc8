package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"

	"github.com/luciancaetano/kephasrpc"
)

const (
	// MaxFrameSize bounds a single inbound or outbound frame.
	MaxFrameSize = 10 * 1024 * 1024 // 10MB
)

var null = []byte("null")

// ID is the canonical text of a request identifier.
//
// Numbers keep their literal text and strings are unquoted, so 3 and "3" name
// the same request.
type ID string

// IDFromUint returns the ID the client assigns to request n.
func IDFromUint(n uint64) ID {
	return ID(strconv.FormatUint(n, 10))
}

// ParseID converts a raw "id" member into its canonical form.
func ParseID(raw json.RawMessage) ID {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return ID(s)
		}
	}
	return ID(raw)
}

// Request is an outbound JSON-RPC 2.0 request or notification.
//
// ID is nil for notifications.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewRequest builds a request envelope with the given id.
func NewRequest(id uint64, method string, params json.RawMessage) *Request {
	return &Request{
		JSONRPC: kephasrpc.JSONRPCVersion,
		ID:      &id,
		Method:  method,
		Params:  params,
	}
}

// NewNotification builds an envelope without id.
func NewNotification(method string, params json.RawMessage) *Request {
	return &Request{
		JSONRPC: kephasrpc.JSONRPCVersion,
		Method:  method,
		Params:  params,
	}
}

// Encode serializes the envelope to wire text.
func (r *Request) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}
	if len(data) > MaxFrameSize {
		return nil, errors.Errorf("frame size %d exceeds maximum %d bytes", len(data), MaxFrameSize)
	}
	return data, nil
}

// DecodeRequest parses wire text produced by Encode.
func DecodeRequest(data []byte) (*Request, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrap(err, "decode request")
	}
	return &r, nil
}

// EncodeParams turns caller-supplied params into the "params" member.
//
// nil and JSON null mean "omitted". Anything else must encode to an array or
// an object.
func EncodeParams(params interface{}) (json.RawMessage, error) {
	var raw json.RawMessage
	switch p := params.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, errors.Wrap(err, "encode params")
		}
		raw = data
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, null) {
		return nil, nil
	}
	if raw[0] != '[' && raw[0] != '{' {
		return nil, errors.New("params must be an array or an object")
	}
	if !json.Valid(raw) {
		return nil, errors.New("params are not valid JSON")
	}
	return raw, nil
}

// Kind classifies an inbound message.
type Kind int

const (
	// KindInvalid is a frame that is neither a response nor a notification.
	KindInvalid Kind = iota
	// KindResult is a response carrying "result".
	KindResult
	// KindError is a response carrying "error".
	KindError
	// KindNotification is a message with a method and no id.
	KindNotification
)

func (k Kind) String() string {
	switch k {
	case KindResult:
		return "result"
	case KindError:
		return "error"
	case KindNotification:
		return "notification"
	default:
		return "invalid"
	}
}

// Message is a decoded inbound frame.
//
// A raw member is nil when the frame does not carry it; a member present with
// the JSON literal null is kept as "null".
type Message struct {
	ID     json.RawMessage
	Method string
	Params json.RawMessage
	Result json.RawMessage
	Error  *kephasrpc.Error
}

// Decode parses an inbound frame.
//
// Only undecodable JSON and wrongly typed members are reported here; use Kind
// to find out whether the envelope makes sense.
func Decode(data []byte) (*Message, error) {
	if len(data) > MaxFrameSize {
		return nil, errors.Errorf("frame size %d exceeds maximum %d bytes", len(data), MaxFrameSize)
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, errors.Wrap(err, "decode frame")
	}

	msg := &Message{}
	if raw, ok := members["id"]; ok {
		msg.ID = raw
	}
	if raw, ok := members["method"]; ok && !bytes.Equal(raw, null) {
		if err := json.Unmarshal(raw, &msg.Method); err != nil {
			return nil, errors.Wrap(err, "decode method")
		}
	}
	if raw, ok := members["params"]; ok {
		msg.Params = raw
	}
	if raw, ok := members["result"]; ok {
		msg.Result = raw
	}
	if raw, ok := members["error"]; ok && !bytes.Equal(raw, null) {
		var rpcErr kephasrpc.Error
		if err := json.Unmarshal(raw, &rpcErr); err != nil {
			return nil, errors.Wrap(err, "decode error object")
		}
		msg.Error = &rpcErr
	}
	return msg, nil
}

// Kind reports what the message is. A result wins over an error when a
// server sends both.
func (m *Message) Kind() Kind {
	if m.ID != nil {
		switch {
		case m.Result != nil:
			return KindResult
		case m.Error != nil:
			return KindError
		default:
			return KindInvalid
		}
	}
	if m.Method != "" {
		return KindNotification
	}
	return KindInvalid
}

// RequestID returns the canonical id of a response.
func (m *Message) RequestID() ID {
	return ParseID(m.ID)
}
