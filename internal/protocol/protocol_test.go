package protocol

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

// TestRequestRoundTrip tests that an encoded request decodes to the same method, params and id
func TestRequestRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		id     uint64
		method string
		params interface{}
	}{
		{
			name:   "positional params",
			id:     0,
			method: "aria2.addUri",
			params: []interface{}{[]string{"http://example.com/file"}, map[string]string{"dir": "/tmp"}},
		},
		{
			name:   "named params",
			id:     42,
			method: "math.add",
			params: map[string]int{"a": 1, "b": 2},
		},
		{
			name:   "no params",
			id:     7,
			method: "system.listMethods",
			params: nil,
		},
		{
			name:   "raw params",
			id:     1 << 40,
			method: "raw",
			params: json.RawMessage(`[1,"two",{"three":3}]`),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			params, err := EncodeParams(tt.params)
			if err != nil {
				t.Fatalf("EncodeParams() error = %v", err)
			}

			data, err := NewRequest(tt.id, tt.method, params).Encode()
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			decoded, err := DecodeRequest(data)
			if err != nil {
				t.Fatalf("DecodeRequest() error = %v", err)
			}

			if decoded.JSONRPC != "2.0" {
				t.Errorf("jsonrpc = %q, want 2.0", decoded.JSONRPC)
			}
			if decoded.Method != tt.method {
				t.Errorf("method = %q, want %q", decoded.Method, tt.method)
			}
			if decoded.ID == nil || *decoded.ID != tt.id {
				t.Errorf("id = %v, want %d", decoded.ID, tt.id)
			}
			if !bytes.Equal(decoded.Params, params) {
				t.Errorf("params = %s, want %s", decoded.Params, params)
			}
		})
	}
}

// TestRequestOmitsParams tests that absent params are not written to the wire
func TestRequestOmitsParams(t *testing.T) {
	t.Parallel()

	data, err := NewRequest(3, "ping", nil).Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if strings.Contains(string(data), "params") {
		t.Errorf("encoded request %s should not contain params", data)
	}
	if string(data) != `{"jsonrpc":"2.0","id":3,"method":"ping"}` {
		t.Errorf("encoded request = %s", data)
	}
}

// TestNotificationHasNoID tests that notifications are encoded without id
func TestNotificationHasNoID(t *testing.T) {
	t.Parallel()

	data, err := NewNotification("log", json.RawMessage(`["hi"]`)).Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if string(data) != `{"jsonrpc":"2.0","method":"log","params":["hi"]}` {
		t.Errorf("encoded notification = %s", data)
	}
}

// TestEncodeParams tests params validation
func TestEncodeParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		params    interface{}
		want      string
		wantError bool
	}{
		{name: "nil", params: nil, want: ""},
		{name: "raw null", params: json.RawMessage("null"), want: ""},
		{name: "empty raw", params: json.RawMessage(nil), want: ""},
		{name: "slice", params: []int{1, 2}, want: "[1,2]"},
		{name: "map", params: map[string]bool{"x": true}, want: `{"x":true}`},
		{name: "bytes", params: []byte(` {"a":1} `), want: `{"a":1}`},
		{name: "scalar", params: 5, wantError: true},
		{name: "string", params: "hello", wantError: true},
		{name: "invalid raw", params: json.RawMessage(`[1,`), wantError: true},
		{name: "unencodable", params: []interface{}{make(chan int)}, wantError: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := EncodeParams(tt.params)
			if (err != nil) != tt.wantError {
				t.Fatalf("EncodeParams() error = %v, wantError %v", err, tt.wantError)
			}
			if tt.wantError {
				return
			}
			if string(got) != tt.want {
				t.Errorf("EncodeParams() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestDecodeKind tests classification of inbound frames
func TestDecodeKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		want Kind
	}{
		{name: "result", data: `{"jsonrpc":"2.0","id":1,"result":"ok"}`, want: KindResult},
		{name: "null result", data: `{"jsonrpc":"2.0","id":1,"result":null}`, want: KindResult},
		{name: "error", data: `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`, want: KindError},
		{name: "result wins over null error", data: `{"jsonrpc":"2.0","id":1,"result":1,"error":null}`, want: KindResult},
		{name: "neither result nor error", data: `{"jsonrpc":"2.0","id":1}`, want: KindInvalid},
		{name: "null error only", data: `{"jsonrpc":"2.0","id":1,"error":null}`, want: KindInvalid},
		{name: "notification", data: `{"jsonrpc":"2.0","method":"aria2.onDownloadStart","params":[{"gid":"1"}]}`, want: KindNotification},
		{name: "notification without params", data: `{"jsonrpc":"2.0","method":"tick"}`, want: KindNotification},
		{name: "neither id nor method", data: `{"jsonrpc":"2.0","params":[]}`, want: KindInvalid},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg, err := Decode([]byte(tt.data))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got := msg.Kind(); got != tt.want {
				t.Errorf("Kind() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestDecodeErrorObject tests that the error member is decoded with code, message and data
func TestDecodeErrorObject(t *testing.T) {
	t.Parallel()

	msg, err := Decode([]byte(`{"jsonrpc":"2.0","id":"9","error":{"code":-32000,"message":"boom","data":["detail"]}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if msg.Error == nil {
		t.Fatal("Error should be set")
	}
	if msg.Error.Code != -32000 || msg.Error.Message != "boom" {
		t.Errorf("Error = %+v", msg.Error)
	}
	if string(msg.Error.Data) != `["detail"]` {
		t.Errorf("Error.Data = %s", msg.Error.Data)
	}
	if msg.RequestID() != "9" {
		t.Errorf("RequestID() = %q, want 9", msg.RequestID())
	}
}

// TestDecodeMalformed tests that undecodable frames are rejected
func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "not json", data: []byte("hello")},
		{name: "array", data: []byte(`[1,2,3]`)},
		{name: "method not a string", data: []byte(`{"method":5}`)},
		{name: "error not an object", data: []byte(`{"id":1,"error":"bad"}`)},
		{name: "too large", data: bytes.Repeat([]byte(" "), MaxFrameSize+1)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := Decode(tt.data); err == nil {
				t.Error("Decode() should fail")
			}
		})
	}
}

// TestParseID tests canonical id forms
func TestParseID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want ID
	}{
		{raw: `3`, want: "3"},
		{raw: `"3"`, want: "3"},
		{raw: ` 12 `, want: "12"},
		{raw: `"abc"`, want: "abc"},
		{raw: `null`, want: "null"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()

			if got := ParseID(json.RawMessage(tt.raw)); got != tt.want {
				t.Errorf("ParseID(%s) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}

	if IDFromUint(3) != ParseID(json.RawMessage(`"3"`)) {
		t.Error("numeric and string ids should match")
	}
}

// BenchmarkDecode benchmarks decoding a response frame
func BenchmarkDecode(b *testing.B) {
	data := []byte(`{"jsonrpc":"2.0","id":12,"result":{"gid":"2089b05ecca3d829","status":"active"}}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Decode(data)
	}
}

// BenchmarkEncode benchmarks encoding a request frame
func BenchmarkEncode(b *testing.B) {
	params := json.RawMessage(`["token:secret",["http://example.com"]]`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = NewRequest(uint64(i), "aria2.addUri", params).Encode()
	}
}
