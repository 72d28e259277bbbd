// Package message defines the request and response values exchanged between client and server.
//
// Both are plain structured values; the codec layer turns them into text and the protocol
// layer wraps that text in a frame for transmission.
package message

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// UnknownError is the text reported for a response that carries neither a result nor an error.
const UnknownError = "Unknown error"

// ErrMissingMethod is returned by Validate when a request names no method.
var ErrMissingMethod = errors.New("request has no method")

// Request names a registered method and carries its positional params.
//
// Params are kept as raw JSON so the server can decode each one into the
// parameter type the bound function declares.
type Request struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// NewRequest encodes params into a Request for method.
func NewRequest(method string, params ...any) (*Request, error) {
	req := &Request{
		Method: method,
		Params: make([]json.RawMessage, 0, len(params)),
	}
	for i, p := range params {
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding param %d of %s", i, method)
		}
		req.Params = append(req.Params, raw)
	}
	return req, nil
}

// Validate reports whether the request can be dispatched.
func (r *Request) Validate() error {
	if r.Method == "" {
		return ErrMissingMethod
	}
	return nil
}

// Response holds exactly one of a result or an error.
//
// In memory, a non-empty Error makes it an error response whatever Result
// holds, and only the error is encoded. When decoding a peer's reply that
// carries both fields, the result is kept, as callers check for a result
// first. A decoded Response with neither set is reported as UnknownError.
type Response struct {
	Result json.RawMessage
	Error  string
}

// NewResult encodes v as a successful response.
func NewResult(v any) (*Response, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encoding result")
	}
	return &Response{Result: raw}, nil
}

// NewError builds an error response. An empty msg becomes UnknownError so
// the response never ends up carrying neither field.
func NewError(msg string) *Response {
	if msg == "" {
		msg = UnknownError
	}
	return &Response{Error: msg}
}

// IsError reports whether the response carries an error, including the
// implicit UnknownError of an empty or nil response.
func (r *Response) IsError() bool {
	return r == nil || r.Error != "" || len(r.Result) == 0
}

// ErrorText returns the error carried by the response, or "" for a result.
func (r *Response) ErrorText() string {
	if r == nil {
		return UnknownError
	}
	if r.Error != "" {
		return r.Error
	}
	if len(r.Result) == 0 {
		return UnknownError
	}
	return ""
}

// DecodeResult unmarshals the result into v.
func (r *Response) DecodeResult(v any) error {
	if v == nil {
		return nil
	}
	return json.Unmarshal(r.Result, v)
}

type responseWire struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *string         `json:"error,omitempty"`
}

// MarshalJSON emits exactly one of "result" or "error".
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		msg := r.Error
		return json.Marshal(responseWire{Error: &msg})
	}
	result := r.Result
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	return json.Marshal(responseWire{Result: result})
}

// UnmarshalJSON accepts either field; a present "result" wins over "error".
func (r *Response) UnmarshalJSON(data []byte) error {
	var w responseWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Result, r.Error = nil, ""
	if len(w.Result) > 0 {
		r.Result = w.Result
		return nil
	}
	if w.Error != nil {
		r.Error = *w.Error
		if r.Error == "" {
			r.Error = UnknownError
		}
	}
	return nil
}
