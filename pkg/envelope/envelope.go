package envelope

import (
	"bytes"
	"encoding/json"

	"github.com/acc-coin/acc-sdk-go/pkg/relayerr"
)

// CodeSuccess is the only code the relay uses for success.
const CodeSuccess = 0

// ErrorBody carries the relay's failure description.
type ErrorBody struct {
	Message string `json:"message"`
}

// Envelope is the wrapper around every relay response: {code, data?, error?}.
type Envelope struct {
	Code  *int            `json:"code"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *ErrorBody      `json:"error,omitempty"`
}

// Decode parses a raw response body. A body that is not an envelope is RelayUnavailable.
func Decode(body []byte) (*Envelope, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, relayerr.RelayUnavailable("empty response body", nil)
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, relayerr.RelayUnavailable("malformed response envelope", err)
	}
	if env.Code == nil {
		return nil, relayerr.RelayUnavailable("response envelope has no code", nil)
	}
	return &env, nil
}

// StatusCode returns the envelope code.
func (e *Envelope) StatusCode() int {
	if e == nil || e.Code == nil {
		return -1
	}
	return *e.Code
}

// Err maps the envelope onto the error taxonomy. Nonzero codes become RelayRejected;
// code 0 without data breaks the contract and becomes RelayUnavailable.
func (e *Envelope) Err() error {
	if e == nil || e.Code == nil {
		return relayerr.RelayUnavailable("missing response envelope", nil)
	}
	if *e.Code != CodeSuccess {
		message := ""
		if e.Error != nil {
			message = e.Error.Message
		}
		return relayerr.RelayRejected(*e.Code, message)
	}
	if !e.hasData() {
		return relayerr.RelayUnavailable("successful response carries no data", nil)
	}
	return nil
}

// Into checks the envelope and decodes its data into target.
func (e *Envelope) Into(target interface{}) error {
	if err := e.Err(); err != nil {
		return err
	}
	if err := json.Unmarshal(e.Data, target); err != nil {
		return relayerr.RelayUnavailable("malformed response data", err)
	}
	return nil
}

func (e *Envelope) hasData() bool {
	trimmed := bytes.TrimSpace(e.Data)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Success builds a code 0 envelope around data. Used by servers and tests.
func Success(data interface{}) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	code := CodeSuccess
	return &Envelope{Code: &code, Data: raw}, nil
}

// Failure builds an envelope with a nonzero code.
func Failure(code int, message string) *Envelope {
	return &Envelope{Code: &code, Error: &ErrorBody{Message: message}}
}
