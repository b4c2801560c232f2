// Package event parses inbound evaluator frames and routes them to their
// consumers.
package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Paranoid-AF/vlive"
)

// Event is one classified inbound frame: Log, EvalResult or Frequency.
// The set is closed; only this package can add variants.
type Event interface {
	isEvent()
}

// Log is a text fragment to append to the session log.
type Log struct {
	Text string
}

// EvalResult is an evaluation result keyed by its display text.
type EvalResult struct {
	DisplayText string
	Value       string
}

// Frequency is the latest status value, rendered as-is.
type Frequency struct {
	Value string
}

func (Log) isEvent() {}
func (EvalResult) isEvent() {}
func (Frequency) isEvent() {}

// UnknownEventError is returned for a well-formed frame whose api is not
// one of log, eval or freq.
type UnknownEventError struct {
	API string
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("event: unknown api %q", e.API)
}

// MalformedFrameError is returned for a frame that cannot be decoded.
type MalformedFrameError struct {
	Frame string
	Err   error
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("event: malformed frame %s: %v", abbreviate(e.Frame, 64), e.Err)
}

func (e *MalformedFrameError) Unwrap() error { return e.Err }

var (
	errMissingAPI  = errors.New(`missing "api"`)
	errMissingVal  = errors.New(`missing "val"`)
	errMissingText = errors.New(`eval payload missing "text"`)
)

// envelope mirrors vlive.Frame with a nullable api so absence is detectable.
type envelope struct {
	API *string         `json:"api"`
	Val json.RawMessage `json:"val"`
}

// evalPayload mirrors vlive.EvalPayload; value may be any JSON value.
type evalPayload struct {
	Text  *string         `json:"text"`
	Value json.RawMessage `json:"value"`
}

// Parse classifies a raw inbound frame.
func Parse(raw string) (Event, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, &MalformedFrameError{Frame: raw, Err: err}
	}
	if env.API == nil {
		return nil, &MalformedFrameError{Frame: raw, Err: errMissingAPI}
	}
	if len(env.Val) == 0 {
		return nil, &MalformedFrameError{Frame: raw, Err: errMissingVal}
	}

	switch vlive.API(*env.API) {
	case vlive.APILog:
		var text string
		if err := json.Unmarshal(env.Val, &text); err != nil {
			return nil, &MalformedFrameError{Frame: raw, Err: fmt.Errorf("log payload: %w", err)}
		}
		return Log{Text: text}, nil

	case vlive.APIEval:
		var p evalPayload
		if err := json.Unmarshal(env.Val, &p); err != nil {
			return nil, &MalformedFrameError{Frame: raw, Err: fmt.Errorf("eval payload: %w", err)}
		}
		if p.Text == nil {
			return nil, &MalformedFrameError{Frame: raw, Err: errMissingText}
		}
		return EvalResult{DisplayText: *p.Text, Value: opaque(p.Value)}, nil

	case vlive.APIFreq:
		return Frequency{Value: opaque(env.Val)}, nil

	default:
		return nil, &UnknownEventError{API: *env.API}
	}
}

// opaque renders a JSON value as text: strings are unquoted, anything else
// keeps its JSON spelling.
func opaque(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%q...", s[:n])
}
