// Package vlive defines the wire types exchanged with a live evaluator.
// Outbound commands are bare text frames ("eval:<src>", "freq:", "pull:").
// Inbound frames are JSON objects tagged by their "api" field.
package vlive

import "encoding/json"

// API is the discriminator carried by every inbound frame.
type API string

const (
	// APILog carries a text fragment to append to the session log.
	APILog API = "log"
	// APIEval carries an evaluation result ({"text":..., "value":...}).
	APIEval API = "eval"
	// APIFreq carries an opaque status value, usually the evaluator's clock frequency.
	APIFreq API = "freq"
)

// Frame is the envelope of an inbound message.
type Frame struct {
	// API selects how Val is interpreted.
	API API `json:"api"`
	// Val is the payload; its shape depends on API.
	Val json.RawMessage `json:"val"`
}

// EvalPayload is the payload of an "eval" frame.
type EvalPayload struct {
	// Text is the visible label of the result, e.g. "[decl] Clock".
	// Results with equal Text replace each other.
	Text string `json:"text"`
	// Value is the body associated with Text, typically rendered source.
	Value string `json:"value"`
}

// EncodeFrame builds an inbound frame with val marshalled as its payload.
// It is used by evaluator stand-ins; clients only ever decode frames.
func EncodeFrame(api API, val any) ([]byte, error) {
	raw, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{API: api, Val: raw})
}
