package memory

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// DecodeError reports a snapshot that could not be turned into messages.
type DecodeError struct {
	Index int // offending message index, -1 for document-level problems
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("decode snapshot: %v", e.Err)
	}
	return fmt.Sprintf("decode snapshot: message %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode serializes msgs as an indented JSON array.
func Encode(msgs []Message) ([]byte, error) {
	if msgs == nil {
		msgs = []Message{}
	}
	return json.MarshalIndent(msgs, "", " ")
}

// Decode parses a snapshot produced by Encode, or written by hand.
// Field names are matched case-insensitively and unknown fields land in
// Message.Extra. On failure it returns a *DecodeError and no messages.
func Decode(data []byte) ([]Message, error) {
	if !gjson.ValidBytes(data) {
		return nil, &DecodeError{Index: -1, Err: errors.New("invalid JSON")}
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return nil, &DecodeError{Index: -1, Err: fmt.Errorf("snapshot is %s, want array", doc.Type)}
	}

	var (
		msgs []Message
		derr *DecodeError
	)
	doc.ForEach(func(_, value gjson.Result) bool {
		m, err := decodeMessage(value)
		if err != nil {
			derr = &DecodeError{Index: len(msgs), Err: err}
			return false
		}
		msgs = append(msgs, m)
		return true
	})
	if derr != nil {
		return nil, derr
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}
