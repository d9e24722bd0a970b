package stage

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Known values of the upstream "type" discriminator. Anything else is left on the
// payload verbatim and classified as unrecognized downstream.
const (
	TypeSQL       = "sql"
	TypeFrame     = "df"
	TypeFigure    = "plotly_figure"
	TypeError     = "error"
	TypeText      = "text"
	TypeQuestions = "question_list"
)

// Payload is the normalized form of one stage response. String-encoded nested
// payloads (row data, figure specs) are decoded here so nothing past the executor
// branches on encoding.
type Payload struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`

	// TypeSQL and TypeText
	Text string `json:"text,omitempty"`

	// TypeFrame; Columns preserves the key order of the first row
	Columns []string         `json:"columns,omitempty"`
	Rows    []map[string]any `json:"rows,omitempty"`

	// TypeFigure; opaque spec handed to the charting collaborator
	Fig json.RawMessage `json:"fig,omitempty"`

	// TypeError
	Error string `json:"error,omitempty"`

	// TypeQuestions
	Header    string   `json:"header,omitempty"`
	Questions []string `json:"questions,omitempty"`
}

// TextPayload wraps a locally produced plain-text message.
func TextPayload(text string) Payload {
	return Payload{Type: TypeText, Text: text}
}

// ErrorPayload wraps a user-safe error message.
func ErrorPayload(message string) Payload {
	return Payload{Type: TypeError, Error: message}
}

// rawResponse mirrors the upstream wire shape before normalization.
type rawResponse struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	Error     string          `json:"error"`
	DF        json.RawMessage `json:"df"`
	Data      json.RawMessage `json:"data"`
	Fig       json.RawMessage `json:"fig"`
	Header    string          `json:"header"`
	Questions []string        `json:"questions"`
}

// decodeFrame parses a row-mapping sequence that may arrive either as a JSON
// array or as a JSON-encoded string of one. Column order follows the first
// row's key order.
func decodeFrame(raw json.RawMessage) ([]string, []map[string]any, error) {
	raw = unquote(raw)
	if len(raw) == 0 {
		return nil, nil, nil
	}

	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, nil, fmt.Errorf("row data is not a record sequence: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, nil, err
	}
	cols, err := objectKeys(elems[0])
	if err != nil {
		return nil, nil, err
	}
	return cols, rows, nil
}

// objectKeys walks one JSON object and returns its keys in encounter order,
// which encoding/json maps cannot preserve.
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("row is not an object")
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v in row object", tok)
		}
		keys = append(keys, key)
		var skip any
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// unquote unwraps a JSON-encoded string into the JSON it contains, leaving any
// other value untouched.
func unquote(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || raw[0] != '"' {
		return raw
	}
	var inner string
	if err := json.Unmarshal(raw, &inner); err != nil {
		return raw
	}
	return json.RawMessage(inner)
}
