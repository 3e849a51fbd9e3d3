// Package delta interprets document content blobs and applies edit
// operations to them. Nothing outside this package looks inside a blob.
//
// Content is stored in Quill delta form, e.g. {"ops":[{"insert":"Hello"}]}.
// Edit operations use the matching wire shape: {"retain":5}, {"insert":"x"},
// {"delete":3}, applied left to right with a shared cursor. Text after the
// last operation is retained implicitly.
package delta

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Op is one wire operation. Exactly one field must be set.
type Op struct {
	Retain *int    `json:"retain,omitempty"`
	Insert *string `json:"insert,omitempty"`
	Delete *int    `json:"delete,omitempty"`
}

type contentDelta struct {
	Ops []contentOp `json:"ops"`
}

type contentOp struct {
	Insert string `json:"insert"`
}

// Empty is the content of a freshly created document.
func Empty() json.RawMessage {
	return json.RawMessage(`{"ops":[]}`)
}

// Codec applies operation batches to content blobs. It is stateless; the
// document store holds one and never touches content any other way.
type Codec struct{}

// Apply runs ops over content in order and returns the new content.
// Any failure aborts the whole batch; the input is never modified in place.
func (Codec) Apply(content json.RawMessage, ops []json.RawMessage) (json.RawMessage, error) {
	text, err := Text(content)
	if err != nil {
		return nil, err
	}

	doc := []rune(text)
	cursor := 0

	for i, raw := range ops {
		op, err := parseOp(raw)
		if err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}

		switch {
		case op.Retain != nil:
			// Compared against the remaining length so an arbitrarily
			// large count cannot overflow cursor+retain.
			if *op.Retain > len(doc)-cursor {
				return nil, fmt.Errorf("op %d: retain of %d exceeds document length %d", i, *op.Retain, len(doc))
			}
			cursor += *op.Retain

		case op.Insert != nil:
			ins := []rune(*op.Insert)
			doc = append(doc[:cursor], append(ins, doc[cursor:]...)...)
			cursor += len(ins)

		case op.Delete != nil:
			if *op.Delete > len(doc)-cursor {
				return nil, fmt.Errorf("op %d: delete of %d exceeds document length %d", i, *op.Delete, len(doc))
			}
			doc = append(doc[:cursor], doc[cursor+*op.Delete:]...)
		}
	}

	return marshalText(string(doc))
}

// Text extracts the plain text of a content blob.
func Text(content json.RawMessage) (string, error) {
	var d contentDelta
	if err := json.Unmarshal(content, &d); err != nil {
		return "", fmt.Errorf("malformed content: %w", err)
	}
	var sb strings.Builder
	for _, op := range d.Ops {
		sb.WriteString(op.Insert)
	}
	return sb.String(), nil
}

func marshalText(text string) (json.RawMessage, error) {
	d := contentDelta{Ops: []contentOp{}}
	if text != "" {
		d.Ops = append(d.Ops, contentOp{Insert: text})
	}
	return json.Marshal(d)
}

func parseOp(raw json.RawMessage) (Op, error) {
	var op Op
	if err := json.Unmarshal(raw, &op); err != nil {
		return Op{}, fmt.Errorf("malformed operation: %w", err)
	}

	set := 0
	if op.Retain != nil {
		set++
	}
	if op.Insert != nil {
		set++
	}
	if op.Delete != nil {
		set++
	}
	if set != 1 {
		return Op{}, fmt.Errorf("operation must set exactly one of retain/insert/delete")
	}
	if op.Retain != nil && *op.Retain <= 0 {
		return Op{}, fmt.Errorf("retain must be positive, got %d", *op.Retain)
	}
	if op.Delete != nil && *op.Delete <= 0 {
		return Op{}, fmt.Errorf("delete must be positive, got %d", *op.Delete)
	}
	return op, nil
}
