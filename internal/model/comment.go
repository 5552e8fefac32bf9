package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Comment is either a plain string or a structured object carrying text.
type Comment interface {
	CommentText() string
}

type PlainComment string

func (c PlainComment) CommentText() string { return string(c) }

type StructuredComment struct {
	Text   string `json:"texto"`
	Author string `json:"autor,omitempty"`
}

func (c StructuredComment) CommentText() string { return c.Text }

// Comments decodes the booking API's loosely typed comment field: a single
// string, a single object, or an array mixing both.
type Comments []Comment

func (cs *Comments) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*cs = nil
		return nil
	}

	if data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("comments: %w", err)
		}
		out := make(Comments, 0, len(raw))
		for _, r := range raw {
			c, err := decodeComment(r)
			if err != nil {
				return err
			}
			if c != nil {
				out = append(out, c)
			}
		}
		*cs = out
		return nil
	}

	c, err := decodeComment(data)
	if err != nil {
		return err
	}
	if c == nil {
		*cs = nil
		return nil
	}
	*cs = Comments{c}
	return nil
}

func (cs Comments) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, len(cs))
	for _, c := range cs {
		switch v := c.(type) {
		case StructuredComment:
			out = append(out, v)
		default:
			out = append(out, c.CommentText())
		}
	}
	return json.Marshal(out)
}

// Normalize flattens the comments into their texts, dropping blank ones.
func (cs Comments) Normalize() []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		t := strings.TrimSpace(c.CommentText())
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

func decodeComment(data json.RawMessage) (Comment, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("comment: %w", err)
		}
		return PlainComment(s), nil
	case '{':
		var obj struct {
			Texto  string `json:"texto"`
			Text   string `json:"text"`
			Autor  string `json:"autor"`
			Author string `json:"author"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("comment: %w", err)
		}
		sc := StructuredComment{Text: obj.Texto, Author: obj.Autor}
		if sc.Text == "" {
			sc.Text = obj.Text
		}
		if sc.Author == "" {
			sc.Author = obj.Author
		}
		return sc, nil
	default:
		// numbers, booleans and nested arrays are kept as their literal text
		return PlainComment(string(data)), nil
	}
}
