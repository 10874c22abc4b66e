// Package query holds the resolved shapes of an incoming search query.
package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SpecialtyField is the structured field that carries medical specialties.
const SpecialtyField = "medical_specialty"

// Query is resolved once at the planner boundary: either FreeText or Structured.
type Query interface {
	isQuery()
}

// FreeText is a query without any specialty term.
type FreeText struct {
	Text string
}

// Structured is a query with one or more normalized specialty terms.
type Structured struct {
	Specialties []string
}

func (FreeText) isQuery()   {}
func (Structured) isQuery() {}

// Outcome records which parser stage produced the specialty fields of a string query.
type Outcome int

const (
	// PlainText means neither stage matched; the string is free text.
	PlainText Outcome = iota
	// Parsed means the string decoded as a JSON object.
	Parsed
	// Fallback means the lenient pattern extracted the specialty field.
	Fallback
)

func (o Outcome) String() string {
	switch o {
	case Parsed:
		return "parsed"
	case Fallback:
		return "fallback"
	default:
		return "plain_text"
	}
}

// Render returns the caller's query as text: strings as-is, nil as empty,
// anything else as compact JSON.
func Render(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(raw); err != nil {
		return fmt.Sprint(raw)
	}
	return strings.TrimRight(buf.String(), "\n")
}
