package models

import "encoding/json"

// Schema is a resolved credential schema. Definition holds a JSON Schema
// document describing credentialSubject.
type Schema struct {
	ID         string          `json:"id"`
	Title      string          `json:"title,omitempty"`
	Definition json.RawMessage `json:"definition"`
}
