// Package models defines the client-side records kept in the local store:
// drafts of in-progress documents and write requests awaiting delivery.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrEmptyID = errors.New("id must not be empty")

// Draft is a locally cached, possibly incomplete document such as an invoice
// being edited offline.
type Draft struct {
	// ID is unique within the local store; saving the same ID overwrites.
	ID string

	// Payload is the document itself, kept as raw JSON.
	Payload json.RawMessage

	// UpdatedAt is the last local save time in UTC.
	UpdatedAt time.Time
}

// NewDraft marshals v into a Draft stamped with the current time.
func NewDraft[T any](id string, v T) (*Draft, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal draft payload: %w", err)
	}
	return &Draft{ID: id, Payload: b, UpdatedAt: time.Now().UTC()}, nil
}

// DecodeDraft unmarshals the draft payload into T.
func DecodeDraft[T any](d *Draft) (T, error) {
	var v T
	if err := json.Unmarshal(d.Payload, &v); err != nil {
		return v, fmt.Errorf("unmarshal draft %s: %w", d.ID, err)
	}
	return v, nil
}
