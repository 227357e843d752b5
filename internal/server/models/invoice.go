// Package models holds the server-side domain types.
package models

import (
	"encoding/json"
	"time"
)

// Invoice is a tenant's invoice. Document is the client's JSON verbatim,
// with "id" set to ID.
type Invoice struct {
	ID        string
	UserID    string
	Document  json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}
