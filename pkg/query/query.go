// Package query provides indexed reads over the projection tables. Readers
// are stateless; results are eventually consistent relative to the event
// log and scoped by instance.
package query

import (
	"database/sql"
	"encoding/json"
)

// Queries bundles all read-model lookups over the shared database.
type Queries struct {
	db *sql.DB
}

// New creates the query layer over the projection tables.
func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// decodeStrings decodes a TEXT column holding a JSON string list.
func decodeStrings(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	return values
}
