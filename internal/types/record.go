package types

import "time"

// RecordVersion is the current schema version of durable records.
const RecordVersion = 1

// Record is a named, versioned key/value snapshot kept by a record store.
type Record struct {
	Version int            `json:"version" bson:"version"`
	SavedAt time.Time      `json:"saved_at" bson:"saved_at"`
	Fields  map[string]any `json:"fields" bson:"fields"`
}

// NewRecord stamps fields with the current version and time.
func NewRecord(fields map[string]any) Record {
	return Record{
		Version: RecordVersion,
		SavedAt: time.Now().UTC(),
		Fields:  fields,
	}
}
