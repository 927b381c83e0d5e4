package engine

import "github.com/google/uuid"

// SessionIDGenerator names a playback session. The ID is attached to every
// log line the controller writes.
type SessionIDGenerator interface {
	Generate() string
}

// UUIDv7Generator is the default generator. UUIDv7 IDs sort by creation
// time, so sessions line up in merged logs.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7. It panics only if the system
// random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
