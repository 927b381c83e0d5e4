package ir

// Version constants for the export schema and engine.
const (
	// SchemaVersion is the run export schema version understood by this build.
	SchemaVersion = "1"

	// EngineVersion is the tracesync engine version.
	EngineVersion = "0.1.0"
)
