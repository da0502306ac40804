package ir

// Version constants stamped into persisted records.
const (
	// IRVersion is the JSON IR schema version.
	IRVersion = "1"

	// EngineVersion is the runtime version.
	EngineVersion = "0.1.0"
)
