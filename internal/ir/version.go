package ir

// Version constants for stored records and the search engine.
const (
	// SchemaVersion is the version of the stored run record layout.
	SchemaVersion = "1"

	// EngineVersion is the flagsearch engine version.
	EngineVersion = "0.1.0"
)
