package rum

// Version constants stamped on documents and stored rows.
const (
	// FormatVersion is the document schema version written in _dd.format_version.
	FormatVersion = 2

	// EngineVersion is the engine release.
	EngineVersion = "0.1.0"
)
