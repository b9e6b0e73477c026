package errors

// Build error codes organized by pipeline phase
// B001-B004: Spec expansion and namespace loading
// B005-B009: Endpoint extraction and argument resolution
// B010-B019: Handler assembly and routing table

const (
	// Spec expansion (B001-B004)
	ErrMissingNamespace = "B001"
	ErrInvalidContext   = "B002"
	ErrNamespaceLoad    = "B003"
	ErrInvalidMetadata  = "B004"

	// Extraction and resolution (B005-B009)
	ErrInvalidRoute         = "B005"
	ErrUnresolvableArgument = "B006"
	ErrMissingAlias         = "B007"
	ErrConflictingTags      = "B008"
	ErrUnknownTag           = "B009"

	// Assembly and table (B010-B019)
	ErrInvalidSignature = "B010"
	ErrDuplicateRoute   = "B011"
	ErrFactoryFailed    = "B012"
)

// Phase names used in BuildError.Phase
const (
	PhaseExpand   = "expand"
	PhaseExtract  = "extract"
	PhaseResolve  = "resolve"
	PhaseAssemble = "assemble"
	PhaseTable    = "table"
)

var codeTitles = map[string]string{
	ErrMissingNamespace:     "missing namespace",
	ErrInvalidContext:       "invalid context",
	ErrNamespaceLoad:        "namespace failed to load",
	ErrInvalidMetadata:      "invalid metadata",
	ErrInvalidRoute:         "malformed route declaration",
	ErrUnresolvableArgument: "unresolvable argument",
	ErrMissingAlias:         "destructured argument without alias",
	ErrConflictingTags:      "conflicting resolver tags",
	ErrUnknownTag:           "unknown resolver tag",
	ErrInvalidSignature:     "invalid endpoint signature",
	ErrDuplicateRoute:       "duplicate route",
	ErrFactoryFailed:        "resolver factory failed",
}

// Title returns the short human-readable title of an error code
func Title(code string) string {
	if t, ok := codeTitles[code]; ok {
		return t
	}
	return "build error"
}
