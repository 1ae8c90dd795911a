package adapter

// Dialect is the inferred relay client family. It is per-connection
// state, set at most once, and never re-evaluated.
type Dialect int

const (
	// DialectUnknown serves neutral defaults until inference runs.
	DialectUnknown Dialect = iota

	// DialectCompanion is the native-app family: it keeps a local
	// history store, requests bulk all-buffers history through the
	// own-lines path, wants small integer line identifiers, and must
	// never receive proactively pushed history.
	DialectCompanion

	// DialectBrowser is the stateless web family: per-buffer history
	// through the generic lines path, opaque pointer line identity,
	// and proactive history push on per-buffer sync.
	DialectBrowser
)

func (d Dialect) String() string {
	switch d {
	case DialectCompanion:
		return "companion"
	case DialectBrowser:
		return "browser"
	}
	return "unknown"
}

// inferDialect classifies a connection from the shape of its first
// bulk-history request. The bulk all-buffers form is the companion
// marker; the generic lines path is the browser marker. A
// single-buffer own-lines request is classified by its field list: an
// explicit "id" field marks a companion client.
func inferDialect(req hdataRequest) Dialect {
	switch req.kind {
	case reqHistoryAll:
		return DialectCompanion
	case reqHistoryOne:
		if req.linesPath {
			return DialectBrowser
		}
		for _, k := range req.keys {
			if k == "id" {
				return DialectCompanion
			}
		}
		return DialectBrowser
	}
	return DialectUnknown
}
