package tracker

import "strings"

// Snapshot is an immutable view of the tracked-identifier
// allow-list. The sampling loop holds one snapshot at a time and
// swaps the whole value on refresh; it is never mutated in place.
type Snapshot struct {
	idents []string
}

// NewSnapshot builds a Snapshot from raw identifiers. Matching
// is case-insensitive, so identifiers are lowercased up front.
func NewSnapshot(idents []string) Snapshot {
	lowered := make([]string, 0, len(idents))
	for _, id := range idents {
		id = strings.ToLower(strings.TrimSpace(id))
		if id != "" {
			lowered = append(lowered, id)
		}
	}
	return Snapshot{idents: lowered}
}

// Tracks reports whether a window with the given app name and
// title should be reported. An empty allow-list tracks
// everything.
func (s Snapshot) Tracks(app, title string) bool {
	if len(s.idents) == 0 {
		return true
	}
	app = strings.ToLower(app)
	title = strings.ToLower(title)
	for _, id := range s.idents {
		if strings.Contains(app, id) || strings.Contains(title, id) {
			return true
		}
	}
	return false
}

// Len returns the number of identifiers in the snapshot.
func (s Snapshot) Len() int {
	return len(s.idents)
}
