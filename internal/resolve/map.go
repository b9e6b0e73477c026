package resolve

// Mode controls how a child Map combines with its parent
type Mode int

const (
	// Merge lets child entries shadow parent entries with the same key
	Merge Mode = iota
	// Replace discards every parent entry
	Replace
	// ReplaceFactories discards only the parent's factories
	ReplaceFactories
	// ReplaceDirect discards only the parent's direct resolvers
	ReplaceDirect
)

// String returns the string representation of Mode
func (m Mode) String() string {
	switch m {
	case Merge:
		return "merge"
	case Replace:
		return "replace"
	case ReplaceFactories:
		return "replace-factories"
	case ReplaceDirect:
		return "replace-direct"
	default:
		return "unknown"
	}
}

// Map holds direct resolvers keyed by parameter name and factories keyed
// by tag
type Map struct {
	Direct    map[string]Resolver
	Factories map[string]Factory
	Mode      Mode
}

// NewMap creates an empty Map
func NewMap() Map {
	return Map{
		Direct:    make(map[string]Resolver),
		Factories: make(map[string]Factory),
	}
}

// Merge combines m with child according to child.Mode. Neither input is
// modified. The result always uses Merge mode.
func (m Map) Merge(child Map) Map {
	out := NewMap()

	if child.Mode != Replace && child.Mode != ReplaceDirect {
		for k, r := range m.Direct {
			out.Direct[k] = r
		}
	}
	if child.Mode != Replace && child.Mode != ReplaceFactories {
		for k, f := range m.Factories {
			out.Factories[k] = f
		}
	}

	for k, r := range child.Direct {
		out.Direct[k] = r
	}
	for k, f := range child.Factories {
		out.Factories[k] = f
	}
	return out
}

// Clone returns a copy of m
func (m Map) Clone() Map {
	return NewMap().Merge(m)
}

// WithDirect returns a copy of m with an extra direct resolver
func (m Map) WithDirect(name string, r Resolver) Map {
	out := m.Clone()
	out.Mode = m.Mode
	out.Direct[name] = r
	return out
}

// WithFactory returns a copy of m with an extra factory
func (m Map) WithFactory(tag string, f Factory) Map {
	out := m.Clone()
	out.Mode = m.Mode
	out.Factories[tag] = f
	return out
}
