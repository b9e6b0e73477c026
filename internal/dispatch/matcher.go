package dispatch

import (
	"sort"

	"github.com/conduit-lang/waypoint/internal/route"
	"github.com/conduit-lang/waypoint/internal/table"
)

// Strategy selects how the routing table is compiled for lookup
type Strategy int

const (
	// StrategyTrie walks a segment-keyed tree
	StrategyTrie Strategy = iota
	// StrategyPattern matches one compiled pattern per route
	StrategyPattern
)

// String returns the string representation of Strategy
func (s Strategy) String() string {
	switch s {
	case StrategyTrie:
		return "trie"
	case StrategyPattern:
		return "pattern"
	default:
		return "unknown"
	}
}

// ParseStrategy parses a strategy name
func ParseStrategy(name string) (Strategy, bool) {
	switch name {
	case "", "trie":
		return StrategyTrie, true
	case "pattern":
		return StrategyPattern, true
	}
	return 0, false
}

// candidate is a route that structurally matches a request path
type candidate struct {
	index int
	entry *table.Entry
	path  route.Path
	vars  map[string]int
}

// matcher finds the candidates for a method and a decoded segment vector.
// Literal segments win over variables at every depth, but a branch whose
// routes all reject the segments by method or constraint yields to the
// next one. All strategies must return the same candidates.
type matcher interface {
	candidates(method string, segments []string) []*candidate
}

// accepts reports whether every constrained variable of the route accepts
// its segment
func (c *candidate) accepts(segments []string) bool {
	for _, i := range c.vars {
		if !c.path[i].Accepts(segments[i]) {
			return false
		}
	}
	return true
}

func newMatcher(s Strategy, entries []table.Entry) matcher {
	cands := make([]*candidate, len(entries))
	for i := range entries {
		cands[i] = &candidate{
			index: i,
			entry: &entries[i],
			path:  entries[i].Path,
			vars:  entries[i].Path.VarIndex(),
		}
	}
	if s == StrategyPattern {
		return newPatterns(cands)
	}
	return newTrie(cands)
}

func sortCandidates(c []*candidate) []*candidate {
	sort.Slice(c, func(i, j int) bool { return c[i].index < c[j].index })
	return c
}
