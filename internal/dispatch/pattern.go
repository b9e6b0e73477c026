package dispatch

import (
	"github.com/conduit-lang/waypoint/internal/route"
)

// pattern is a route compiled for direct comparison against a segment
// vector. rank orders patterns the way the trie explores them: literal
// before variable, position by position.
type pattern struct {
	cand     *candidate
	method   string
	literals []string
	isVar    []bool
	rank     string
}

// patterns matches each route independently, grouped by segment count
type patterns struct {
	byLength map[int][]*pattern
}

func newPatterns(cands []*candidate) *patterns {
	p := &patterns{byLength: make(map[int][]*pattern)}
	for _, c := range cands {
		n := len(c.path)
		pat := &pattern{
			cand:     c,
			method:   c.entry.Method,
			literals: make([]string, n),
			isVar:    make([]bool, n),
		}
		rank := make([]byte, n)
		for i, term := range c.path {
			if term.IsVar() {
				pat.isVar[i] = true
				rank[i] = '1'
			} else {
				pat.literals[i] = term.Value
				rank[i] = '0'
			}
		}
		pat.rank = string(rank)
		p.byLength[n] = append(p.byLength[n], pat)
	}
	return p
}

func (p *patterns) candidates(method string, segments []string) []*candidate {
	var (
		best     []*candidate
		bestRank string
	)
	for _, pat := range p.byLength[len(segments)] {
		if pat.method != method && pat.method != route.MethodAll {
			continue
		}
		if !pat.matches(segments) || !pat.cand.accepts(segments) {
			continue
		}
		switch {
		case best == nil || pat.rank < bestRank:
			best = []*candidate{pat.cand}
			bestRank = pat.rank
		case pat.rank == bestRank:
			best = append(best, pat.cand)
		}
	}
	if best == nil {
		return nil
	}
	return sortCandidates(best)
}

func (pat *pattern) matches(segments []string) bool {
	for i, seg := range segments {
		if !pat.isVar[i] && pat.literals[i] != seg {
			return false
		}
	}
	return true
}
