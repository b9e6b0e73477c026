package dispatch

import (
	"github.com/conduit-lang/waypoint/internal/route"
)

// node is one level of the dispatch trie. It is never modified after
// newTrie returns.
type node struct {
	literals map[string]*node
	variable *node
	leaves   map[string][]*candidate
}

func newNode() *node {
	return &node{literals: make(map[string]*node)}
}

type trie struct {
	root *node
}

func newTrie(cands []*candidate) *trie {
	t := &trie{root: newNode()}
	for _, c := range cands {
		t.insert(c)
	}
	return t
}

func (t *trie) insert(c *candidate) {
	n := t.root
	for _, term := range c.path {
		if term.IsVar() {
			if n.variable == nil {
				n.variable = newNode()
			}
			n = n.variable
			continue
		}
		child, ok := n.literals[term.Value]
		if !ok {
			child = newNode()
			n.literals[term.Value] = child
		}
		n = child
	}
	if n.leaves == nil {
		n.leaves = make(map[string][]*candidate)
	}
	n.leaves[c.entry.Method] = append(n.leaves[c.entry.Method], c)
}

func (t *trie) candidates(method string, segments []string) []*candidate {
	return find(t.root, segments, 0, method)
}

// find walks literal children first and falls back to the variable child
// when the literal branch holds no route for the method whose constraints
// accept the segments
func find(n *node, segments []string, depth int, method string) []*candidate {
	if depth == len(segments) {
		return leafCandidates(n, method, segments)
	}
	if child, ok := n.literals[segments[depth]]; ok {
		if c := find(child, segments, depth+1, method); len(c) > 0 {
			return c
		}
	}
	if n.variable != nil {
		return find(n.variable, segments, depth+1, method)
	}
	return nil
}

func leafCandidates(n *node, method string, segments []string) []*candidate {
	if n.leaves == nil {
		return nil
	}
	var out []*candidate
	add := func(cands []*candidate) {
		for _, c := range cands {
			if c.accepts(segments) {
				out = append(out, c)
			}
		}
	}
	add(n.leaves[method])
	if method != route.MethodAll {
		add(n.leaves[route.MethodAll])
	}
	if len(out) == 0 {
		return nil
	}
	return sortCandidates(out)
}
