package table

import (
	"strings"

	berrors "github.com/conduit-lang/waypoint/internal/errors"
	"github.com/conduit-lang/waypoint/internal/route"
)

// checkDuplicates rejects entries that share a method and path shape unless
// every one of them carries a match predicate. A MethodAll entry collides
// with every method.
func checkDuplicates(entries []Entry) error {
	byShape := make(map[string][]int)
	var shapes []string
	for i, e := range entries {
		shape := e.Path.Shape()
		if _, seen := byShape[shape]; !seen {
			shapes = append(shapes, shape)
		}
		byShape[shape] = append(byShape[shape], i)
	}

	var errs berrors.List
	for _, shape := range shapes {
		group := byShape[shape]
		if len(group) < 2 {
			continue
		}
		for _, i := range group {
			e := entries[i]
			if e.Match != nil {
				continue
			}
			var others []string
			for _, j := range group {
				if i == j || !methodsCollide(e.Method, entries[j].Method) {
					continue
				}
				others = append(others, entries[j].Name())
			}
			if len(others) == 0 {
				continue
			}
			errs.Add(berrors.Newf(berrors.PhaseTable, berrors.ErrDuplicateRoute,
				"%s %s collides with %s and has no match predicate",
				e.Method, e.Path, strings.Join(others, ", ")).
				WithNamespace(e.Namespace).WithFunction(e.Function))
		}
	}
	return errs.Err()
}

func methodsCollide(a, b string) bool {
	return a == b || a == route.MethodAll || b == route.MethodAll
}
