package ui

import (
	"sort"
	"strings"
)

// DefaultMaxDistance is the largest edit distance FindSimilar reports
const DefaultMaxDistance = 3

// FindSimilar returns up to limit candidates within DefaultMaxDistance of
// target, closest first. Matching ignores case. Route names such as
// "widgets/show" make good candidates:
//
//	FindSimilar("widget/show", names, 3) // ["widgets/show"]
func FindSimilar(target string, candidates []string, limit int) []string {
	type match struct {
		value    string
		distance int
	}

	target = strings.ToLower(target)
	var matches []match
	for _, c := range candidates {
		if d := LevenshteinDistance(target, strings.ToLower(c)); d <= DefaultMaxDistance {
			matches = append(matches, match{value: c, distance: d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	out := make([]string, 0, limit)
	for i := 0; i < len(matches) && i < limit; i++ {
		out = append(out, matches[i].value)
	}
	return out
}

// LevenshteinDistance is the minimum number of single-byte insertions,
// deletions or substitutions turning s1 into s2
func LevenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(s2)]
}
