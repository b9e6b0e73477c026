package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		s1, s2 string
		want   int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"widgets/show", "widgets/show", 0},
		{"widget/show", "widgets/show", 1},
		{"parts/index", "parts/indx", 1},
	}
	for _, tt := range tests {
		t.Run(tt.s1+"_"+tt.s2, func(t *testing.T) {
			assert.Equal(t, tt.want, LevenshteinDistance(tt.s1, tt.s2))
			assert.Equal(t, tt.want, LevenshteinDistance(tt.s2, tt.s1))
		})
	}
}

func TestFindSimilar(t *testing.T) {
	names := []string{"widgets/index", "widgets/show", "widgets/create", "parts/index", "system/status-v1"}

	tests := []struct {
		name   string
		target string
		limit  int
		want   []string
	}{
		{name: "missing plural", target: "widget/show", limit: 3, want: []string{"widgets/show"}},
		{name: "case insensitive", target: "Parts/Index", limit: 3, want: []string{"parts/index"}},
		{name: "closest first", target: "widgets/inde", limit: 3, want: []string{"widgets/index"}},
		{name: "nothing close", target: "gadgets/launch", limit: 3, want: []string{}},
		{name: "limit", target: "system/status-v2", limit: 1, want: []string{"system/status-v1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindSimilar(tt.target, names, tt.limit))
		})
	}
}
