package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAreas(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil stays nil", input: nil, expected: nil},
		{name: "empty stays empty", input: []string{}, expected: []string{}},
		{name: "trims whitespace", input: []string{"  Engenharia ", "Qualidade"}, expected: []string{"Engenharia", "Qualidade"}},
		{name: "drops blanks", input: []string{"", "   ", "Obras"}, expected: []string{"Obras"}},
		{name: "dedupes preserving order", input: []string{"B", "A", "B"}, expected: []string{"B", "A"}},
		{name: "case is significant", input: []string{"engenharia", "Engenharia"}, expected: []string{"engenharia", "Engenharia"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeAreas(tt.input))
		})
	}
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []int{3, 1, 2}, Dedupe([]int{3, 1, 3, 2, 1}))
	assert.Empty(t, Dedupe([]string{}))
}

func TestContains(t *testing.T) {
	assert.True(t, Contains([]string{"Engenharia"}, "Engenharia"))
	assert.False(t, Contains([]string{"Engenharia"}, "engenharia"))
	assert.False(t, Contains(nil, "x"))
}
