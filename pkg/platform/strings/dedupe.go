// Package strings holds small normalization helpers shared by request
// parsing and services.
package strings

import (
	"strings"
)

// NormalizeAreas trims each area name and drops empties and duplicates.
// Order is preserved and comparison stays case-sensitive, because area
// matching during recipient resolution is exact.
//
//	NormalizeAreas([]string{" Engenharia ", "Qualidade", "Engenharia", ""})
//	// []string{"Engenharia", "Qualidade"}
func NormalizeAreas(values []string) []string {
	if values == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

// Dedupe removes repeated values, keeping the first occurrence.
func Dedupe[T comparable](values []T) []T {
	if len(values) == 0 {
		return values
	}
	seen := make(map[T]struct{}, len(values))
	result := make([]T, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// Contains reports whether values holds target exactly.
func Contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
