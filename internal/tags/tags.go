// Package tags decides which build steps run for a requested tag filter.
package tags

import (
	"slices"
	"strings"
)

// Exclude marks a requested tag as an exclusion, e.g. "!test"
const Exclude = "!"

// Select reports whether a step tagged stepTag runs under requested.
//
// An empty filter runs everything and a literal match always runs. If any
// requested entry is an exclusion the whole filter is read as an exclusion
// list, so plain entries next to an exclusion are ignored.
func Select(stepTag string, requested []string) bool {
	if len(requested) == 0 {
		return true
	}

	if slices.Contains(requested, stepTag) {
		return true
	}

	if !hasExclusion(requested) {
		return false
	}

	return !slices.Contains(requested, Exclude+stepTag)
}

func hasExclusion(requested []string) bool {
	for _, t := range requested {
		if strings.HasPrefix(t, Exclude) {
			return true
		}
	}

	return false
}
