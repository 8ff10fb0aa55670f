package form

import (
	"strings"

	"carlog/internal/types"
)

// pickOption chooses a dropdown option for a source value. An exact match
// (trimmed, case-insensitive) wins; otherwise the first option containing
// the value; otherwise the first option. Returns -1 when the dropdown has
// no options at all.
func pickOption(options []string, value string) int {
	if len(options) == 0 {
		return -1
	}

	want := types.Normalize(value)
	partial := -1
	for i, opt := range options {
		got := types.Normalize(opt)
		if got == want {
			return i
		}
		if partial < 0 && want != "" && strings.Contains(got, want) {
			partial = i
		}
	}
	if partial >= 0 {
		return partial
	}
	return 0
}
