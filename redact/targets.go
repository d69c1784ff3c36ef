package redact

import (
	"errors"
	"slices"
	"strings"
	"unicode/utf8"
)

// ErrNoTargets is returned when a target set would be empty.
var ErrNoTargets = errors.New("target set is empty")

// Targets is an immutable set of strings to erase. MaxLen, the length in
// characters of the longest member, bounds which runs may be blanked.
type Targets struct {
	items  []string
	maxLen int
}

// NewTargets builds a target set. Empty strings are ignored because they
// would match every run.
func NewTargets(items ...string) (Targets, error) {
	seen := make(map[string]bool, len(items))
	var t Targets
	for _, s := range items {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		t.items = append(t.items, s)
		if n := utf8.RuneCountInString(s); n > t.maxLen {
			t.maxLen = n
		}
	}
	if len(t.items) == 0 {
		return Targets{}, ErrNoTargets
	}
	slices.Sort(t.items)
	return t, nil
}

func (t Targets) MaxLen() int { return t.maxLen }
func (t Targets) Len() int    { return len(t.items) }

// Items returns the members in sorted order.
func (t Targets) Items() []string { return slices.Clone(t.items) }

// Match reports whether text contains any member and is no longer than
// MaxLen characters.
func (t Targets) Match(text string) bool {
	if utf8.RuneCountInString(text) > t.maxLen {
		return false
	}
	for _, s := range t.items {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}
