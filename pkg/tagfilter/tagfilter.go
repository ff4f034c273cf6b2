// Package tagfilter implements the four-mode tag filter algebra shared by
// every read path in the engine: the in-memory post-filter that is
// authoritative for every recall candidate, and the SQL predicate that
// ListEpisodes pushes into its query. The fulltext and temporal strategies
// do not apply the SQL predicate; their candidates are tag-filtered in
// memory during hydration.
package tagfilter

import (
	"fmt"
	"strings"
)

// Mode selects one of the four matching semantics.
type Mode string

const (
	// Any passes when the memory is untagged, or when its tags intersect
	// the filter. An empty filter passes everything.
	Any Mode = "any"
	// All passes when the memory is untagged, or when the filter is a
	// subset of its tags. An empty filter passes everything.
	All Mode = "all"
	// AnyStrict passes only tagged memories whose tags intersect the
	// filter; an empty filter never passes.
	AnyStrict Mode = "any_strict"
	// AllStrict passes only tagged memories that carry every filter tag;
	// an empty filter never passes.
	AllStrict Mode = "all_strict"
)

// IsValid reports whether m is one of the four recognized modes.
func (m Mode) IsValid() bool {
	switch m {
	case Any, All, AnyStrict, AllStrict:
		return true
	default:
		return false
	}
}

// Matches reports whether a memory's tags pass the filter under mode.
// tags corrupted upstream (malformed JSON) must already have been reduced
// to nil by the caller — this function does not itself parse JSON.
func Matches(tags []string, filter []string, mode Mode) bool {
	if len(filter) == 0 {
		switch mode {
		case Any, All:
			return true
		default:
			return false
		}
	}

	switch mode {
	case Any:
		if len(tags) == 0 {
			return true
		}
		return intersects(tags, filter)
	case All:
		if len(tags) == 0 {
			return true
		}
		return subsetOf(filter, tags)
	case AnyStrict:
		return len(tags) > 0 && intersects(tags, filter)
	case AllStrict:
		return len(tags) > 0 && subsetOf(filter, tags)
	default:
		return false
	}
}

func toSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}
	return set
}

func intersects(tags, filter []string) bool {
	set := toSet(tags)
	for _, f := range filter {
		if set[f] {
			return true
		}
	}
	return false
}

// subsetOf reports whether every element of filter is present in tags.
func subsetOf(filter, tags []string) bool {
	set := toSet(tags)
	for _, f := range filter {
		if !set[f] {
			return false
		}
	}
	return true
}

// SQLPredicate returns a WHERE-clause fragment (safe to AND into a larger
// query) and its positional args that narrow rows on tagsColumn — a JSON
// array column — to the same four-mode semantics, via SQLite's json_each
// table-valued function. This is a pre-filter only: it over-approximates
// in the strict modes' favor so that Matches, applied during hydration,
// remains authoritative.
func SQLPredicate(tagsColumn string, filter []string, mode Mode) (string, []any) {
	if len(filter) == 0 {
		switch mode {
		case Any, All:
			return "1=1", nil
		default:
			return "1=0", nil
		}
	}

	placeholders, args := inClause(filter)
	untagged := fmt.Sprintf("(%s IS NULL OR %s = '[]')", tagsColumn, tagsColumn)
	anyMatch := fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s) je WHERE je.value IN (%s))", tagsColumn, placeholders)
	allMatch := fmt.Sprintf("(SELECT COUNT(DISTINCT je.value) FROM json_each(%s) je WHERE je.value IN (%s)) = %d", tagsColumn, placeholders, len(filter))

	switch mode {
	case Any:
		return fmt.Sprintf("(%s OR %s)", untagged, anyMatch), args
	case AnyStrict:
		return fmt.Sprintf("(NOT %s AND %s)", untagged, anyMatch), args
	case All:
		return fmt.Sprintf("(%s OR %s)", untagged, allMatch), args
	case AllStrict:
		return fmt.Sprintf("(NOT %s AND %s)", untagged, allMatch), args
	default:
		return "1=0", nil
	}
}

func inClause(vals []string) (string, []any) {
	placeholders := strings.Repeat("?,", len(vals))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return placeholders, args
}
