// Package implicitmatcher provides a runtime dictionary backed by a single
// Aho-Corasick automaton that serves two purposes: exact lookup of a known
// entity by surface form, and O(n) word-bounded scanning of a text for
// every entity mention inside it. The graph retrieval strategy uses the
// scanning half to resolve query text into seed entity IDs.
package implicitmatcher

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/coregx/ahocorasick"
)

// ============================================================================
// Unified canonicalizer — used for BOTH pattern compilation and scanning
// ============================================================================

// isJoiner returns true for punctuation that commonly appears INSIDE names
// and module tokens, and must be preserved to keep them matchable as one
// unit. Examples: "Monkey D. Luffy", "O'Brien", "src/foo/bar.ts", "AT&T".
func isJoiner(r rune) bool {
	switch r {
	case '\'', '’', '‘',
		'-', '–', '—',
		'·', '.', '_', '/', '#', '&':
		return true
	default:
		return false
	}
}

// isSeparator reports whether r splits tokens: anything that's not a
// letter, digit, or joiner.
func isSeparator(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || isJoiner(r) {
		return false
	}
	return true
}

// CanonicalizeForMatch transforms text into the normalized form used for
// BOTH pattern compilation and document scanning: fold to lowercase,
// preserve letters/digits/joiners, collapse every run of separators to a
// single space, and trim. This is what lets multiword patterns like
// "Monkey D. Luffy" or "src/foo/bar.ts" match as a whole.
func CanonicalizeForMatch(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	lastWasSpace := true
	for _, ch := range s {
		c := unicode.ToLower(ch)
		if c == '’' || c == '‘' {
			c = '\''
		}
		if c == '–' || c == '—' {
			c = '-'
		}

		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			out.WriteRune(c)
			lastWasSpace = false
		} else if !lastWasSpace {
			out.WriteRune(' ')
			lastWasSpace = true
		}
	}

	result := out.String()
	if len(result) > 0 && result[len(result)-1] == ' ' {
		result = result[:len(result)-1]
	}
	return result
}

// ============================================================================
// Tokens with offsets — for mapping scan hits back to byte spans
// ============================================================================

// Tok is a token with its byte span in the original (uncanonicalized) text.
type Tok struct {
	Text  string
	Start int
	End   int
}

// TokenizeWithOffsets splits s into tokens on the same separator rule as
// CanonicalizeForMatch, while preserving byte offsets into the original
// string — used by the location-signal detector to anchor candidate module
// tokens.
func TokenizeWithOffsets(s string) []Tok {
	out := make([]Tok, 0, 64)

	i := 0
	for i < len(s) {
		for i < len(s) {
			r, w := utf8.DecodeRuneInString(s[i:])
			if !isSeparator(r) {
				break
			}
			i += w
		}
		start := i

		for i < len(s) {
			r, w := utf8.DecodeRuneInString(s[i:])
			if isSeparator(r) {
				break
			}
			i += w
		}
		end := i

		if start < end {
			out = append(out, Tok{Text: CanonicalizeForMatch(s[start:end]), Start: start, End: end})
		}
	}
	return out
}

// TokenizeNorm splits and canonicalizes text into a flat token slice, with
// no stopword filtering — callers that need stopwords filtered out (the
// fulltext query tokenizer and the location-signal detector) do so with
// github.com/orsinium-labs/stopwords themselves, since it is a more
// complete English stopword list than anything worth hand-rolling here.
func TokenizeNorm(text string) []string {
	normalized := CanonicalizeForMatch(text)
	return strings.Fields(normalized)
}

// ============================================================================
// Entity dictionary — dual-purpose Aho-Corasick
// ============================================================================

// EntityInfo is the resolved payload behind a dictionary pattern: which
// bank entity a surface form refers to.
type EntityInfo struct {
	ID         string
	BankID     string
	Name       string
	EntityType string
}

// RegisteredEntity is one dictionary compilation input.
type RegisteredEntity struct {
	ID         string
	BankID     string
	Name       string
	Aliases    []string
	EntityType string
}

// RuntimeDictionary indexes a set of entities for both exact lookup and
// O(n) scanning of free text via a single Aho-Corasick automaton built over
// every surface form (canonical name plus aliases).
type RuntimeDictionary struct {
	ac *ahocorasick.Automaton

	patternToIDs [][]string
	patternIndex map[string]int
	idToInfo     map[string]*EntityInfo
	patterns     []string
}

// NewRuntimeDictionary returns an empty dictionary; Compile is the usual
// entry point.
func NewRuntimeDictionary() *RuntimeDictionary {
	return &RuntimeDictionary{
		patternIndex: make(map[string]int),
		idToInfo:     make(map[string]*EntityInfo),
	}
}

// Compile builds a RuntimeDictionary from a bank's entities, generating a
// small set of generic aliases (trailing/leading token of a multiword name)
// in addition to any caller-supplied aliases.
func Compile(entities []RegisteredEntity) (*RuntimeDictionary, error) {
	dict := NewRuntimeDictionary()

	for _, e := range entities {
		dict.idToInfo[e.ID] = &EntityInfo{ID: e.ID, BankID: e.BankID, Name: e.Name, EntityType: e.EntityType}

		surfaces := append([]string{e.Name}, e.Aliases...)
		surfaces = append(surfaces, genericAliases(e.Name)...)

		for _, surface := range surfaces {
			key := CanonicalizeForMatch(surface)
			if key == "" {
				continue
			}
			if idx, exists := dict.patternIndex[key]; exists {
				dict.patternToIDs[idx] = appendUnique(dict.patternToIDs[idx], e.ID)
				continue
			}
			idx := len(dict.patterns)
			dict.patterns = append(dict.patterns, key)
			dict.patternIndex[key] = idx
			dict.patternToIDs = append(dict.patternToIDs, []string{e.ID})
		}
	}

	automaton, err := ahocorasick.NewBuilder().
		AddStrings(dict.patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, err
	}
	dict.ac = automaton
	return dict, nil
}

// genericAliases derives a small number of domain-agnostic alternate
// surface forms for a multiword entity name: the trailing token (a common
// short reference, e.g. a person's surname or a place's head noun) and,
// for three-or-more-word names, the leading token.
func genericAliases(name string) []string {
	tokens := TokenizeNorm(name)
	if len(tokens) <= 1 {
		return nil
	}
	first, last := tokens[0], tokens[len(tokens)-1]
	var out []string
	if len(last) >= 3 {
		out = append(out, last)
	}
	if len(tokens) >= 3 && first != last && len(first) >= 4 {
		out = append(out, first)
	}
	return out
}

// Lookup resolves a surface form to the entities registered under it.
func (d *RuntimeDictionary) Lookup(surface string) []*EntityInfo {
	if d.ac == nil {
		return nil
	}
	key := CanonicalizeForMatch(surface)
	idx, exists := d.patternIndex[key]
	if !exists {
		return nil
	}
	ids := d.patternToIDs[idx]
	result := make([]*EntityInfo, 0, len(ids))
	for _, id := range ids {
		if info, ok := d.idToInfo[id]; ok {
			result = append(result, info)
		}
	}
	return result
}

// IsKnownEntity reports whether token matches any registered surface form.
func (d *RuntimeDictionary) IsKnownEntity(token string) bool {
	_, exists := d.patternIndex[CanonicalizeForMatch(token)]
	return exists
}

// GetInfo retrieves entity info by ID.
func (d *RuntimeDictionary) GetInfo(id string) *EntityInfo {
	return d.idToInfo[id]
}

// Match is one detected entity mention, with byte offsets into the
// original (uncanonicalized) text.
type Match struct {
	Start       int
	End         int
	MatchedText string
	PatternIdx  int
}

// Scan finds every word-bounded entity mention in text in O(n) via the
// automaton — the seed-resolution primitive for graph retrieval.
func (d *RuntimeDictionary) Scan(text string) []Match {
	if d.ac == nil {
		return nil
	}

	canonicalized := CanonicalizeForMatch(text)
	haystack := []byte(canonicalized)
	canonToOrig := buildOffsetMap(text)

	matches := d.ac.FindAllOverlapping(haystack)
	result := make([]Match, 0, len(matches))
	for _, m := range matches {
		if before, _ := utf8.DecodeLastRuneInString(canonicalized[:m.Start]); m.Start > 0 && (unicode.IsLetter(before) || unicode.IsDigit(before)) {
			continue // hit starts inside a longer word
		}
		if after, _ := utf8.DecodeRuneInString(canonicalized[m.End:]); m.End < len(canonicalized) && (unicode.IsLetter(after) || unicode.IsDigit(after)) {
			continue // hit ends inside a longer word
		}
		origStart := mapOffset(m.Start, canonToOrig, len(text))
		origEnd := mapOffset(m.End, canonToOrig, len(text))
		if origStart >= len(text) || origEnd > len(text) || origStart >= origEnd {
			continue
		}
		result = append(result, Match{
			Start:       origStart,
			End:         origEnd,
			MatchedText: text[origStart:origEnd],
			PatternIdx:  m.Pattern,
		})
	}
	return result
}

// EntityMatch pairs a scan hit with the entities it resolves to.
type EntityMatch struct {
	Match
	Entities []*EntityInfo
}

// ScanWithInfo scans text and resolves each hit to its backing entities.
func (d *RuntimeDictionary) ScanWithInfo(text string) []EntityMatch {
	matches := d.Scan(text)
	result := make([]EntityMatch, 0, len(matches))
	for _, m := range matches {
		ids := d.patternToIDs[m.PatternIdx]
		entities := make([]*EntityInfo, 0, len(ids))
		for _, id := range ids {
			if info := d.idToInfo[id]; info != nil {
				entities = append(entities, info)
			}
		}
		result = append(result, EntityMatch{Match: m, Entities: entities})
	}
	return result
}

// buildOffsetMap maps each byte position of the canonicalized form of
// original back to a byte position in original, so Scan's automaton hits
// (found in canonicalized space) can be reported against the input text.
func buildOffsetMap(original string) []int {
	mapping := make([]int, 0, len(original)+1)

	lastWasSpace := true
	origPos := 0
	for _, ch := range original {
		runeLen := utf8.RuneLen(ch)
		c := unicode.ToLower(ch)
		if c == '’' || c == '‘' {
			c = '\''
		}
		if c == '–' || c == '—' {
			c = '-'
		}

		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			for k := utf8.RuneLen(c); k > 0; k-- {
				mapping = append(mapping, origPos)
			}
		} else if !lastWasSpace {
			mapping = append(mapping, origPos)
			lastWasSpace = true
			origPos += runeLen
			continue
		} else {
			origPos += runeLen
			continue
		}
		lastWasSpace = false
		origPos += runeLen
	}
	mapping = append(mapping, origPos)
	return mapping
}

func mapOffset(canonOffset int, mapping []int, originalLen int) int {
	if canonOffset >= len(mapping) {
		return originalLen
	}
	if canonOffset < 0 {
		return 0
	}
	return mapping[canonOffset]
}

func appendUnique(slice []string, item string) []string {
	for _, s := range slice {
		if s == item {
			return slice
		}
	}
	return append(slice, item)
}
