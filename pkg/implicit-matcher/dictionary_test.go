package implicitmatcher

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalizeForMatchCollapsesAndLowercases(t *testing.T) {
	require.Equal(t, "monkey d. luffy", CanonicalizeForMatch("  Monkey   D.\tLuffy  "))
	require.Equal(t, "src/foo/bar.ts", CanonicalizeForMatch("Src/Foo/Bar.TS"))
	require.Equal(t, "o'brien", CanonicalizeForMatch("O’Brien"))
	require.Equal(t, "at&t", CanonicalizeForMatch("AT&T"))
}

func TestCanonicalizeForMatchIsIdempotent(t *testing.T) {
	s := "The Quick, Brown Fox!! jumps -- over"
	once := CanonicalizeForMatch(s)
	twice := CanonicalizeForMatch(once)
	require.Equal(t, once, twice)
}

func TestTokenizeWithOffsetsRoundTripsToOriginalText(t *testing.T) {
	text := "Alice met Bob at  the cafe."
	toks := TokenizeWithOffsets(text)
	require.NotEmpty(t, toks)
	for _, tok := range toks {
		require.Equal(t, CanonicalizeForMatch(text[tok.Start:tok.End]), tok.Text)
	}
}

func TestTokenizeNormSplitsOnSeparatorsNotJoiners(t *testing.T) {
	got := TokenizeNorm("Refactored src/db/pool.go and O'Brien's notes")
	require.Contains(t, got, "src/db/pool.go")
	require.Contains(t, got, "o'brien's")
}

func TestCompileAndLookupResolvesNameAndGenericAlias(t *testing.T) {
	dict, err := Compile([]RegisteredEntity{
		{ID: "e1", BankID: "bank1", Name: "Alice Johnson", EntityType: "person"},
	})
	require.NoError(t, err)

	matches := dict.Lookup("Alice Johnson")
	require.Len(t, matches, 1)
	require.Equal(t, "e1", matches[0].ID)

	aliasMatches := dict.Lookup("Johnson")
	require.Len(t, aliasMatches, 1)
	require.Equal(t, "e1", aliasMatches[0].ID)
}

func TestCompileMergesSharedSurfaceFormAcrossEntities(t *testing.T) {
	dict, err := Compile([]RegisteredEntity{
		{ID: "e1", BankID: "bank1", Name: "Alice Johnson", EntityType: "person"},
		{ID: "e2", BankID: "bank1", Name: "Bob Johnson", EntityType: "person"},
	})
	require.NoError(t, err)

	matches := dict.Lookup("Johnson")
	require.Len(t, matches, 2)
}

func TestIsKnownEntity(t *testing.T) {
	dict, err := Compile([]RegisteredEntity{{ID: "e1", BankID: "bank1", Name: "Rocket", EntityType: "thing"}})
	require.NoError(t, err)
	require.True(t, dict.IsKnownEntity("Rocket"))
	require.False(t, dict.IsKnownEntity("Spaceship"))
}

func TestScanFindsEntityMentionWithCorrectByteOffsets(t *testing.T) {
	dict, err := Compile([]RegisteredEntity{{ID: "e1", BankID: "bank1", Name: "Alice", EntityType: "person"}})
	require.NoError(t, err)

	text := "Yesterday Alice reviewed the document."
	matches := dict.Scan(text)
	require.Len(t, matches, 1)
	require.Equal(t, "Alice", text[matches[0].Start:matches[0].End])
}

func TestScanWithInfoResolvesEntitiesForEachHit(t *testing.T) {
	dict, err := Compile([]RegisteredEntity{{ID: "e1", BankID: "bank1", Name: "Alice", EntityType: "person"}})
	require.NoError(t, err)

	hits := dict.ScanWithInfo("Alice met Alice again")
	require.Len(t, hits, 2)
	for _, h := range hits {
		require.Len(t, h.Entities, 1)
		require.Equal(t, "e1", h.Entities[0].ID)
	}
}

func TestScanOnEmptyDictionaryReturnsNil(t *testing.T) {
	dict := NewRuntimeDictionary()
	require.Nil(t, dict.Scan("anything at all"))
	require.Nil(t, dict.Lookup("anything"))
}

func TestGenericAliasesSkipsShortOrSingleTokenNames(t *testing.T) {
	require.Nil(t, genericAliases("Bob"))
	require.Empty(t, genericAliases("Al Oz"))
}

func TestGenericAliasesKeepsLongLeadingAndTrailingTokens(t *testing.T) {
	aliases := genericAliases("Monkey D Luffy")
	require.Contains(t, aliases, "luffy")
	require.Contains(t, aliases, "monkey")
}
