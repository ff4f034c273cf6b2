package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kittclouds/gokitt/internal/store"
)

// ErrUnknownFactType is returned when a fact in the batch carries a
// fact_type outside {experience, world, opinion, observation}. This is an
// invariant violation, not a recoverable parse hiccup: the caller rejects
// the whole batch rather than silently dropping the offending fact.
var ErrUnknownFactType = errors.New("extraction: unknown fact_type")

// ErrUnknownLinkType is returned when a within-batch link carries a
// link_type outside the recognized set.
var ErrUnknownLinkType = errors.New("extraction: unknown link_type")

// ErrBackwardCausalLink is returned when a caused_by link's target_index
// does not precede its source_index within the batch: causal edges are
// backward-looking only at extraction time.
var ErrBackwardCausalLink = errors.New("extraction: caused_by target must precede source within a batch")

// ParseBatch parses an extractor's raw JSON response into a validated
// ExtractionBatch. Handles markdown code fences and regex-based repair of
// malformed JSON, but REJECTS unknown fact_type and link_type values
// rather than skipping them — the tagged-union contract is load-bearing
// for Retain, so a fact this package can't classify must fail loudly.
func ParseBatch(raw string) (*ExtractionBatch, error) {
	cleaned := stripCodeFence(strings.TrimSpace(raw))
	if cleaned == "" {
		return &ExtractionBatch{}, nil
	}

	var batch ExtractionBatch
	if err := json.Unmarshal([]byte(cleaned), &batch); err == nil {
		if err := validateBatch(&batch); err != nil {
			return nil, err
		}
		return normalizeBatch(&batch), nil
	}

	// Backward-compatible shape: a bare array of facts, no links.
	var facts []ExtractedFact
	if err := json.Unmarshal([]byte(cleaned), &facts); err == nil {
		batch = ExtractionBatch{Facts: facts}
		if err := validateBatch(&batch); err != nil {
			return nil, err
		}
		return normalizeBatch(&batch), nil
	}

	repaired := repairFacts(cleaned)
	if len(repaired) == 0 {
		return nil, fmt.Errorf("extraction: failed to parse response")
	}
	batch = ExtractionBatch{Facts: repaired}
	if err := validateBatch(&batch); err != nil {
		return nil, err
	}
	return normalizeBatch(&batch), nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func validateBatch(b *ExtractionBatch) error {
	for i, f := range b.Facts {
		if !IsValidFactType(f.FactType) {
			return fmt.Errorf("%w: fact %d has factType %q", ErrUnknownFactType, i, f.FactType)
		}
	}
	for i, l := range b.Links {
		if !store.LinkType(l.LinkType).IsValid() {
			return fmt.Errorf("%w: link %d has linkType %q", ErrUnknownLinkType, i, l.LinkType)
		}
		if store.LinkType(l.LinkType) == store.LinkCausedBy && l.TargetIndex >= l.SourceIndex {
			return fmt.Errorf("%w: link %d (source %d, target %d)", ErrBackwardCausalLink, i, l.SourceIndex, l.TargetIndex)
		}
	}
	return nil
}

// normalizeBatch trims whitespace and fills in defaults for the fact and
// entity shapes a batch carries.
func normalizeBatch(b *ExtractionBatch) *ExtractionBatch {
	for i := range b.Facts {
		f := &b.Facts[i]
		f.Content = strings.TrimSpace(f.Content)
		f.SourceText = strings.TrimSpace(f.SourceText)
		f.Gist = strings.TrimSpace(f.Gist)
		if f.Confidence <= 0 {
			f.Confidence = 0.8
		}
		cleaned := make([]string, 0, len(f.Tags))
		for _, t := range f.Tags {
			t = strings.TrimSpace(t)
			if t != "" {
				cleaned = append(cleaned, t)
			}
		}
		f.Tags = cleaned

		entities := make([]ExtractedEntityRef, 0, len(f.Entities))
		for _, e := range f.Entities {
			e.Name = strings.TrimSpace(e.Name)
			if e.Name == "" {
				continue
			}
			entities = append(entities, e)
		}
		f.Entities = entities
	}
	return b
}

// factPattern matches a single JSON fact object for regex repair of
// malformed responses — recovers complete objects from a broken array.
var factPattern = regexp.MustCompile(
	`\{\s*"content"\s*:\s*"(?:[^"\\]|\\.)*"\s*,\s*"factType"\s*:\s*"[^"]+"\s*(?:,\s*"[^"]+"\s*:\s*(?:"(?:[^"\\]|\\.)*"|[\d.]+|\[[^\]]*\]|true|false|null))*\s*\}`,
)

func repairFacts(raw string) []ExtractedFact {
	matches := factPattern.FindAllString(raw, -1)
	facts := make([]ExtractedFact, 0, len(matches))
	for _, m := range matches {
		var f ExtractedFact
		if err := json.Unmarshal([]byte(m), &f); err != nil {
			continue
		}
		facts = append(facts, f)
	}
	return facts
}
