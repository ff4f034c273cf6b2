package recall

// packResult is the token-budget packer's output, already sorted the way
// RecallResult wants it reported.
type packResult struct {
	Packed          []PackedMemory
	TotalTokensUsed int
	BudgetRemaining int
	Overflow        bool
}

// pack greedily fits hydrated candidates (already sorted by combined score
// descending) into tokenBudget: prefer full content, fall back to the gist
// when full no longer fits but gist does, otherwise skip that candidate and
// keep trying the rest. A non-positive budget is treated as unlimited.
func pack(candidates []hydratedCandidate, tokenBudget int) packResult {
	if tokenBudget <= 0 {
		packed := make([]PackedMemory, len(candidates))
		used := 0
		for i, c := range candidates {
			tokens := estimateTokens(c.memory.Content)
			packed[i] = PackedMemory{MemoryID: c.row.MemoryID, Mode: "full", Tokens: tokens}
			used += tokens
		}
		return packResult{Packed: packed, TotalTokensUsed: used, BudgetRemaining: 0}
	}

	remaining := tokenBudget
	overflow := false
	var packed []PackedMemory

	for _, c := range candidates {
		fullTokens := estimateTokens(c.memory.Content)
		gistTokens := estimateTokens(c.memory.Gist)

		switch {
		case fullTokens <= remaining:
			packed = append(packed, PackedMemory{MemoryID: c.row.MemoryID, Mode: "full", Tokens: fullTokens})
			remaining -= fullTokens
		case gistTokens <= remaining && gistTokens > 0:
			packed = append(packed, PackedMemory{MemoryID: c.row.MemoryID, Mode: "gist", Tokens: gistTokens})
			remaining -= gistTokens
			overflow = true
		default:
			overflow = true
		}
	}

	return packResult{
		Packed:          packed,
		TotalTokensUsed: tokenBudget - remaining,
		BudgetRemaining: remaining,
		Overflow:        overflow,
	}
}
