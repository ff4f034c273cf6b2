package recall

import (
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/kittclouds/gokitt/internal/store"
	"github.com/kittclouds/gokitt/pkg/idgen"
)

// NormalizePath lowercases, trims, forward-slashes, collapses repeated
// slashes, and strips any trailing slash except the root. Idempotent:
// normalizing an already-normalized path returns it unchanged.
func NormalizePath(p string) string {
	p = strings.TrimSpace(strings.ToLower(p))
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

var (
	absolutePathRe  = regexp.MustCompile(`(?:^|\s)(/[\w.\-]+(?:/[\w.\-]+)+)`)
	versionTripleRe = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	moduleTokenRe   = regexp.MustCompile(`\b[\w\-]+(?:[./][\w\-]+)+\b`)
)

// DetectLocationSignals extracts absolute/relative path-like strings and
// word-bounded module tokens (e.g. "src/foo/bar.ts", "utils.logger") from
// query, excluding stopwords and anything shaped like a semantic-version
// triple.
func DetectLocationSignals(query string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(tok string) {
		tok = strings.TrimSpace(tok)
		if tok == "" || seen[tok] {
			return
		}
		if versionTripleRe.MatchString(tok) {
			return
		}
		if enStopwords.Contains(tok) {
			return
		}
		seen[tok] = true
		out = append(out, tok)
	}

	for _, m := range absolutePathRe.FindAllStringSubmatch(query, -1) {
		add(m[1])
	}
	for _, tok := range moduleTokenRe.FindAllString(query, -1) {
		add(tok)
	}
	return out
}

// sessionPaths tracks, per (bank, session), which normalized paths have
// been touched this process lifetime — ephemeral state, since path_memories
// carries no session column; only the co-access strength it produces is
// persisted.
type sessionPaths struct {
	mu    sync.Mutex
	byKey map[string][]string
}

func newSessionPaths() *sessionPaths { return &sessionPaths{byKey: make(map[string][]string)} }

func (s *sessionPaths) touch(bank, session, pathID string) []string {
	if session == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := wmKey(bank, session)
	others := append([]string(nil), s.byKey[key]...)
	for _, p := range s.byKey[key] {
		if p == pathID {
			return others
		}
	}
	s.byKey[key] = append(s.byKey[key], pathID)
	return others
}

// LocationTracker wires the normalized-path store to the process-local
// session touch-set, so Record can resolve "every other path touched in
// this session" without a schema change for session-scoped state.
type LocationTracker struct {
	db       *store.Store
	sessions *sessionPaths
}

// NewLocationTracker builds a tracker bound to db.
func NewLocationTracker(db *store.Store) *LocationTracker {
	return &LocationTracker{db: db, sessions: newSessionPaths()}
}

// Record upserts the normalized path, associates it with memoryID, and, if
// session is set, accrues co-access strength with every other path already
// touched in that (bank, session) this process lifetime.
func (lt *LocationTracker) Record(bankID, rawPath, memoryID, sessionID, profile, project string) error {
	normalized := NormalizePath(rawPath)
	if normalized == "" {
		return nil
	}

	existing, err := lt.db.GetPathByNormalized(bankID, normalized)
	if err != nil {
		return err
	}

	pathID := idgen.New()
	now := time.Now().UnixMilli()
	if existing != nil {
		pathID = existing.ID
	}
	if err := lt.db.UpsertPath(&store.Path{
		ID:             pathID,
		BankID:         bankID,
		NormalizedPath: normalized,
		AccessCount:    1,
		LastAccessed:   &now,
		Profile:        profile,
		Project:        project,
	}); err != nil {
		return err
	}
	if err := lt.db.AssociateMemoryPath(pathID, memoryID); err != nil {
		return err
	}

	for _, other := range lt.sessions.touch(bankID, sessionID, pathID) {
		if err := lt.db.RecordCoAccess(pathID, other, 1); err != nil {
			return err
		}
	}
	return nil
}

// Boost resolves the location boost for a memory against the raw path-like
// signals detected in the current query, using the bank-wide maximum
// co-access strength to normalize the co-access term. Signals that don't
// resolve to a previously recorded path contribute nothing.
func (lt *LocationTracker) Boost(cfg Config, bankID, memoryID string, querySignals []string, now int64) (float64, error) {
	if len(querySignals) == 0 {
		return 0, nil
	}
	memoryPathIDs, err := lt.db.PathIDsForMemory(memoryID)
	if err != nil {
		return 0, err
	}
	memSet := make(map[string]bool, len(memoryPathIDs))
	for _, id := range memoryPathIDs {
		memSet[id] = true
	}

	var total float64
	for _, signal := range querySignals {
		p, err := lt.db.GetPathByNormalized(bankID, NormalizePath(signal))
		if err != nil {
			return 0, err
		}
		if p == nil {
			continue
		}

		direct := memSet[p.ID]

		coStrength, maxStrength, err := lt.db.CoAccessStrength(bankID, p.ID)
		if err != nil {
			return 0, err
		}
		var best float64
		for _, mpID := range memoryPathIDs {
			if s, ok := coStrength[mpID]; ok && s > best {
				best = s
			}
		}

		total += locationBoost(cfg, direct, p.LastAccessed, now, best, maxStrength)
	}
	return total, nil
}

// locationBoost computes the three-term additive location boost: a flat
// bonus for direct path association, a familiarity term that decays with
// time since the path was last accessed, and a co-access term proportional
// to the path's association strength with other paths touched this
// session, normalized against the bank-wide maximum.
func locationBoost(cfg Config, directlyAssociated bool, lastAccessed *int64, now int64, coAccessStrength, maxCoAccessStrength float64) float64 {
	boost := 0.0
	if directlyAssociated {
		boost += cfg.DirectPathBoost
	}
	if lastAccessed != nil {
		age := now - *lastAccessed
		if age < 0 {
			age = 0
		}
		tauMs := float64(cfg.LocationFamiliarityTau.Milliseconds())
		boost += cfg.MaxFamiliarityBoost * math.Exp(-float64(age)/tauMs)
	}
	if maxCoAccessStrength > 0 && coAccessStrength > 0 {
		boost += cfg.MaxCoAccessBoost * clamp01(coAccessStrength/maxCoAccessStrength)
	}
	return boost
}
