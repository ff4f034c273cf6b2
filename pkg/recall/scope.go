package recall

import "github.com/kittclouds/gokitt/internal/store"

// ScopeMatches reports whether a memory's (profile, project) lineage
// satisfies the requested scope under mode. An unscoped memory (neither
// field set) follows the mode's untagged semantics: strict and the
// single-field modes all pass it through, mirroring the tag filter's
// "untagged always passes" asymmetry — a scope-less memory was never
// opted into isolation, so no scope request excludes it.
func ScopeMatches(m *store.MemoryUnit, scope Scope, mode ScopeMode) bool {
	if m.ScopeProfile == "" && m.ScopeProject == "" {
		return true
	}

	switch mode {
	case ScopeProfileOnly:
		return scope.Profile == "" || m.ScopeProfile == "" || m.ScopeProfile == scope.Profile
	case ScopeProjectOnly:
		return scope.Project == "" || m.ScopeProject == "" || m.ScopeProject == scope.Project
	default: // ScopeStrict
		if scope.Profile != "" && m.ScopeProfile != "" && m.ScopeProfile != scope.Profile {
			return false
		}
		if scope.Project != "" && m.ScopeProject != "" && m.ScopeProject != scope.Project {
			return false
		}
		return true
	}
}
