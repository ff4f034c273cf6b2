package tagfilter

import "testing"

func TestMatchesEmptyTagsAsymmetry(t *testing.T) {
	filter := []string{"a", "b"}
	for _, mode := range []Mode{Any, All} {
		if !Matches(nil, filter, mode) {
			t.Errorf("mode %s: expected untagged memory to pass with non-empty filter", mode)
		}
	}
	for _, mode := range []Mode{AnyStrict, AllStrict} {
		if Matches(nil, filter, mode) {
			t.Errorf("mode %s: expected untagged memory to fail with non-empty filter", mode)
		}
	}
}

func TestMatchesEmptyFilterAsymmetry(t *testing.T) {
	tags := []string{"a"}
	for _, mode := range []Mode{Any, All} {
		if !Matches(tags, nil, mode) {
			t.Errorf("mode %s: empty filter must pass", mode)
		}
	}
	for _, mode := range []Mode{AnyStrict, AllStrict} {
		if Matches(tags, nil, mode) {
			t.Errorf("mode %s: empty filter must never pass in strict modes", mode)
		}
	}
}

func TestMatchesAny(t *testing.T) {
	if !Matches([]string{"a", "c"}, []string{"a", "b"}, Any) {
		t.Error("expected intersection to pass under any")
	}
	if Matches([]string{"x"}, []string{"a", "b"}, Any) {
		t.Error("expected disjoint tags to fail under any")
	}
}

func TestMatchesAll(t *testing.T) {
	if !Matches([]string{"a", "b", "c"}, []string{"a", "b"}, All) {
		t.Error("expected superset to pass under all")
	}
	if Matches([]string{"a"}, []string{"a", "b"}, All) {
		t.Error("expected partial match to fail under all")
	}
}

func TestMatchesStrictModes(t *testing.T) {
	if !Matches([]string{"user-a"}, []string{"user-a"}, AnyStrict) {
		t.Error("expected exact match to pass under any_strict")
	}
	if !Matches([]string{"a", "b"}, []string{"a", "b"}, AllStrict) {
		t.Error("expected exact set to pass under all_strict")
	}
	if Matches([]string{"a"}, []string{"a", "b"}, AllStrict) {
		t.Error("expected partial set to fail under all_strict")
	}
}

func TestSQLPredicateEmptyFilter(t *testing.T) {
	clause, args := SQLPredicate("tags", nil, Any)
	if clause != "1=1" || args != nil {
		t.Errorf("expected pass-through clause, got %q %v", clause, args)
	}
	clause, _ = SQLPredicate("tags", nil, AnyStrict)
	if clause != "1=0" {
		t.Errorf("expected always-false clause for strict+empty filter, got %q", clause)
	}
}

func TestSQLPredicateArgCount(t *testing.T) {
	filter := []string{"a", "b", "c"}
	for _, mode := range []Mode{Any, All, AnyStrict, AllStrict} {
		_, args := SQLPredicate("tags", filter, mode)
		if len(args) != len(filter) {
			t.Errorf("mode %s: expected %d args, got %d", mode, len(filter), len(args))
		}
	}
}
