package temporal

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse reference time: %v", err)
	}
	return ts
}

func TestYesterdayPhrase(t *testing.T) {
	ref := mustParse(t, "2024-06-15T12:00:00Z")
	r, ok := ExtractRange("What happened yesterday?", ref)
	if !ok {
		t.Fatal("expected a range")
	}
	wantFrom := mustParse(t, "2024-06-14T00:00:00Z").UnixMilli()
	wantTo := mustParse(t, "2024-06-14T23:59:59.999Z").UnixMilli()
	if r.From != wantFrom || r.To != wantTo {
		t.Errorf("got [%d, %d], want [%d, %d]", r.From, r.To, wantFrom, wantTo)
	}
}

func TestDeterminism(t *testing.T) {
	ref := mustParse(t, "2024-06-15T12:00:00Z")
	r1, ok1 := ExtractRange("last week we shipped this", ref)
	r2, ok2 := ExtractRange("last week we shipped this", ref)
	if ok1 != ok2 || r1 != r2 {
		t.Fatalf("expected byte-identical output across calls: %+v vs %+v", r1, r2)
	}
}

func TestTodayTomorrow(t *testing.T) {
	ref := mustParse(t, "2024-06-15T12:00:00Z")
	if r, ok := ExtractRange("today's standup", ref); !ok || r.From != mustParse(t, "2024-06-15T00:00:00Z").UnixMilli() {
		t.Errorf("today mismatch: %+v ok=%v", r, ok)
	}
	if r, ok := ExtractRange("tomorrow's meeting", ref); !ok || r.From != mustParse(t, "2024-06-16T00:00:00Z").UnixMilli() {
		t.Errorf("tomorrow mismatch: %+v ok=%v", r, ok)
	}
}

func TestLastNDays(t *testing.T) {
	ref := mustParse(t, "2024-06-15T12:00:00Z")
	r, ok := ExtractRange("what happened in the last 3 days", ref)
	if !ok {
		t.Fatal("expected a range")
	}
	wantFrom := mustParse(t, "2024-06-12T00:00:00Z").UnixMilli()
	if r.From != wantFrom {
		t.Errorf("from = %d, want %d", r.From, wantFrom)
	}
}

func TestMonthYear(t *testing.T) {
	ref := mustParse(t, "2024-06-15T12:00:00Z")
	r, ok := ExtractRange("back in March 2023 we launched", ref)
	if !ok {
		t.Fatal("expected a range")
	}
	wantFrom := mustParse(t, "2023-03-01T00:00:00Z").UnixMilli()
	wantTo := mustParse(t, "2023-03-31T23:59:59.999Z").UnixMilli()
	if r.From != wantFrom || r.To != wantTo {
		t.Errorf("got [%d,%d] want [%d,%d]", r.From, r.To, wantFrom, wantTo)
	}
}

func TestNoSignalReturnsFalse(t *testing.T) {
	ref := mustParse(t, "2024-06-15T12:00:00Z")
	if _, ok := ExtractRange("what is the capital of France", ref); ok {
		t.Error("expected no range for a query without temporal signals")
	}
}

func TestFalsePositiveTokensRejected(t *testing.T) {
	ref := mustParse(t, "2024-06-15T12:00:00Z")
	if _, ok := ExtractRange("do you know what will happen", ref); ok {
		t.Error("expected false-positive tokens not to resolve to a date")
	}
}

func TestLastWeekday(t *testing.T) {
	ref := mustParse(t, "2024-06-15T12:00:00Z") // a Saturday
	r, ok := ExtractRange("since last Monday", ref)
	if !ok {
		t.Fatal("expected a range")
	}
	wantFrom := mustParse(t, "2024-06-10T00:00:00Z").UnixMilli()
	if r.From != wantFrom {
		t.Errorf("from = %d, want %d", r.From, wantFrom)
	}
}
