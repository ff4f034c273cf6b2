// Package temporal extracts a `[from, to]` epoch-millisecond range from a
// natural-language query against a reference instant: a deterministic
// phrase table first, then a general-purpose date-parser fallback.
package temporal

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Range is an inclusive epoch-millisecond window.
type Range struct {
	From int64
	To   int64
}

// falsePositives are short tokens the fallback parser must never resolve to
// a date even though a general-purpose parser might otherwise hazard one.
var falsePositives = map[string]bool{
	"do": true, "may": true, "will": true,
	"mon": true, "tue": true, "wed": true, "thu": true, "fri": true, "sat": true, "sun": true,
}

// monthNames recognizes month names across English, Spanish, French,
// German, Portuguese, and Italian.
var monthNames = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June, "july": time.July,
	"august": time.August, "september": time.September, "october": time.October,
	"november": time.November, "december": time.December,

	"enero": time.January, "febrero": time.February, "marzo": time.March,
	"abril": time.April, "mayo": time.May, "junio": time.June, "julio": time.July,
	"agosto": time.August, "septiembre": time.September, "octubre": time.October,
	"noviembre": time.November, "diciembre": time.December,

	"janvier": time.January, "février": time.February, "fevrier": time.February,
	"mars": time.March, "avril": time.April, "mai": time.May, "juin": time.June,
	"juillet": time.July, "août": time.August, "aout": time.August,
	"septembre": time.September, "octobre": time.October,
	"novembre": time.November, "décembre": time.December, "decembre": time.December,

	"januar": time.January, "februar": time.February, "märz": time.March, "maerz": time.March,
	"juni": time.June, "juli": time.July, "oktober": time.October,
	"dezember": time.December,

	"janeiro": time.January, "fevereiro": time.February,
	"março": time.March, "marco": time.March,
	"maio": time.May, "junho": time.June, "julho": time.July,
	"setembro": time.September, "outubro": time.October, "dezembro": time.December,

	"gennaio": time.January, "febbraio": time.February,
	"aprile": time.April, "maggio": time.May, "giugno": time.June, "luglio": time.July,
	"settembre": time.September, "ottobre": time.October, "dicembre": time.December,
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Millisecond)
}

func dayRange(t time.Time) Range {
	return Range{From: startOfDay(t).UnixMilli(), To: endOfDay(t).UnixMilli()}
}

func windowRange(from, to time.Time) Range {
	return Range{From: startOfDay(from).UnixMilli(), To: endOfDay(to).UnixMilli()}
}

func weekRange(t time.Time) Range {
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7 // ISO-style: Sunday is the last day of the week.
	}
	monday := startOfDay(t).AddDate(0, 0, -(wd - 1))
	sunday := monday.AddDate(0, 0, 6)
	return windowRange(monday, sunday)
}

func monthRange(year int, month time.Month, loc *time.Location) Range {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, 0).Add(-time.Millisecond)
	return Range{From: first.UnixMilli(), To: last.UnixMilli()}
}

func lastWeekday(ref time.Time, wd time.Weekday) time.Time {
	d := startOfDay(ref)
	for i := 0; i < 7; i++ {
		d = d.AddDate(0, 0, -1)
		if d.Weekday() == wd {
			return d
		}
	}
	return d
}

func lastWeekendRange(ref time.Time) Range {
	d := startOfDay(ref)
	for d.Weekday() != time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	saturday := d.AddDate(0, 0, -1)
	return windowRange(saturday, d)
}

type phraseHandler func(ref time.Time, m []string) (Range, bool)

type phraseRule struct {
	name    string
	re      *regexp.Regexp
	handler phraseHandler
}

var couponUnitDays = map[string]int{"couple": 2, "few": 3}

var phraseTable = []phraseRule{
	{"today", regexp.MustCompile(`\btoday\b`), func(ref time.Time, _ []string) (Range, bool) {
		return dayRange(ref), true
	}},
	{"yesterday", regexp.MustCompile(`\byesterday\b`), func(ref time.Time, _ []string) (Range, bool) {
		return dayRange(ref.AddDate(0, 0, -1)), true
	}},
	{"tomorrow", regexp.MustCompile(`\btomorrow\b`), func(ref time.Time, _ []string) (Range, bool) {
		return dayRange(ref.AddDate(0, 0, 1)), true
	}},
	{"last night", regexp.MustCompile(`\blast night\b`), func(ref time.Time, _ []string) (Range, bool) {
		return dayRange(ref.AddDate(0, 0, -1)), true
	}},
	{"last weekend", regexp.MustCompile(`\blast weekend\b`), func(ref time.Time, _ []string) (Range, bool) {
		return lastWeekendRange(ref), true
	}},
	{"last week", regexp.MustCompile(`\blast week\b`), func(ref time.Time, _ []string) (Range, bool) {
		return weekRange(ref.AddDate(0, 0, -7)), true
	}},
	{"this week", regexp.MustCompile(`\bthis week\b`), func(ref time.Time, _ []string) (Range, bool) {
		return weekRange(ref), true
	}},
	{"next week", regexp.MustCompile(`\bnext week\b`), func(ref time.Time, _ []string) (Range, bool) {
		return weekRange(ref.AddDate(0, 0, 7)), true
	}},
	{"last month", regexp.MustCompile(`\blast month\b`), func(ref time.Time, _ []string) (Range, bool) {
		prev := ref.AddDate(0, -1, 0)
		return monthRange(prev.Year(), prev.Month(), ref.Location()), true
	}},
	{"next month", regexp.MustCompile(`\bnext month\b`), func(ref time.Time, _ []string) (Range, bool) {
		next := ref.AddDate(0, 1, 0)
		return monthRange(next.Year(), next.Month(), ref.Location()), true
	}},
	{"last year", regexp.MustCompile(`\blast year\b`), func(ref time.Time, _ []string) (Range, bool) {
		from := time.Date(ref.Year()-1, time.January, 1, 0, 0, 0, 0, ref.Location())
		to := time.Date(ref.Year()-1, time.December, 31, 0, 0, 0, 0, ref.Location())
		return windowRange(from, to), true
	}},
	{"couple/few ago", regexp.MustCompile(`\b(?:a\s+)?(couple|few)\s+(day|days|week|weeks|month|months)\s+ago\b`), func(ref time.Time, m []string) (Range, bool) {
		n := couponUnitDays[m[1]]
		var from time.Time
		switch {
		case strings.HasPrefix(m[2], "day"):
			from = ref.AddDate(0, 0, -n)
		case strings.HasPrefix(m[2], "week"):
			from = ref.AddDate(0, 0, -7*n)
		default:
			from = ref.AddDate(0, -n, 0)
		}
		return dayRange(from), true
	}},
	{"last N units", regexp.MustCompile(`\blast\s+(\d+)\s+(day|days|week|weeks|month|months)\b`), func(ref time.Time, m []string) (Range, bool) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return Range{}, false
		}
		var from time.Time
		switch {
		case strings.HasPrefix(m[2], "day"):
			from = ref.AddDate(0, 0, -n)
		case strings.HasPrefix(m[2], "week"):
			from = ref.AddDate(0, 0, -7*n)
		default:
			from = ref.AddDate(0, -n, 0)
		}
		return windowRange(from, ref), true
	}},
	{"last weekday", regexp.MustCompile(`\blast\s+(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\b`), func(ref time.Time, m []string) (Range, bool) {
		wd, ok := weekdayNames[m[1]]
		if !ok {
			return Range{}, false
		}
		return dayRange(lastWeekday(ref, wd)), true
	}},
}

var monthYearRe = buildMonthYearRegexp()

func buildMonthYearRegexp() *regexp.Regexp {
	names := make([]string, 0, len(monthNames))
	for name := range monthNames {
		names = append(names, regexp.QuoteMeta(name))
	}
	return regexp.MustCompile(`\b(` + strings.Join(names, "|") + `)\s+(\d{4})\b`)
}

// ExtractRange extracts a deterministic `[from, to]` range from query
// relative to ref, following the phrase table then the fallback parser.
// The second return value is false when nothing could be resolved.
func ExtractRange(query string, ref time.Time) (Range, bool) {
	lower := strings.ToLower(query)

	for _, rule := range phraseTable {
		m := rule.re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		if r, ok := rule.handler(ref, m); ok {
			return r, true
		}
	}

	if m := monthYearRe.FindStringSubmatch(lower); m != nil {
		month, ok := monthNames[m[1]]
		if ok {
			year, err := strconv.Atoi(m[2])
			if err == nil {
				return monthRange(year, month, ref.Location()), true
			}
		}
	}

	return parseFallback(query, ref)
}

// parseFallback tokenizes query and feeds each token through dateparse,
// skipping the small false-positive set for short tokens.
func parseFallback(query string, ref time.Time) (Range, bool) {
	for _, raw := range strings.Fields(query) {
		tok := strings.Trim(raw, ".,!?;:\"'()")
		if tok == "" {
			continue
		}
		lower := strings.ToLower(tok)
		if len(tok) <= 5 && falsePositives[lower] {
			continue
		}
		t, err := dateparse.ParseIn(tok, ref.Location(), dateparse.PreferMonthFirst(false))
		if err != nil {
			continue
		}
		return dayRange(t), true
	}
	return Range{}, false
}
