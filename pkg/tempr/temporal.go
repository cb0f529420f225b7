package tempr

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// TemporalParser implements spec §4.2: parse(query, now) -> Option<Interval>,
// pure and idempotent, UTC, half-open [start, end). Activates only when the
// query carries a recognised time expression.
type TemporalParser struct{}

var monthNames = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// seasonMonths maps a season name to its [startMonth, endMonthExclusive)
// in the northern-hemisphere convention the source docs use.
var seasonMonths = map[string][2]time.Month{
	"spring": {time.March, time.June},
	"summer": {time.June, time.September},
	"autumn": {time.September, time.December},
	"fall":   {time.September, time.December},
	"winter": {time.December, time.March}, // wraps the year boundary
}

var rangeRe = regexp.MustCompile(`(?i)between\s+([a-z]+|\d{4})(?:\s+(\d{4}))?\s+and\s+([a-z]+|\d{4})(?:\s+(\d{4}))?`)
var isoRangeRe = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})\s*(?:to|through|-)\s*(\d{4}-\d{2}-\d{2})`)

// Parse returns the query's time expression resolved against now, or
// (Interval{}, false) if the query carries none. Ambiguous phrases resolve
// to the nearest past interval, per spec §4.2.
func (TemporalParser) Parse(query string, now time.Time) (Interval, bool) {
	now = now.UTC()
	q := strings.ToLower(query)

	if m := isoRangeRe.FindStringSubmatch(q); m != nil {
		start, err1 := dateparse.ParseIn(m[1], time.UTC)
		end, err2 := dateparse.ParseIn(m[2], time.UTC)
		if err1 == nil && err2 == nil {
			return Interval{Start: start.UTC(), End: end.UTC().AddDate(0, 0, 1)}, true
		}
	}

	if m := rangeRe.FindStringSubmatch(q); m != nil {
		if iv, ok := resolveRange(m, now); ok {
			return iv, true
		}
	}

	if strings.Contains(q, "last year") {
		y := now.Year() - 1
		return yearInterval(y), true
	}
	if strings.Contains(q, "this year") {
		return yearInterval(now.Year()), true
	}
	if strings.Contains(q, "next year") {
		return yearInterval(now.Year() + 1), true
	}

	if strings.Contains(q, "last week") {
		return weekInterval(now, -1), true
	}
	if strings.Contains(q, "this week") {
		return weekInterval(now, 0), true
	}
	if strings.Contains(q, "next week") {
		return weekInterval(now, 1), true
	}

	if strings.Contains(q, "last month") {
		return monthInterval(now.Year(), now.Month(), -1), true
	}
	if strings.Contains(q, "this month") {
		return monthInterval(now.Year(), now.Month(), 0), true
	}
	if strings.Contains(q, "next month") {
		return monthInterval(now.Year(), now.Month(), 1), true
	}

	for name, span := range seasonMonths {
		if strings.Contains(q, name) {
			return nearestPastSeason(now, name, span), true
		}
	}

	for name, month := range monthNames {
		if strings.Contains(q, name) {
			return nearestPastMonth(now, month), true
		}
	}

	return Interval{}, false
}

func yearInterval(y int) Interval {
	start := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Interval{Start: start, End: start.AddDate(1, 0, 0)}
}

func monthInterval(year int, month time.Month, offset int) Interval {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, offset, 0)
	return Interval{Start: start, End: start.AddDate(0, 1, 0)}
}

// weekInterval returns the Monday-start week containing now, shifted by
// offset weeks.
func weekInterval(now time.Time, offset int) Interval {
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7 // ISO: Sunday is day 7
	}
	mondayThisWeek := now.AddDate(0, 0, -(weekday - 1))
	start := time.Date(mondayThisWeek.Year(), mondayThisWeek.Month(), mondayThisWeek.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, 7*offset)
	return Interval{Start: start, End: start.AddDate(0, 0, 7)}
}

// nearestPastMonth resolves a bare month name ("in June") to the most
// recent occurrence of that month at or before now, per spec's "ambiguous
// phrases resolve to the nearest past interval".
func nearestPastMonth(now time.Time, month time.Month) Interval {
	year := now.Year()
	if month > now.Month() {
		year--
	}
	return monthInterval(year, month, 0)
}

func nearestPastSeason(now time.Time, name string, span [2]time.Month) Interval {
	year := now.Year()
	start := time.Date(year, span[0], 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, span[1], 1, 0, 0, 0, 0, time.UTC)
	if name == "winter" {
		end = time.Date(year+1, time.March, 1, 0, 0, 0, 0, time.UTC)
	}
	if start.After(now) {
		start = start.AddDate(-1, 0, 0)
		end = end.AddDate(-1, 0, 0)
	}
	return Interval{Start: start, End: end}
}

// resolveRange parses "between X [year] and Y [year]" where X and Y are
// either month names or bare years.
func resolveRange(m []string, now time.Time) (Interval, bool) {
	fromTok, fromYearTok, toTok, toYearTok := m[1], m[2], m[3], m[4]

	resolve := func(tok, yearTok string) (time.Time, time.Time, bool) {
		if month, ok := monthNames[tok]; ok {
			year := now.Year()
			if yearTok != "" {
				if y, err := strconv.Atoi(yearTok); err == nil {
					year = y
				}
			}
			iv := monthInterval(year, month, 0)
			return iv.Start, iv.End, true
		}
		if y, err := strconv.Atoi(tok); err == nil {
			iv := yearInterval(y)
			return iv.Start, iv.End, true
		}
		return time.Time{}, time.Time{}, false
	}

	fromStart, _, ok1 := resolve(fromTok, fromYearTok)
	_, toEnd, ok2 := resolve(toTok, toYearTok)
	if !ok1 || !ok2 {
		return Interval{}, false
	}
	if toEnd.Before(fromStart) {
		// "between November and February" crossing a year boundary with no
		// explicit years: push the end year forward by one.
		toEnd = toEnd.AddDate(1, 0, 0)
	}
	return Interval{Start: fromStart, End: toEnd}, true
}
