// Package dates converts natural-language date expressions coming out of the
// extraction step into ISO calendar dates relative to a reference date.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

const isoDate = "2006-01-02"

type patternRule struct {
	re    *regexp.Regexp
	apply func(ref time.Time, m []string) (time.Time, bool)
}

// Rules are matched against the whole expression, not substrings, so that
// "in 5 days please" falls through to the fuzzy tier instead of silently
// matching "in 5 days".
var rules = []patternRule{
	{
		re: regexp.MustCompile(`^in (\d+) days?$`),
		apply: func(ref time.Time, m []string) (time.Time, bool) {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return time.Time{}, false
			}
			return ref.AddDate(0, 0, n), true
		},
	},
	{
		re: regexp.MustCompile(`^(\d+) days? ago$`),
		apply: func(ref time.Time, m []string) (time.Time, bool) {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return time.Time{}, false
			}
			return ref.AddDate(0, 0, -n), true
		},
	},
	{
		re: regexp.MustCompile(`^next week$`),
		apply: func(ref time.Time, m []string) (time.Time, bool) {
			return ref.AddDate(0, 0, 7), true
		},
	},
	{
		re: regexp.MustCompile(`^last week$`),
		apply: func(ref time.Time, m []string) (time.Time, bool) {
			return ref.AddDate(0, 0, -7), true
		},
	},
	{
		re: regexp.MustCompile(`^next month$`),
		apply: func(ref time.Time, m []string) (time.Time, bool) {
			return addMonths(ref, 1), true
		},
	},
	{
		re: regexp.MustCompile(`^last month$`),
		apply: func(ref time.Time, m []string) (time.Time, bool) {
			return addMonths(ref, -1), true
		},
	},
	{
		re: regexp.MustCompile(`^this week$`),
		apply: func(ref time.Time, m []string) (time.Time, bool) {
			return ref.AddDate(0, 0, 6-weekdayIndex(ref)), true
		},
	},
	{
		re: regexp.MustCompile(`^last monday$`),
		apply: func(ref time.Time, m []string) (time.Time, bool) {
			return ref.AddDate(0, 0, -(weekdayIndex(ref) + 7)), true
		},
	},
	{
		re: regexp.MustCompile(`^last sunday$`),
		apply: func(ref time.Time, m []string) (time.Time, bool) {
			return ref.AddDate(0, 0, -(weekdayIndex(ref) + 1)), true
		},
	},
}

var fuzzyParser = buildFuzzyParser()

func buildFuzzyParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// Resolve converts a natural-language date expression into an ISO date
// relative to ref. It never fails: unresolvable input degrades to the
// reference date.
func Resolve(expr string, ref time.Time) string {
	expr = strings.ToLower(strings.TrimSpace(expr))

	switch expr {
	case "today", "now":
		return ref.Format(isoDate)
	case "tomorrow":
		return ref.AddDate(0, 0, 1).Format(isoDate)
	case "yesterday":
		return ref.AddDate(0, 0, -1).Format(isoDate)
	}

	for _, rule := range rules {
		if m := rule.re.FindStringSubmatch(expr); m != nil {
			if resolved, ok := rule.apply(ref, m); ok {
				return resolved.Format(isoDate)
			}
		}
	}

	// Fuzzy tier: explicit date strings first, then natural-language phrases
	// the pattern table does not cover.
	if parsed, err := dateparse.ParseIn(expr, ref.Location()); err == nil {
		return parsed.Format(isoDate)
	}
	if result, err := fuzzyParser.Parse(expr, ref); err == nil && result != nil {
		return result.Time.Format(isoDate)
	}

	return ref.Format(isoDate)
}

// weekdayIndex returns the day-of-week with Monday = 0.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// addMonths performs calendar-month arithmetic, clamping the day to the last
// valid day of the target month (Jan 31 + 1 month in 2024 -> Feb 29).
func addMonths(ref time.Time, months int) time.Time {
	first := time.Date(ref.Year(), ref.Month()+time.Month(months), 1, 0, 0, 0, 0, ref.Location())
	lastDay := first.AddDate(0, 1, -1).Day()

	day := ref.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, ref.Location())
}
