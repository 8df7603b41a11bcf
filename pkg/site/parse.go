package site

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is how release dates are stored.
const DateLayout = "2006-01-02"

var (
	daysAgoRe   = regexp.MustCompile(`(?i)^([0-9]+) days? ago`)
	monthDayRe  = regexp.MustCompile(`^([A-Za-z]+) ([0-9]+)[a-z]*(?:, ([0-9]{4}))?`)
	countRe     = regexp.MustCompile(`^([0-9.]+)\s*([a-z])?`)
	multipliers = map[string]float64{
		"":  1,
		"k": 1e3,
		"m": 1e6,
		"g": 1e9,
	}
)

// ParseReleaseDate understands the relative and short forms the site uses:
// "Today", "Yesterday", "3 days ago", "Aug 6th" and "Jan 31st, 2015". A
// date without a year falls in today's year.
func ParseReleaseDate(text string, today time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	switch strings.ToLower(text) {
	case "today":
		return day, nil
	case "yesterday":
		return day.AddDate(0, 0, -1), nil
	}

	if m := daysAgoRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("date not recognised: %q", text)
		}
		return day.AddDate(0, 0, -n), nil
	}

	if m := monthDayRe.FindStringSubmatch(text); m != nil {
		year := m[3]
		if year == "" {
			year = strconv.Itoa(today.Year())
		}
		value := fmt.Sprintf("%s %s %s", m[1], m[2], year)
		for _, layout := range []string{"Jan 2 2006", "January 2 2006"} {
			if t, err := time.Parse(layout, value); err == nil {
				return t, nil
			}
		}
	}

	return time.Time{}, fmt.Errorf("date not recognised: %q", text)
}

// ParseCount reads counts such as "950", "1.2k" or "3M".
func ParseCount(text string) (int64, error) {
	m := countRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(text)))
	if m == nil {
		return 0, fmt.Errorf("number not recognised: %q", text)
	}
	mult, ok := multipliers[m[2]]
	if !ok {
		return 0, fmt.Errorf("multiplier %q not recognised: %q", m[2], text)
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("number not recognised: %q", text)
	}
	return int64(n * mult), nil
}
