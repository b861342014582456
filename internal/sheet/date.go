package sheet

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// SerialThreshold separates spreadsheet day serials from other numbers.
	SerialThreshold = 40000
	// serialUnixOffset is the serial of 1970-01-01 in the 1899-12-30 epoch.
	serialUnixOffset = 25569
)

// DateStrategy is one named way of reading a date cell.
type DateStrategy struct {
	Name  string
	Parse func(raw any) (time.Time, bool)
}

// DateStrategies lists the strategies ParseDate tries, in order. The first
// one that yields a real calendar date wins.
var DateStrategies = []DateStrategy{
	{Name: "serial", Parse: parseSerial},
	{Name: "iso", Parse: parseISO},
	{Name: "year-first", Parse: parseYearFirst},
	{Name: "day-first", Parse: parseDayFirst},
	{Name: "month-first", Parse: parseMonthFirst},
	{Name: "freeform", Parse: parseFreeform},
}

// ParseDate resolves a heterogeneous date cell to midnight UTC. ok is false
// when no strategy accepts the value; callers must skip the row rather than
// substitute a default.
func ParseDate(raw any) (t time.Time, ok bool) {
	t, _, ok = ParseDateWith(raw)
	return t, ok
}

// ParseDateWith is ParseDate that also reports which strategy matched.
func ParseDateWith(raw any) (time.Time, string, bool) {
	if IsBlank(raw) {
		return time.Time{}, "", false
	}
	if _, isBool := raw.(bool); isBool {
		return time.Time{}, "", false
	}
	for _, s := range DateStrategies {
		if t, ok := s.Parse(raw); ok {
			return t, s.Name, true
		}
	}
	return time.Time{}, "", false
}

func parseSerial(raw any) (time.Time, bool) {
	var n float64
	switch v := raw.(type) {
	case float64:
		n = v
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return time.Time{}, false
		}
		n = f
	default:
		return time.Time{}, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) || n <= SerialThreshold {
		return time.Time{}, false
	}
	days := int(math.Floor(n - serialUnixOffset))
	return time.Unix(0, 0).UTC().AddDate(0, 0, days), true
}

func parseISO(raw any) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", ToString(raw))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

var partSeparator = regexp.MustCompile(`[-/]`)

// dateParts splits a cell on '-' or '/' into exactly three leading integers.
func dateParts(raw any) ([3]int, bool) {
	var p [3]int
	fields := partSeparator.Split(ToString(raw), -1)
	if len(fields) != 3 {
		return p, false
	}
	for i, f := range fields {
		n, ok := leadingInt(f)
		if !ok {
			return p, false
		}
		p[i] = n
	}
	return p, true
}

func parseYearFirst(raw any) (time.Time, bool) {
	p, ok := dateParts(raw)
	if !ok || p[0] <= 1000 {
		return time.Time{}, false
	}
	return calendarDate(p[0], p[1], p[2])
}

func parseDayFirst(raw any) (time.Time, bool) {
	p, ok := dateParts(raw)
	if !ok || p[2] <= 1000 {
		return time.Time{}, false
	}
	return calendarDate(p[2], p[1], p[0])
}

func parseMonthFirst(raw any) (time.Time, bool) {
	p, ok := dateParts(raw)
	if !ok {
		return time.Time{}, false
	}
	return calendarDate(p[2], p[0], p[1])
}

var freeformLayouts = []string{
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"02-Jan-06",
	"Mon Jan 2 2006",
	"Mon, 02 Jan 2006",
	"Jan 2006",
	"January 2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

func parseFreeform(raw any) (time.Time, bool) {
	s := strings.Join(strings.Fields(ToString(raw)), " ")
	for _, layout := range freeformLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// calendarDate builds a UTC date and rejects values time.Date would
// normalise (31 Feb, month 13, ...).
func calendarDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// leadingInt reads the decimal digits at the start of s, after spaces.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

var monthIndex = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// Now is the clock ParseSwingDate uses for a missing year.
var Now = time.Now

// ParseSwingDate reads "12 Jan 2024" or "Jan 12 2024" style dates from the
// swing sheet. The year defaults to the current calendar year.
func ParseSwingDate(s string) (time.Time, bool) {
	parts := strings.Fields(s)
	if len(parts) < 2 {
		return time.Time{}, false
	}

	var dayTok, monthTok string
	if _, numeric := leadingInt(parts[0]); numeric {
		dayTok, monthTok = parts[0], parts[1]
	} else {
		monthTok, dayTok = parts[0], parts[1]
	}

	month, ok := monthIndex[strings.ToLower(strings.TrimSuffix(monthTok, ","))]
	if !ok {
		return time.Time{}, false
	}
	day, ok := leadingInt(dayTok)
	if !ok {
		return time.Time{}, false
	}
	year := Now().Year()
	if len(parts) > 2 {
		if year, ok = leadingInt(parts[2]); !ok {
			return time.Time{}, false
		}
	}
	return calendarDate(year, int(month), day)
}

var shortMonths = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// FormatDisplayDate renders a date the way the dashboard labels its axes,
// e.g. "5th Mar".
func FormatDisplayDate(t time.Time) string {
	d := t.Day()
	return strconv.Itoa(d) + ordinalSuffix(d) + " " + shortMonths[t.Month()-1]
}

func ordinalSuffix(day int) string {
	if day > 3 && day < 21 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}
