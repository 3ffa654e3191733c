package sync

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// excelEpochOffset is the number of days between the spreadsheet serial
// epoch (1899-12-30) and the Unix epoch.
const excelEpochOffset = 25569

// dmyPattern matches day-first dates ("25/12/2023", "5-1-2024") with an
// optional time-of-day tail.
var dmyPattern = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})(?:[T ]+(\d{1,2}):(\d{1,2})(?::(\d{1,2}))?)?$`)

// NormalizeDate converts the heterogeneous date representations the feeds
// produce into an ISO-8601 timestamp. It handles spreadsheet serial
// numbers, millisecond epochs, day-first regional strings and anything
// the standard layouts can parse. Unrecognized input collapses to the
// empty string; this function never fails.
func NormalizeDate(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.UTC().Format(time.RFC3339)
	case float64:
		return normalizeNumericDate(v)
	case int:
		return normalizeNumericDate(float64(v))
	case int64:
		return normalizeNumericDate(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return ""
		}
		return normalizeNumericDate(f)
	case string:
		return normalizeStringDate(v)
	default:
		return ""
	}
}

// normalizeNumericDate distinguishes millisecond epochs from spreadsheet
// serials by magnitude: serial numbers for any plausible date stay under
// a million, epoch milliseconds are always far above it.
func normalizeNumericDate(v float64) string {
	if v == 0 {
		return ""
	}
	if math.Abs(v) > 1_000_000 {
		return time.UnixMilli(int64(v)).UTC().Format(time.RFC3339)
	}
	// days since 1899-12-30
	secs := (v - excelEpochOffset) * 86400
	return time.Unix(int64(secs), 0).UTC().Format(time.RFC3339)
}

func normalizeStringDate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if m := dmyPattern.FindStringSubmatch(s); m != nil {
		if iso, ok := buildDayFirst(m); ok {
			return iso
		}
	}

	// Sheets sometimes delivers serials and epochs as strings.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return normalizeNumericDate(f)
	}

	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}

	return ""
}

// buildDayFirst assembles a local-time timestamp from a day-first match,
// rejecting impossible dates like 31/02.
func buildDayFirst(m []string) (string, bool) {
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}

	hour, minute, sec := 0, 0, 0
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		minute, _ = strconv.Atoi(m[5])
		if m[6] != "" {
			sec, _ = strconv.Atoi(m[6])
		}
		if hour > 23 || minute > 59 || sec > 59 {
			return "", false
		}
	}

	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.Local)
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		// time.Date normalized an overflow like 31/04
		return "", false
	}
	return t.Format(time.RFC3339), true
}

// AddMonths shifts an ISO timestamp forward by whole calendar months,
// preserving its time-of-day and zone. Month-end overflow follows
// time.AddDate semantics. Unparseable input returns "".
func AddMonths(iso string, months int) string {
	t, err := parseISO(iso)
	if err != nil {
		return ""
	}
	return t.AddDate(0, months, 0).Format(time.RFC3339)
}

func parseISO(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
