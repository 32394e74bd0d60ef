package collector

import (
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2006-01-02",
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
}

var strftimeDirectives = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'p': "PM",
	'b': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'z': "-0700",
	'Z': "MST",
	'f': "000000",
	'%': "%",
}

// toLayout converts a strftime-style format to a Go layout.
// Formats without a '%' are assumed to be Go layouts already.
func toLayout(format string) string {
	if !strings.Contains(format, "%") {
		return format
	}

	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 >= len(format) {
			b.WriteByte(format[i])
			continue
		}
		i++
		if layout, ok := strftimeDirectives[format[i]]; ok {
			b.WriteString(layout)
		} else {
			b.WriteByte('%')
			b.WriteByte(format[i])
		}
	}
	return b.String()
}

// ParseDate tries the configured format first, then the fixed fallback list.
// Dates without a zone are read in loc; a trailing Z or an offset wins over
// loc. Unparseable input yields nil.
func ParseDate(raw, format string, loc *time.Location) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	layouts := dateLayouts
	if format != "" {
		layouts = append([]string{toLayout(format)}, dateLayouts...)
	}

	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return &t
		}
	}
	return nil
}

// parseDateValue accepts a date string or unix seconds as decoded from JSON.
func parseDateValue(v any, format string, loc *time.Location) *time.Time {
	if loc == nil {
		loc = time.UTC
	}
	switch val := v.(type) {
	case string:
		if secs, err := strconv.ParseInt(val, 10, 64); err == nil && len(val) >= 9 {
			t := time.Unix(secs, 0).In(loc)
			return &t
		}
		return ParseDate(val, format, loc)
	case float64:
		if val <= 0 {
			return nil
		}
		t := time.Unix(int64(val), 0).In(loc)
		return &t
	}
	return nil
}
