package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
)

// DefaultDateFormat renders dates like "October 8, 2025"
const DefaultDateFormat = "F j, Y"

// Layouts tried in order; the source offset is kept so the calendar day does
// not shift
var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 02 Jan 2006 15:04 -0700",
	"Mon, 02 Jan 2006 15:04 MST",
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParsePubDate parses the raw pubDate of an item
func ParsePubDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return withZoneOffset(t), true
		}
	}
	return time.Time{}, false
}

// North American zone names allowed in RFC 822 dates, in hours east of UTC
var rfc822Zones = map[string]int{
	"EST": -5, "EDT": -4,
	"CST": -6, "CDT": -5,
	"MST": -7, "MDT": -6,
	"PST": -8, "PDT": -7,
}

// withZoneOffset gives RFC 822 zone names their real offset. time.Parse only
// knows abbreviations of the local zone and records others at +0000.
func withZoneOffset(t time.Time) time.Time {
	name, _ := t.Zone()
	hours, ok := rfc822Zones[name]
	if !ok {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
		time.FixedZone(name, hours*60*60))
}

// formatPubDate formats raw with pattern, or returns raw untouched when it is
// not a date. parsed is the feed parser's own interpretation, used when none
// of our layouts match.
func formatPubDate(raw string, parsed *time.Time, pattern string) string {
	t, ok := ParsePubDate(raw)
	if !ok {
		if parsed == nil {
			return raw
		}
		t = *parsed
	}

	if pattern == "" {
		pattern = DefaultDateFormat
	}
	return FormatDate(t, pattern)
}

// FormatDate renders t using a PHP date() style pattern such as "Y-m-d" or
// "F j, Y". Patterns containing '%' are treated as strftime patterns.
func FormatDate(t time.Time, pattern string) string {
	if strings.Contains(pattern, "%") {
		return strftime.Format(pattern, t)
	}

	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '\\':
			// Escaped character is written as is
			if i+1 < len(pattern) {
				i++
				b.WriteByte(pattern[i])
			}
		case 'd':
			b.WriteString(t.Format("02"))
		case 'D':
			b.WriteString(t.Format("Mon"))
		case 'j':
			b.WriteString(strconv.Itoa(t.Day()))
		case 'l':
			b.WriteString(t.Weekday().String())
		case 'N':
			b.WriteString(strconv.Itoa(isoWeekday(t)))
		case 'S':
			b.WriteString(ordinalSuffix(t.Day()))
		case 'w':
			b.WriteString(strconv.Itoa(int(t.Weekday())))
		case 'z':
			b.WriteString(strconv.Itoa(t.YearDay() - 1))
		case 'W':
			_, week := t.ISOWeek()
			fmt.Fprintf(&b, "%02d", week)
		case 'F':
			b.WriteString(t.Month().String())
		case 'm':
			b.WriteString(t.Format("01"))
		case 'M':
			b.WriteString(t.Format("Jan"))
		case 'n':
			b.WriteString(strconv.Itoa(int(t.Month())))
		case 't':
			b.WriteString(strconv.Itoa(daysIn(t)))
		case 'L':
			if daysInYear(t.Year()) == 366 {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		case 'o':
			year, _ := t.ISOWeek()
			b.WriteString(strconv.Itoa(year))
		case 'Y':
			b.WriteString(strconv.Itoa(t.Year()))
		case 'y':
			b.WriteString(t.Format("06"))
		case 'a':
			b.WriteString(t.Format("pm"))
		case 'A':
			b.WriteString(t.Format("PM"))
		case 'g':
			b.WriteString(t.Format("3"))
		case 'G':
			b.WriteString(strconv.Itoa(t.Hour()))
		case 'h':
			b.WriteString(t.Format("03"))
		case 'H':
			b.WriteString(t.Format("15"))
		case 'i':
			b.WriteString(t.Format("04"))
		case 's':
			b.WriteString(t.Format("05"))
		case 'v':
			fmt.Fprintf(&b, "%03d", t.Nanosecond()/int(time.Millisecond))
		case 'u':
			fmt.Fprintf(&b, "%06d", t.Nanosecond()/int(time.Microsecond))
		case 'e':
			b.WriteString(t.Location().String())
		case 'T':
			b.WriteString(t.Format("MST"))
		case 'P':
			b.WriteString(t.Format("-07:00"))
		case 'p':
			b.WriteString(t.Format("Z07:00"))
		case 'O':
			b.WriteString(t.Format("-0700"))
		case 'Z':
			_, offset := t.Zone()
			b.WriteString(strconv.Itoa(offset))
		case 'c':
			b.WriteString(t.Format("2006-01-02T15:04:05-07:00"))
		case 'r':
			b.WriteString(t.Format("Mon, 02 Jan 2006 15:04:05 -0700"))
		case 'U':
			b.WriteString(strconv.FormatInt(t.Unix(), 10))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isoWeekday(t time.Time) int {
	if t.Weekday() == time.Sunday {
		return 7
	}
	return int(t.Weekday())
}

func ordinalSuffix(day int) string {
	if day >= 11 && day <= 13 {
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

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func daysInYear(year int) int {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay()
}
