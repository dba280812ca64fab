package summarize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var withinDaysRe = regexp.MustCompile(`within (\d+) days?`)

// SuggestDeadline infers a due date from free-form task text. It is a pure
// policy function: same text and clock in, same date out. Returns nil when
// the text carries no recognizable urgency cue.
//
// Cues, checked in order of urgency:
//   - "urgent", "asap", "immediately", "today"  -> today
//   - "tomorrow"                                -> +1 day
//   - "within N days"                           -> +N days
//   - "this week"                               -> upcoming Friday
//   - "next week"                               -> +7 days
func SuggestDeadline(text string, now time.Time) *time.Time {
	lower := strings.ToLower(text)
	day := now.Truncate(24 * time.Hour)

	switch {
	case containsAny(lower, "urgent", "asap", "immediately", "today"):
		return &day

	case strings.Contains(lower, "tomorrow"):
		d := day.AddDate(0, 0, 1)
		return &d

	case withinDaysRe.MatchString(lower):
		m := withinDaysRe.FindStringSubmatch(lower)
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return nil
		}
		d := day.AddDate(0, 0, n)
		return &d

	case strings.Contains(lower, "this week"):
		d := upcomingFriday(day)
		return &d

	case strings.Contains(lower, "next week"):
		d := day.AddDate(0, 0, 7)
		return &d
	}

	return nil
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// upcomingFriday returns this week's Friday, or today if already Friday or
// later in the week.
func upcomingFriday(day time.Time) time.Time {
	offset := int(time.Friday) - int(day.Weekday())
	if offset <= 0 {
		return day
	}
	return day.AddDate(0, 0, offset)
}
