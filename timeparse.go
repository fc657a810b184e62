package main

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Natural-language time resolution for reminder phrases like
// "9 giờ sáng mai", "9:00pm ngày mai", "7h30 tối thứ sáu tuần sau".
// Date and clock time are extracted independently and combined; when
// nothing parses, the reminder defaults to one minute from now and the
// caller is told so.

// Markers that shift an hour below 12 into the afternoon/evening.
var pmMarkers = []string{"chiều", "tối", "đêm", "pm", "afternoon", "evening", "night"}

// Markers that state an explicitly future date. When present, a time
// already past today is trusted as-is instead of rolled forward: the
// extracted date came from the user, not from defaulting.
var futureMarkers = []string{"mai", "kia", "mốt", "tuần", "tháng", "sau", "tới", "tomorrow", "next"}

var (
	reClockFull = regexp.MustCompile(`(\d{1,2})\s*(?::|h|giờ)\s*(\d{1,2})`)
	reClockHalf = regexp.MustCompile(`(\d{1,2})\s*(?:h|giờ)\s*rưỡi`)
	reClockHour = regexp.MustCompile(`(\d{1,2})\s*(?:h|giờ)`)

	reDateNumeric = regexp.MustCompile(`(\d{1,2})/(\d{1,2})(?:/(\d{4}))?`)
	reDateThang   = regexp.MustCompile(`(\d{1,2})\s+tháng\s+(\d{1,2})(?:\s+năm\s+(\d{4}))?`)
)

// Vietnamese weekday names, "thứ hai" = Monday ... "chủ nhật" = Sunday.
var weekdayNames = map[string]time.Weekday{
	"thứ hai":  time.Monday,
	"thứ ba":   time.Tuesday,
	"thứ tư":   time.Wednesday,
	"thứ năm":  time.Thursday,
	"thứ sáu":  time.Friday,
	"thứ bảy":  time.Saturday,
	"chủ nhật": time.Sunday,
}

// resolveTime parses free text into an absolute timestamp.
// The second return is true when no usable time was found and the
// one-minute default was applied.
func resolveTime(text string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(text)

	date, dateFound := extractDate(lower, now)
	if !dateFound {
		date = now
	}

	hour, minute, timeFound := extractClock(lower)

	if timeFound {
		if containsAny(lower, pmMarkers) && hour < 12 {
			hour += 12
		}
		if hour <= 23 && minute <= 59 {
			resolved := time.Date(date.Year(), date.Month(), date.Day(),
				hour, minute, 0, 0, now.Location())
			// A time already past today rolls to tomorrow, unless the
			// text names a future date explicitly.
			if sameDate(resolved, now) && resolved.Before(now) && !containsAny(lower, futureMarkers) {
				resolved = resolved.AddDate(0, 0, 1)
			}
			return resolved, false
		}
		// Out-of-range clock fields: fall through to the default rather
		// than guessing.
	} else if dateFound {
		return date, false
	}

	return now.Add(time.Minute), true
}

// extractClock matches a clock time, most specific pattern first:
// "H:MM" / "H giờ MM", then "H giờ rưỡi" (= H:30), then a bare "H giờ".
func extractClock(lower string) (hour, minute int, ok bool) {
	if m := reClockFull.FindStringSubmatch(lower); m != nil {
		h, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		return h, mm, true
	}
	if m := reClockHalf.FindStringSubmatch(lower); m != nil {
		h, _ := strconv.Atoi(m[1])
		return h, 30, true
	}
	if m := reClockHour.FindStringSubmatch(lower); m != nil {
		h, _ := strconv.Atoi(m[1])
		return h, 0, true
	}
	return 0, 0, false
}

// extractDate finds a calendar date in the text. Explicit forms win over
// relative words; ambiguous dates without a year prefer the future.
func extractDate(lower string, now time.Time) (time.Time, bool) {
	if m := reDateThang.FindStringSubmatch(lower); m != nil {
		return buildDate(m[1], m[2], m[3], now), true
	}
	if m := reDateNumeric.FindStringSubmatch(lower); m != nil {
		return buildDate(m[1], m[2], m[3], now), true
	}

	switch {
	case strings.Contains(lower, "hôm nay") || strings.Contains(lower, "today"):
		return now, true
	case strings.Contains(lower, "ngày kia") || strings.Contains(lower, "ngày mốt"):
		return now.AddDate(0, 0, 2), true
	case containsWord(lower, "mai") || strings.Contains(lower, "tomorrow"):
		return now.AddDate(0, 0, 1), true
	}

	for name, wd := range weekdayNames {
		if !strings.Contains(lower, name) {
			continue
		}
		d := daysUntil(now.Weekday(), wd)
		if strings.Contains(lower, "tuần sau") || strings.Contains(lower, "tuần tới") {
			d += 7
		}
		return now.AddDate(0, 0, d), true
	}

	return time.Time{}, false
}

// buildDate assembles a date from day/month/optional-year strings.
// Without a year, a date already past this year lands in the next one.
func buildDate(dayStr, monthStr, yearStr string, now time.Time) time.Time {
	day, _ := strconv.Atoi(dayStr)
	month, _ := strconv.Atoi(monthStr)
	if yearStr != "" {
		year, _ := strconv.Atoi(yearStr)
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
	}
	d := time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, now.Location())
	if d.Before(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())) {
		d = d.AddDate(1, 0, 0)
	}
	return d
}

// daysUntil returns days from weekday `from` to the next occurrence of
// `to`, counting today's weekday as a week away.
func daysUntil(from, to time.Weekday) int {
	d := int(to) - int(from)
	if d <= 0 {
		d += 7
	}
	return d
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// containsWord reports whether w appears in s as a whitespace-separated token.
func containsWord(s, w string) bool {
	for _, tok := range strings.Fields(s) {
		if strings.Trim(tok, ".,!?") == w {
			return true
		}
	}
	return false
}
