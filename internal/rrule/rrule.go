package rrule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

var ErrUnsupportedFrequency = errors.New("recurring transactions repeat at most daily")

// ParseRRule parses an RFC 5545 RRULE string. Occurrences are computed in
// loc, so day-based rules land on local calendar days.
func ParseRRule(ruleStr string, dtstart time.Time, loc *time.Location) (*rrule.RRule, error) {
	// Handle RRULE: prefix if present
	ruleStr = strings.TrimPrefix(strings.TrimSpace(ruleStr), "RRULE:")

	opt, err := rrule.StrToROption(ruleStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RRULE: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	opt.Dtstart = dtstart.In(loc)
	return rrule.NewRRule(*opt)
}

// Validate checks that ruleStr parses and repeats no more often than daily.
func Validate(ruleStr string) error {
	if !IsRecurring(ruleStr) {
		return fmt.Errorf("failed to parse RRULE: missing FREQ")
	}
	opt, err := rrule.StrToROption(strings.TrimPrefix(strings.TrimSpace(ruleStr), "RRULE:"))
	if err != nil {
		return fmt.Errorf("failed to parse RRULE: %w", err)
	}
	switch opt.Freq {
	case rrule.DAILY, rrule.WEEKLY, rrule.MONTHLY, rrule.YEARLY:
		return nil
	}
	return ErrUnsupportedFrequency
}

// FirstOccurrence returns the first occurrence at or after dtstart.
// Returns nil if the rule never fires.
func FirstOccurrence(ruleStr string, dtstart time.Time, loc *time.Location) (*time.Time, error) {
	rule, err := ParseRRule(ruleStr, dtstart, loc)
	if err != nil {
		return nil, err
	}
	first := rule.After(dtstart, true)
	if first.IsZero() {
		return nil, nil
	}
	return &first, nil
}

// NextOccurrence returns the next occurrence strictly after the given time.
// Returns nil if there are no more occurrences.
func NextOccurrence(ruleStr string, dtstart time.Time, after time.Time, loc *time.Location) (*time.Time, error) {
	rule, err := ParseRRule(ruleStr, dtstart, loc)
	if err != nil {
		return nil, err
	}

	next := rule.After(after, false)
	if next.IsZero() {
		return nil, nil
	}
	return &next, nil
}

// NextOccurrences returns up to count occurrences strictly after the given time.
func NextOccurrences(ruleStr string, dtstart time.Time, after time.Time, count int, loc *time.Location) ([]time.Time, error) {
	rule, err := ParseRRule(ruleStr, dtstart, loc)
	if err != nil {
		return nil, err
	}

	var results []time.Time
	current := after
	for len(results) < count {
		next := rule.After(current, false)
		if next.IsZero() {
			break
		}
		results = append(results, next)
		current = next
	}
	return results, nil
}

// Builder creates an RRULE string from components.
type Builder struct {
	Freq       rrule.Frequency
	Interval   int
	ByWeekday  []rrule.Weekday
	ByMonthDay []int
	ByMonth    []int
	Count      int
	Until      *time.Time
}

const (
	FreqDaily   = rrule.DAILY
	FreqWeekly  = rrule.WEEKLY
	FreqMonthly = rrule.MONTHLY
	FreqYearly  = rrule.YEARLY
)

var freqNames = map[rrule.Frequency]string{
	rrule.DAILY:   "DAILY",
	rrule.WEEKLY:  "WEEKLY",
	rrule.MONTHLY: "MONTHLY",
	rrule.YEARLY:  "YEARLY",
}

var weekdayNames = map[rrule.Weekday]string{
	rrule.MO: "MO",
	rrule.TU: "TU",
	rrule.WE: "WE",
	rrule.TH: "TH",
	rrule.FR: "FR",
	rrule.SA: "SA",
	rrule.SU: "SU",
}

func joinInts(values []int) string {
	s := make([]string, len(values))
	for i, v := range values {
		s[i] = strconv.Itoa(v)
	}
	return strings.Join(s, ",")
}

func (b *Builder) String() string {
	parts := []string{fmt.Sprintf("FREQ=%s", freqNames[b.Freq])}

	if b.Interval > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", b.Interval))
	}
	if len(b.ByWeekday) > 0 {
		days := make([]string, len(b.ByWeekday))
		for i, d := range b.ByWeekday {
			days[i] = weekdayNames[d]
		}
		parts = append(parts, fmt.Sprintf("BYDAY=%s", strings.Join(days, ",")))
	}
	if len(b.ByMonthDay) > 0 {
		parts = append(parts, fmt.Sprintf("BYMONTHDAY=%s", joinInts(b.ByMonthDay)))
	}
	if len(b.ByMonth) > 0 {
		parts = append(parts, fmt.Sprintf("BYMONTH=%s", joinInts(b.ByMonth)))
	}
	if b.Count > 0 {
		parts = append(parts, fmt.Sprintf("COUNT=%d", b.Count))
	}
	if b.Until != nil {
		parts = append(parts, fmt.Sprintf("UNTIL=%s", b.Until.UTC().Format("20060102T150405Z")))
	}

	return strings.Join(parts, ";")
}

// FromShorthand turns "daily", "weekly", "monthly" or "yearly", optionally
// followed by ":N" for an interval, into an RRULE string. Raw RRULE strings
// are validated and returned without the RRULE: prefix.
func FromShorthand(s string) (string, error) {
	s = strings.TrimSpace(s)
	if IsRecurring(s) {
		if err := Validate(s); err != nil {
			return "", err
		}
		return strings.TrimPrefix(s, "RRULE:"), nil
	}

	name, every, _ := strings.Cut(strings.ToLower(s), ":")
	b := &Builder{Interval: 1}
	switch name {
	case "daily":
		b.Freq = FreqDaily
	case "weekly":
		b.Freq = FreqWeekly
	case "monthly":
		b.Freq = FreqMonthly
	case "yearly":
		b.Freq = FreqYearly
	default:
		return "", fmt.Errorf("unknown schedule %q", s)
	}
	if every != "" {
		n, err := strconv.Atoi(every)
		if err != nil || n < 1 {
			return "", fmt.Errorf("invalid interval %q", every)
		}
		b.Interval = n
	}
	return b.String(), nil
}

// HumanReadable returns an English description of the RRULE.
func HumanReadable(ruleStr string) string {
	ruleStr = strings.TrimPrefix(strings.TrimSpace(ruleStr), "RRULE:")

	info := make(map[string]string)
	for _, p := range strings.Split(ruleStr, ";") {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) == 2 {
			info[strings.ToUpper(kv[0])] = strings.ToUpper(kv[1])
		}
	}

	units := map[string]string{
		"DAILY":   "day",
		"WEEKLY":  "week",
		"MONTHLY": "month",
		"YEARLY":  "year",
	}
	unit, ok := units[info["FREQ"]]
	if !ok {
		return "once"
	}

	var result strings.Builder
	if interval := info["INTERVAL"]; interval == "" || interval == "1" {
		result.WriteString("every " + unit)
	} else {
		fmt.Fprintf(&result, "every %s %ss", interval, unit)
	}

	if byDay := info["BYDAY"]; byDay != "" {
		dayMap := map[string]string{
			"MO": "Mon", "TU": "Tue", "WE": "Wed", "TH": "Thu",
			"FR": "Fri", "SA": "Sat", "SU": "Sun",
		}
		var days []string
		for _, d := range strings.Split(byDay, ",") {
			if name, ok := dayMap[d]; ok {
				days = append(days, name)
			}
		}
		if len(days) > 0 {
			result.WriteString(" on " + strings.Join(days, ", "))
		}
	}

	if byMonthDay := info["BYMONTHDAY"]; byMonthDay != "" {
		result.WriteString(" on day " + byMonthDay)
	}

	if count := info["COUNT"]; count != "" {
		fmt.Fprintf(&result, ", %s times", count)
	}

	if until := info["UNTIL"]; until != "" {
		if t, err := time.Parse("20060102T150405Z", until); err == nil {
			fmt.Fprintf(&result, ", until %s", t.Format("2006-01-02"))
		}
	}

	return result.String()
}

// IsRecurring checks if the RRULE string represents a recurring schedule.
func IsRecurring(ruleStr string) bool {
	return ruleStr != "" && strings.Contains(strings.ToUpper(ruleStr), "FREQ=")
}
