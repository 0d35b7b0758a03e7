// Package validation holds the pure field-format checks used by the
// booking and payment forms.
package validation

import (
	"regexp"
	"strings"
	"time"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)
	timePattern  = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

	phoneSeparators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")
)

// DateLayout is the form's date format.
const DateLayout = "2006-01-02"

// Email reports whether s looks like an email address.
func Email(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// NormalizePhone strips the separators customers commonly type.
func NormalizePhone(s string) string {
	return phoneSeparators.Replace(strings.TrimSpace(s))
}

// Phone accepts international numbers after separators are stripped.
func Phone(s string) bool {
	return phonePattern.MatchString(NormalizePhone(s))
}

// DateNotPast reports whether s is a YYYY-MM-DD date on or after the local
// day of now. The comparison uses now's location.
func DateNotPast(s string, now time.Time) bool {
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), now.Location())
	if err != nil {
		return false
	}
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return !day.Before(midnight)
}

// Time24 accepts HH:MM on a 24-hour clock.
func Time24(s string) bool {
	return timePattern.MatchString(strings.TrimSpace(s))
}

// OneOf reports whether value is one of allowed.
func OneOf[T comparable](value T, allowed []T) bool {
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}

// Required reports whether s has non-whitespace content.
func Required(s string) bool {
	return strings.TrimSpace(s) != ""
}

// Field messages shown next to inputs that fail a rule.
const (
	MsgRequired = "This field is required"
	MsgEmail    = "Please enter a valid email address"
	MsgPhone    = "Please enter a valid phone number"
	MsgDatePast = "Please choose today or a future date"
	MsgDate     = "Please enter a valid date"
	MsgTime     = "Please enter a valid time"
	MsgOption   = "Please choose one of the available options"
)
