package pipeline

import (
	"net/mail"
	"strings"
	"time"
	_ "time/tzdata" // timezone names must resolve on hosts without zoneinfo

	"github.com/teambition/rrule-go"

	cerrors "github.com/randalmurphal/calgraph/pkg/calgraph/errors"
	"github.com/randalmurphal/calgraph/pkg/calgraph/model"
)

// Override delivery methods.
const (
	MethodEmail = "email"
	MethodPopup = "popup"
)

// Validate checks a creation bundle before anything is written.
// It returns the first problem found as a *errors.ValidationError.
func Validate(in model.NewEvent) error {
	if strings.TrimSpace(in.Summary) == "" {
		return cerrors.Invalid("summary", "must not be empty")
	}

	email := strings.TrimSpace(in.Attendee.Email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return cerrors.Invalid("attendee.email", "%q is not an email address", in.Attendee.Email)
	}

	start, err := resolve("start", in.Start.DateTime, in.Start.Timezone)
	if err != nil {
		return err
	}
	end, err := resolve("end", in.End.DateTime, in.End.Timezone)
	if err != nil {
		return err
	}
	if end.Before(start) {
		return cerrors.Invalid("end", "%s %s is before start %s %s",
			in.End.DateTime, in.End.Timezone, in.Start.DateTime, in.Start.Timezone)
	}

	switch in.Override.Method {
	case MethodEmail, MethodPopup:
	default:
		return cerrors.Invalid("overrides.method", "must be %q or %q, got %q", MethodEmail, MethodPopup, in.Override.Method)
	}
	if in.Override.Minutes < 0 {
		return cerrors.Invalid("overrides.minutes", "must not be negative, got %d", in.Override.Minutes)
	}

	rule := strings.TrimPrefix(strings.TrimSpace(in.Recurrence.Rule), "RRULE:")
	if rule == "" {
		return cerrors.Invalid("recurrence.rule", "must not be empty")
	}
	if _, err := rrule.StrToRRule(rule); err != nil {
		return cerrors.Invalid("recurrence.rule", "%v", err)
	}
	return nil
}

func resolve(field string, dt model.LocalTime, tz string) (time.Time, error) {
	if tz == "" {
		return time.Time{}, cerrors.Invalid(field+".timezone", "must not be empty")
	}
	if dt.IsZero() {
		return time.Time{}, cerrors.Invalid(field+".datetime", "must be set")
	}
	t, err := dt.Resolve(tz)
	if err != nil {
		return time.Time{}, cerrors.Invalid(field+".timezone", "unknown timezone %q", tz)
	}
	return t, nil
}
