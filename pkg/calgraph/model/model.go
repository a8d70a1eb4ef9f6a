package model

import (
	"strconv"
)

// Event is the central calendar entry.
type Event struct {
	ID          int64  `db:"id" json:"id"`
	Summary     string `db:"summary" json:"summary"`
	Description string `db:"description" json:"description"`
	Location    string `db:"location" json:"location"`
}

// Key returns the event id in its wire (GraphQL ID) form.
func (e Event) Key() string {
	return strconv.FormatInt(e.ID, 10)
}

// Attendee is an invited participant, identified by email.
type Attendee struct {
	ID      int64  `db:"id"`
	EventID int64  `db:"idevent"`
	Email   string `db:"email"`
}

// End is the wall-clock end of an event in a named timezone.
type End struct {
	ID       int64     `db:"id"`
	EventID  int64     `db:"idevent"`
	DateTime LocalTime `db:"datetime"`
	Timezone string    `db:"timezone"`
}

// Override is a reminder override (e.g. email 10 minutes before).
type Override struct {
	ID         int64  `db:"id"`
	EventID    int64  `db:"idevent"`
	Method     string `db:"method"`
	Minutes    int32  `db:"minutes"`
	ReminderID int64  `db:"idreminders"`
}

// Recurrence holds an RFC 5545 RRULE value such as "FREQ=DAILY".
type Recurrence struct {
	ID      int64  `db:"id"`
	EventID int64  `db:"idevent"`
	Rule    string `db:"rrule"`
}

// Reminder records whether the calendar default reminders apply.
type Reminder struct {
	ID         int64 `db:"id"`
	EventID    int64 `db:"idevent"`
	UseDefault bool  `db:"usedefault"`
}

// Start is the wall-clock start of an event in a named timezone.
type Start struct {
	ID       int64     `db:"id"`
	EventID  int64     `db:"idevent"`
	DateTime LocalTime `db:"datetime"`
	Timezone string    `db:"timezone"`
}

// NewEvent bundles everything needed to create one fully formed Event.
// Satellite ID and EventID fields are ignored on input.
type NewEvent struct {
	Summary     string
	Description string
	Location    string

	Attendee   Attendee
	End        End
	Override   Override
	Recurrence Recurrence
	Reminder   Reminder
	Start      Start
}

// Fields returns the Event row portion of the bundle.
func (n NewEvent) Fields() Event {
	return Event{
		Summary:     n.Summary,
		Description: n.Description,
		Location:    n.Location,
	}
}
