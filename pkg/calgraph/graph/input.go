package graph

import (
	graphql "github.com/graph-gophers/graphql-go"

	"github.com/randalmurphal/calgraph/pkg/calgraph/model"
)

// EventInput mirrors the EventInput input type.
type EventInput struct {
	Summary     string
	Description string
	Location    *string
	Attendee    AttendeeInput
	End         EndInput
	Overrides   OverrideInput
	Recurrence  RecurrenceInput
	Reminders   ReminderInput
	Start       StartInput
}

type AttendeeInput struct {
	Email string
}

type EndInput struct {
	Datetime NaiveDateTime
	Timezone string
}

type OverrideInput struct {
	Method     string
	Minutes    int32
	ReminderID *graphql.ID
}

type RecurrenceInput struct {
	Rule string
}

type ReminderInput struct {
	UseDefault bool
}

type StartInput struct {
	Datetime NaiveDateTime
	Timezone string
}

func (in EventInput) toModel() (model.NewEvent, error) {
	out := model.NewEvent{
		Summary:     in.Summary,
		Description: in.Description,
		Attendee:    model.Attendee{Email: in.Attendee.Email},
		End:         model.End{DateTime: in.End.Datetime.Value, Timezone: in.End.Timezone},
		Override:    model.Override{Method: in.Overrides.Method, Minutes: in.Overrides.Minutes},
		Recurrence:  model.Recurrence{Rule: in.Recurrence.Rule},
		Reminder:    model.Reminder{UseDefault: in.Reminders.UseDefault},
		Start:       model.Start{DateTime: in.Start.Datetime.Value, Timezone: in.Start.Timezone},
	}
	if in.Location != nil {
		out.Location = *in.Location
	}
	if in.Overrides.ReminderID != nil {
		id, err := parseID("overrides.reminderId", *in.Overrides.ReminderID)
		if err != nil {
			return model.NewEvent{}, err
		}
		out.Override.ReminderID = id
	}
	return out, nil
}
