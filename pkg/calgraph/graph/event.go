package graph

import (
	"context"
	"strconv"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/randalmurphal/calgraph/pkg/calgraph/loader"
	"github.com/randalmurphal/calgraph/pkg/calgraph/model"
)

// EventResolver resolves Event. Satellite fields go through the request's
// loaders and fail with NOT_FOUND when the row is missing.
type EventResolver struct {
	e       model.Event
	loaders *loader.Loaders
}

func (r *EventResolver) ID() graphql.ID {
	return graphql.ID(r.e.Key())
}

func (r *EventResolver) Summary() string {
	return r.e.Summary
}

func (r *EventResolver) Description() string {
	return r.e.Description
}

func (r *EventResolver) Location() *string {
	if r.e.Location == "" {
		return nil
	}
	return &r.e.Location
}

func (r *EventResolver) Attendee(ctx context.Context) (*AttendeeResolver, error) {
	a, err := r.loaders.LoadAttendee(ctx, r.e.ID)
	if err != nil {
		return nil, err
	}
	return &AttendeeResolver{a}, nil
}

func (r *EventResolver) End(ctx context.Context) (*EndResolver, error) {
	v, err := r.loaders.LoadEnd(ctx, r.e.ID)
	if err != nil {
		return nil, err
	}
	return &EndResolver{v}, nil
}

func (r *EventResolver) Overrides(ctx context.Context) (*OverrideResolver, error) {
	o, err := r.loaders.LoadOverride(ctx, r.e.ID)
	if err != nil {
		return nil, err
	}
	return &OverrideResolver{o}, nil
}

func (r *EventResolver) Recurrence(ctx context.Context) (*RecurrenceResolver, error) {
	v, err := r.loaders.LoadRecurrence(ctx, r.e.ID)
	if err != nil {
		return nil, err
	}
	return &RecurrenceResolver{v}, nil
}

func (r *EventResolver) Reminders(ctx context.Context) (*ReminderResolver, error) {
	v, err := r.loaders.LoadReminder(ctx, r.e.ID)
	if err != nil {
		return nil, err
	}
	return &ReminderResolver{v}, nil
}

func (r *EventResolver) Start(ctx context.Context) (*StartResolver, error) {
	v, err := r.loaders.LoadStart(ctx, r.e.ID)
	if err != nil {
		return nil, err
	}
	return &StartResolver{v}, nil
}

type AttendeeResolver struct{ a model.Attendee }

func (r *AttendeeResolver) Email() string { return r.a.Email }

type EndResolver struct{ e model.End }

func (r *EndResolver) Datetime() NaiveDateTime { return NaiveDateTime{r.e.DateTime} }
func (r *EndResolver) Timezone() string        { return r.e.Timezone }

type OverrideResolver struct{ o model.Override }

func (r *OverrideResolver) Method() string { return r.o.Method }
func (r *OverrideResolver) Minutes() int32 { return r.o.Minutes }
func (r *OverrideResolver) ReminderID() graphql.ID {
	return graphql.ID(strconv.FormatInt(r.o.ReminderID, 10))
}

type RecurrenceResolver struct{ r model.Recurrence }

func (r *RecurrenceResolver) Rule() string { return r.r.Rule }

type ReminderResolver struct{ r model.Reminder }

func (r *ReminderResolver) UseDefault() bool { return r.r.UseDefault }

type StartResolver struct{ s model.Start }

func (r *StartResolver) Datetime() NaiveDateTime { return NaiveDateTime{r.s.DateTime} }
func (r *StartResolver) Timezone() string        { return r.s.Timezone }
