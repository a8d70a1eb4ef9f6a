// Package feed renders the stored events as an iCalendar (RFC 5545) feed.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/randalmurphal/calgraph/pkg/calgraph/loader"
	"github.com/randalmurphal/calgraph/pkg/calgraph/model"
	"github.com/randalmurphal/calgraph/pkg/calgraph/pipeline"
	"github.com/randalmurphal/calgraph/pkg/calgraph/store"
)

// ProductID identifies the feed producer.
const ProductID = "-//calgraph//EN"

// Handler serves GET requests with the full calendar.
type Handler struct {
	store  store.Reader
	domain string
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler creates a feed over r. domain qualifies event UIDs.
func NewHandler(r store.Reader, domain string, logger *slog.Logger) *Handler {
	if domain == "" {
		domain = "calgraph"
	}
	return &Handler{store: r, domain: domain, logger: logger, now: time.Now}
}

// ServeHTTP writes the calendar as text/calendar.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cal, err := h.Build(r.Context())
	if err != nil {
		if h.logger != nil {
			h.logger.Error("building calendar feed failed", slog.String("error", err.Error()))
		}
		http.Error(w, "calendar unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", ical.MIMEType+"; charset=utf-8")
	if r.Method == http.MethodHead {
		return
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil && h.logger != nil {
		h.logger.Error("encoding calendar feed failed", slog.String("error", err.Error()))
	}
}

// Build assembles the calendar. Satellites load through the request's
// loaders, one query per entity for the whole feed. Events missing a
// satellite are skipped with a warning.
func (h *Handler) Build(ctx context.Context) (*ical.Calendar, error) {
	events, err := h.store.ListEvents(ctx)
	if err != nil {
		return nil, err
	}

	l := loader.For(ctx)
	if l == nil {
		l = loader.New(h.store, loader.WithLogger(h.logger))
	}
	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	l.Prefetch(ctx, ids)

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	stamp := h.now().UTC()
	for _, e := range events {
		vevent, err := h.component(ctx, l, e, stamp)
		if err != nil {
			if h.logger != nil {
				h.logger.Warn("skipping event in feed",
					slog.Int64("event_id", e.ID),
					slog.String("error", err.Error()))
			}
			continue
		}
		cal.Children = append(cal.Children, vevent)
	}
	return cal, nil
}

func (h *Handler) component(ctx context.Context, l *loader.Loaders, e model.Event, stamp time.Time) (*ical.Component, error) {
	start, err := l.LoadStart(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	end, err := l.LoadEnd(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	attendee, err := l.LoadAttendee(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	override, err := l.LoadOverride(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	recurrence, err := l.LoadRecurrence(ctx, e.ID)
	if err != nil {
		return nil, err
	}

	dtstart, err := start.DateTime.Resolve(start.Timezone)
	if err != nil {
		return nil, fmt.Errorf("start timezone: %w", err)
	}
	dtend, err := end.DateTime.Resolve(end.Timezone)
	if err != nil {
		return nil, fmt.Errorf("end timezone: %w", err)
	}

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, fmt.Sprintf("%d@%s", e.ID, h.domain))
	ve.Props.SetText(ical.PropSummary, e.Summary)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	ve.Props.SetDateTime(ical.PropDateTimeStart, dtstart)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, dtend)

	if e.Description != "" {
		ve.Props.SetText(ical.PropDescription, e.Description)
	}
	if e.Location != "" {
		ve.Props.SetText(ical.PropLocation, e.Location)
	}
	if rule := strings.TrimPrefix(recurrence.Rule, "RRULE:"); rule != "" {
		p := ical.NewProp(ical.PropRecurrenceRule)
		p.Value = rule
		ve.Props.Set(p)
	}

	mailto := ical.NewProp(ical.PropAttendee)
	mailto.Value = "mailto:" + attendee.Email
	ve.Props.Add(mailto)

	ve.Children = append(ve.Children, alarm(e, attendee, override))
	return ve, nil
}

// alarm renders the reminder override as a VALARM.
func alarm(e model.Event, attendee model.Attendee, o model.Override) *ical.Component {
	va := ical.NewComponent(ical.CompAlarm)

	trigger := ical.NewProp(ical.PropTrigger)
	trigger.Value = fmt.Sprintf("-PT%dM", o.Minutes)
	va.Props.Set(trigger)
	va.Props.SetText(ical.PropDescription, e.Summary)

	if o.Method == pipeline.MethodEmail {
		va.Props.SetText(ical.PropAction, "EMAIL")
		va.Props.SetText(ical.PropSummary, e.Summary)
		to := ical.NewProp(ical.PropAttendee)
		to.Value = "mailto:" + attendee.Email
		va.Props.Add(to)
	} else {
		va.Props.SetText(ical.PropAction, "DISPLAY")
	}
	return va
}
