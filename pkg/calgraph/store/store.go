// Package store provides table-level reads and writes for events and their
// satellite records. It holds no business logic beyond query shaping.
package store

import (
	"context"
	"errors"

	"github.com/randalmurphal/calgraph/pkg/calgraph/model"
)

// Reader is the read side used by resolvers, the feed and the batch loaders.
// Implementations must be safe for concurrent use.
type Reader interface {
	// ListEvents returns every event ordered by id.
	ListEvents(ctx context.Context) ([]model.Event, error)

	// GetEvent returns one event, or a NotFoundError if it doesn't exist.
	GetEvent(ctx context.Context, id int64) (model.Event, error)

	// The <Satellite>sByEvent methods select all records whose idevent is in
	// eventIDs with a single query. Missing ids are simply absent from the
	// result; an empty eventIDs returns an empty result without querying.
	AttendeesByEvent(ctx context.Context, eventIDs []int64) ([]model.Attendee, error)
	EndsByEvent(ctx context.Context, eventIDs []int64) ([]model.End, error)
	OverridesByEvent(ctx context.Context, eventIDs []int64) ([]model.Override, error)
	RecurrencesByEvent(ctx context.Context, eventIDs []int64) ([]model.Recurrence, error)
	RemindersByEvent(ctx context.Context, eventIDs []int64) ([]model.Reminder, error)
	StartsByEvent(ctx context.Context, eventIDs []int64) ([]model.Start, error)
}

// Tx is the write side of one unit of work. Every insert runs inside the
// transaction that InTx opened; nothing is visible to readers until commit.
type Tx interface {
	// InsertEvent inserts the event row and returns its generated id.
	InsertEvent(ctx context.Context, e model.Event) (int64, error)

	InsertAttendee(ctx context.Context, a model.Attendee) error
	InsertEnd(ctx context.Context, e model.End) error
	InsertOverride(ctx context.Context, o model.Override) error
	InsertRecurrence(ctx context.Context, r model.Recurrence) error
	InsertReminder(ctx context.Context, r model.Reminder) error
	InsertStart(ctx context.Context, s model.Start) error
}

// Sentinel errors for store operations.
var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("event store closed")
)
