// Package model defines the calendar domain types shared by storage, loading,
// creation and the API surface.
//
// An Event owns exactly one record of each satellite type (Attendee, End,
// Override, Recurrence, Reminder, Start), joined by the idevent foreign key.
package model
