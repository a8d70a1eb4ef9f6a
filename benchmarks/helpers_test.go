package benchmarks

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/calgraph/pkg/calgraph/model"
	"github.com/randalmurphal/calgraph/pkg/calgraph/pipeline"
	"github.com/randalmurphal/calgraph/pkg/calgraph/store"
)

func mustLocal(b *testing.B, s string) model.LocalTime {
	b.Helper()
	lt, err := model.ParseLocalTime(s)
	if err != nil {
		b.Fatal(err)
	}
	return lt
}

func standup(b *testing.B, n int) model.NewEvent {
	return model.NewEvent{
		Summary:     fmt.Sprintf("Standup %d", n),
		Description: "Daily sync",
		Attendee:    model.Attendee{Email: "a@x.com"},
		Start:       model.Start{DateTime: mustLocal(b, "2024-01-01T09:00:00"), Timezone: "Europe/Berlin"},
		End:         model.End{DateTime: mustLocal(b, "2024-01-01T09:15:00"), Timezone: "Europe/Berlin"},
		Recurrence:  model.Recurrence{Rule: "FREQ=DAILY;BYDAY=MO,TU,WE,TH,FR"},
		Reminder:    model.Reminder{UseDefault: false},
		Override:    model.Override{Method: "popup", Minutes: 5},
	}
}

// newStore opens a migrated SQLite store in a temp dir.
func newStore(b *testing.B) *store.SQLStore {
	b.Helper()
	s, err := store.Open(store.DriverSQLite, filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		b.Fatal(err)
	}
	return s
}

// seed creates n complete events and returns their ids.
func seed(b *testing.B, s *store.SQLStore, n int) []int64 {
	b.Helper()
	creator := pipeline.NewCreator(s)
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		e, err := creator.Create(context.Background(), standup(b, i))
		if err != nil {
			b.Fatal(err)
		}
		ids = append(ids, e.ID)
	}
	return ids
}
