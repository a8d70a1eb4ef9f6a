package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers "sqlite"

	cerrors "github.com/randalmurphal/calgraph/pkg/calgraph/errors"
	"github.com/randalmurphal/calgraph/pkg/calgraph/model"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// SQLStore persists events to SQLite or Postgres through one shared pool.
type SQLStore struct {
	db     *sqlx.DB
	driver string
	closed atomic.Bool
}

// Compile-time interface check.
var _ Reader = (*SQLStore)(nil)

// DriverFor picks the driver for a connection string: postgres URLs use pgx,
// anything else is treated as a SQLite path (":memory:" included).
func DriverFor(url string) string {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// Open connects to the database. For SQLite it enables foreign keys, WAL and
// a busy timeout, and limits the pool to a single connection so ":memory:"
// databases are shared across callers.
func Open(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLStore{db: db, driver: driver}, nil
}

// OpenURL opens the database named by a connection string, see DriverFor.
func OpenURL(url string) (*SQLStore, error) {
	return Open(DriverFor(url), url)
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Migrate creates the event and satellite tables if they don't exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	schema := sqliteSchema
	if s.driver == DriverPostgres {
		schema = postgresSchema
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return cerrors.Storage("begin migrate", err)
	}
	defer tx.Rollback()

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return cerrors.Storage("create table", err)
		}
	}
	for _, table := range satelliteTables {
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_idevent ON %s(idevent)", table, table)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return cerrors.Storage("create index", err)
		}
	}

	return cerrors.Storage("commit migrate", tx.Commit())
}

// ListEvents implements Reader.
func (s *SQLStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	events := []model.Event{}
	err := s.db.SelectContext(ctx, &events, `
		SELECT id, summary, description, location
		FROM event
		ORDER BY id
	`)
	if err != nil {
		return nil, cerrors.Storage("list events", err)
	}
	return events, nil
}

// GetEvent implements Reader.
func (s *SQLStore) GetEvent(ctx context.Context, id int64) (model.Event, error) {
	if s.closed.Load() {
		return model.Event{}, ErrStoreClosed
	}

	var e model.Event
	err := s.db.GetContext(ctx, &e, s.db.Rebind(`
		SELECT id, summary, description, location
		FROM event
		WHERE id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, cerrors.NotFound("event", id)
	}
	if err != nil {
		return model.Event{}, cerrors.Storage("get event", err)
	}
	return e, nil
}

// AttendeesByEvent implements Reader.
func (s *SQLStore) AttendeesByEvent(ctx context.Context, eventIDs []int64) ([]model.Attendee, error) {
	return selectByEvent[model.Attendee](ctx, s, "select attendees",
		`SELECT id, idevent, email FROM attendees WHERE idevent IN (?) ORDER BY id`, eventIDs)
}

// EndsByEvent implements Reader.
func (s *SQLStore) EndsByEvent(ctx context.Context, eventIDs []int64) ([]model.End, error) {
	return selectByEvent[model.End](ctx, s, "select end",
		`SELECT id, idevent, datetime, timezone FROM endl WHERE idevent IN (?) ORDER BY id`, eventIDs)
}

// OverridesByEvent implements Reader.
func (s *SQLStore) OverridesByEvent(ctx context.Context, eventIDs []int64) ([]model.Override, error) {
	return selectByEvent[model.Override](ctx, s, "select overrides",
		`SELECT id, idevent, method, minutes, idreminders FROM overrides WHERE idevent IN (?) ORDER BY id`, eventIDs)
}

// RecurrencesByEvent implements Reader.
func (s *SQLStore) RecurrencesByEvent(ctx context.Context, eventIDs []int64) ([]model.Recurrence, error) {
	return selectByEvent[model.Recurrence](ctx, s, "select recurrence",
		`SELECT id, idevent, rrule FROM recurrence WHERE idevent IN (?) ORDER BY id`, eventIDs)
}

// RemindersByEvent implements Reader.
func (s *SQLStore) RemindersByEvent(ctx context.Context, eventIDs []int64) ([]model.Reminder, error) {
	return selectByEvent[model.Reminder](ctx, s, "select reminders",
		`SELECT id, idevent, usedefault FROM reminders WHERE idevent IN (?) ORDER BY id`, eventIDs)
}

// StartsByEvent implements Reader.
func (s *SQLStore) StartsByEvent(ctx context.Context, eventIDs []int64) ([]model.Start, error) {
	return selectByEvent[model.Start](ctx, s, "select start",
		`SELECT id, idevent, datetime, timezone FROM start WHERE idevent IN (?) ORDER BY id`, eventIDs)
}

// selectByEvent expands the IN (?) placeholder for eventIDs and runs one query.
func selectByEvent[T any](ctx context.Context, s *SQLStore, op, query string, eventIDs []int64) ([]T, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	rows := []T{}
	if len(eventIDs) == 0 {
		return rows, nil
	}

	q, args, err := sqlx.In(query, eventIDs)
	if err != nil {
		return nil, cerrors.Storage(op, err)
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, cerrors.Storage(op, err)
	}
	return rows, nil
}

// InTx runs fn inside one transaction. If fn returns an error (or ctx is
// cancelled before commit) the transaction is rolled back and no row written
// by fn is ever visible. The connection is released in every case.
func (s *SQLStore) InTx(ctx context.Context, fn func(Tx) error) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return cerrors.Storage("begin", err)
	}
	// Rollback after a successful commit is a no-op.
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return cerrors.Storage("commit", tx.Commit())
}

// DB exposes the underlying pool for health checks and tests.
func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

// Driver returns the driver name the store was opened with.
func (s *SQLStore) Driver() string {
	return s.driver
}

// Ping checks the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return cerrors.Storage("ping", s.db.PingContext(ctx))
}

// Close releases the pool. Closing twice is safe.
func (s *SQLStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

// sqlTx implements Tx on a sqlx transaction.
type sqlTx struct {
	tx *sqlx.Tx
}

func (t *sqlTx) InsertEvent(ctx context.Context, e model.Event) (int64, error) {
	var id int64
	err := t.tx.QueryRowxContext(ctx, t.tx.Rebind(`
		INSERT INTO event (summary, description, location)
		VALUES (?, ?, ?)
		RETURNING id
	`), e.Summary, e.Description, e.Location).Scan(&id)
	if err != nil {
		return 0, cerrors.Storage("insert event", err)
	}
	return id, nil
}

func (t *sqlTx) InsertAttendee(ctx context.Context, a model.Attendee) error {
	return t.exec(ctx, "insert attendee",
		`INSERT INTO attendees (email, idevent) VALUES (:email, :idevent)`, a)
}

func (t *sqlTx) InsertEnd(ctx context.Context, e model.End) error {
	return t.exec(ctx, "insert end",
		`INSERT INTO endl (datetime, timezone, idevent) VALUES (:datetime, :timezone, :idevent)`, e)
}

func (t *sqlTx) InsertOverride(ctx context.Context, o model.Override) error {
	return t.exec(ctx, "insert override",
		`INSERT INTO overrides (method, minutes, idreminders, idevent) VALUES (:method, :minutes, :idreminders, :idevent)`, o)
}

func (t *sqlTx) InsertRecurrence(ctx context.Context, r model.Recurrence) error {
	return t.exec(ctx, "insert recurrence",
		`INSERT INTO recurrence (rrule, idevent) VALUES (:rrule, :idevent)`, r)
}

func (t *sqlTx) InsertReminder(ctx context.Context, r model.Reminder) error {
	return t.exec(ctx, "insert reminder",
		`INSERT INTO reminders (usedefault, idevent) VALUES (:usedefault, :idevent)`, r)
}

func (t *sqlTx) InsertStart(ctx context.Context, s model.Start) error {
	return t.exec(ctx, "insert start",
		`INSERT INTO start (datetime, timezone, idevent) VALUES (:datetime, :timezone, :idevent)`, s)
}

func (t *sqlTx) exec(ctx context.Context, op, query string, arg any) error {
	_, err := t.tx.NamedExecContext(ctx, query, arg)
	return cerrors.Storage(op, err)
}
