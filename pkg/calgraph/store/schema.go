package store

// Table names follow the existing calendar schema; "end" is reserved in SQL,
// hence endl.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS event (
	id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
	summary TEXT NOT NULL,
	description TEXT NOT NULL,
	location TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS attendees (
	id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
	email TEXT NOT NULL,
	idevent INTEGER NOT NULL REFERENCES event(id)
);
CREATE TABLE IF NOT EXISTS endl (
	id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
	datetime TEXT NOT NULL,
	timezone TEXT NOT NULL,
	idevent INTEGER NOT NULL REFERENCES event(id)
);
CREATE TABLE IF NOT EXISTS overrides (
	id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
	method TEXT NOT NULL,
	minutes INTEGER NOT NULL,
	idreminders INTEGER NOT NULL DEFAULT 0,
	idevent INTEGER NOT NULL REFERENCES event(id)
);
CREATE TABLE IF NOT EXISTS recurrence (
	id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
	rrule TEXT NOT NULL,
	idevent INTEGER NOT NULL REFERENCES event(id)
);
CREATE TABLE IF NOT EXISTS reminders (
	id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
	usedefault BOOLEAN NOT NULL,
	idevent INTEGER NOT NULL REFERENCES event(id)
);
CREATE TABLE IF NOT EXISTS start (
	id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
	datetime TEXT NOT NULL,
	timezone TEXT NOT NULL,
	idevent INTEGER NOT NULL REFERENCES event(id)
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS event (
	id SERIAL PRIMARY KEY,
	summary TEXT NOT NULL,
	description TEXT NOT NULL,
	location TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS attendees (
	id SERIAL PRIMARY KEY,
	email TEXT NOT NULL,
	idevent INTEGER NOT NULL REFERENCES event(id)
);
CREATE TABLE IF NOT EXISTS endl (
	id SERIAL PRIMARY KEY,
	datetime TEXT NOT NULL,
	timezone TEXT NOT NULL,
	idevent INTEGER NOT NULL REFERENCES event(id)
);
CREATE TABLE IF NOT EXISTS overrides (
	id SERIAL PRIMARY KEY,
	method TEXT NOT NULL,
	minutes INTEGER NOT NULL,
	idreminders INTEGER NOT NULL DEFAULT 0,
	idevent INTEGER NOT NULL REFERENCES event(id)
);
CREATE TABLE IF NOT EXISTS recurrence (
	id SERIAL PRIMARY KEY,
	rrule TEXT NOT NULL,
	idevent INTEGER NOT NULL REFERENCES event(id)
);
CREATE TABLE IF NOT EXISTS reminders (
	id SERIAL PRIMARY KEY,
	usedefault BOOLEAN NOT NULL,
	idevent INTEGER NOT NULL REFERENCES event(id)
);
CREATE TABLE IF NOT EXISTS start (
	id SERIAL PRIMARY KEY,
	datetime TEXT NOT NULL,
	timezone TEXT NOT NULL,
	idevent INTEGER NOT NULL REFERENCES event(id)
);
`

// satelliteTables get an idevent index so the batch selects stay cheap.
var satelliteTables = []string{"attendees", "endl", "overrides", "recurrence", "reminders", "start"}
