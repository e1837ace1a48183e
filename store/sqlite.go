// Package store persists trips and catches in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidCatch is returned when a catch has no species.
	ErrInvalidCatch = errors.New("catch species is required")
)

// Store is the record store used by the logbook, exporters and bot.
type Store interface {
	InsertTrip(ctx context.Context, t Trip) (int64, error)
	EndTrip(ctx context.Context, id, endMillis int64) error
	ActiveTrip(ctx context.Context) (*Trip, error)
	ListTrips(ctx context.Context) ([]Trip, error)

	InsertCatch(ctx context.Context, c Catch) (int64, error)
	ListCatches(ctx context.Context) ([]Catch, error)
	GetCatch(ctx context.Context, id int64) (*Catch, error)
	DeleteCatch(ctx context.Context, id int64) error

	Subscribe() (<-chan Event, func())
	SnapshotTo(ctx context.Context, path string) error
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS trips (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	start_millis INTEGER NOT NULL,
	end_millis   INTEGER,
	name         TEXT,
	waterway     TEXT,
	notes        TEXT
);

CREATE TABLE IF NOT EXISTS catches (
	id                        INTEGER PRIMARY KEY AUTOINCREMENT,
	trip_id                   INTEGER REFERENCES trips(id) ON DELETE CASCADE,
	timestamp_millis          INTEGER NOT NULL,
	species                   TEXT NOT NULL,
	length_cm                 REAL,
	weight_kg                 REAL,
	lure                      TEXT,
	notes                     TEXT,
	latitude                  REAL,
	longitude                 REAL,
	accuracy_m                REAL,
	photo_ref                 TEXT,
	weather_temp_c            REAL,
	weather_pressure_hpa      REAL,
	weather_fetched_at_millis INTEGER,
	moon_phase_name           TEXT,
	moon_illumination_pct     INTEGER
);

CREATE INDEX IF NOT EXISTS idx_catches_trip_id ON catches(trip_id);
`

const catchColumns = `id, trip_id, timestamp_millis, species, length_cm, weight_kg, lure, notes,
	latitude, longitude, accuracy_m, photo_ref, weather_temp_c, weather_pressure_hpa,
	weather_fetched_at_millis, moon_phase_name, moon_illumination_pct`

const tripColumns = `id, start_millis, end_millis, name, waterway, notes`

// SQLite implements Store using the pure Go modernc.org/sqlite driver.
type SQLite struct {
	db  *sql.DB
	hub *hub
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*SQLite, error) {
	// Foreign keys are per connection in SQLite, so they go in the DSN.
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		log.Println("WARN: could not set WAL mode:", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db, hub: newHub()}, nil
}

func (s *SQLite) InsertTrip(ctx context.Context, t Trip) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO trips(start_millis, end_millis, name, waterway, notes) VALUES(?,?,?,?,?)`,
		t.StartMillis, t.EndMillis, t.Name, t.Waterway, t.Notes)
	if err != nil {
		return 0, fmt.Errorf("insert trip: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.hub.publish(Event{Kind: TripStarted, ID: id})
	return id, nil
}

func (s *SQLite) EndTrip(ctx context.Context, id, endMillis int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE trips SET end_millis = ? WHERE id = ?`, endMillis, id)
	if err != nil {
		return fmt.Errorf("end trip %d: %w", id, err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("end trip %d: %w", id, err)
	}
	s.hub.publish(Event{Kind: TripEnded, ID: id})
	return nil
}

// ActiveTrip returns the most recently started trip without an end time, or nil.
func (s *SQLite) ActiveTrip(ctx context.Context) (*Trip, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE end_millis IS NULL ORDER BY start_millis DESC, id DESC LIMIT 1`)
	t, err := scanTrip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active trip: %w", err)
	}
	return &t, nil
}

func (s *SQLite) ListTrips(ctx context.Context) ([]Trip, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+tripColumns+` FROM trips ORDER BY start_millis DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	out := make([]Trip, 0)
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) InsertCatch(ctx context.Context, c Catch) (int64, error) {
	c.Species = strings.TrimSpace(c.Species)
	if c.Species == "" {
		return 0, ErrInvalidCatch
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO catches(
		trip_id, timestamp_millis, species, length_cm, weight_kg, lure, notes,
		latitude, longitude, accuracy_m, photo_ref, weather_temp_c, weather_pressure_hpa,
		weather_fetched_at_millis, moon_phase_name, moon_illumination_pct
	) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.TripID, c.TimestampMillis, c.Species, c.LengthCm, c.WeightKg, c.Lure, c.Notes,
		c.Latitude, c.Longitude, c.AccuracyM, c.PhotoRef, c.WeatherTempC, c.WeatherPressureHpa,
		c.WeatherFetchedAtMillis, c.MoonPhaseName, c.MoonIlluminationPct)
	if err != nil {
		return 0, fmt.Errorf("insert catch: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.hub.publish(Event{Kind: CatchAdded, ID: id})
	return id, nil
}

// ListCatches returns every catch, newest first.
func (s *SQLite) ListCatches(ctx context.Context) ([]Catch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+catchColumns+` FROM catches ORDER BY timestamp_millis DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list catches: %w", err)
	}
	defer rows.Close()

	out := make([]Catch, 0)
	for rows.Next() {
		c, err := scanCatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) GetCatch(ctx context.Context, id int64) (*Catch, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+catchColumns+` FROM catches WHERE id = ?`, id)
	c, err := scanCatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catch %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("catch %d: %w", id, err)
	}
	return &c, nil
}

func (s *SQLite) DeleteCatch(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM catches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete catch %d: %w", id, err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("delete catch %d: %w", id, err)
	}
	s.hub.publish(Event{Kind: CatchDeleted, ID: id})
	return nil
}

// Subscribe returns a channel receiving an Event after each change and a
// cancel func that unregisters and closes it.
func (s *SQLite) Subscribe() (<-chan Event, func()) {
	return s.hub.subscribe()
}

// SnapshotTo writes a consistent copy of the database to path, replacing any existing file.
func (s *SQLite) SnapshotTo(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove old snapshot: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("snapshot database: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	s.hub.closeAll()
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrip(r scanner) (Trip, error) {
	var t Trip
	err := r.Scan(&t.ID, &t.StartMillis, &t.EndMillis, &t.Name, &t.Waterway, &t.Notes)
	return t, err
}

func scanCatch(r scanner) (Catch, error) {
	var c Catch
	err := r.Scan(&c.ID, &c.TripID, &c.TimestampMillis, &c.Species, &c.LengthCm, &c.WeightKg,
		&c.Lure, &c.Notes, &c.Latitude, &c.Longitude, &c.AccuracyM, &c.PhotoRef,
		&c.WeatherTempC, &c.WeatherPressureHpa, &c.WeatherFetchedAtMillis,
		&c.MoonPhaseName, &c.MoonIlluminationPct)
	return c, err
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
