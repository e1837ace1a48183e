// Package logbook records trips and catches, enriching each catch with the
// moon phase and, when a position is known, the current weather.
package logbook

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"fishlog/moon"
	"fishlog/store"
	"fishlog/weather"
)

var (
	ErrTripActive   = errors.New("a trip is already active")
	ErrNoActiveTrip = errors.New("no active trip")
)

// TripDraft holds user input for a new trip. Blank values are stored as absent.
type TripDraft struct {
	Name     string
	Waterway string
	Notes    string
}

// CatchDraft holds user input for a new catch.
type CatchDraft struct {
	Species string
	// Zero time means now.
	Time time.Time

	LengthCm *float64
	WeightKg *float64
	Lure     string
	Notes    string

	Latitude  *float64
	Longitude *float64
	AccuracyM *float64
	PhotoRef  string
}

// Logbook is the repository used by the bot and CLI.
type Logbook struct {
	store   store.Store
	weather weather.Fetcher
	now     func() time.Time
}

// New returns a Logbook over st. A nil fetcher disables weather lookups.
func New(st store.Store, wf weather.Fetcher) *Logbook {
	return &Logbook{store: st, weather: wf, now: time.Now}
}

// Store returns the underlying record store.
func (l *Logbook) Store() store.Store { return l.store }

// StartTrip begins a new trip unless one is already active.
func (l *Logbook) StartTrip(ctx context.Context, d TripDraft) (*store.Trip, error) {
	active, err := l.store.ActiveTrip(ctx)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrTripActive
	}

	t := store.Trip{
		StartMillis: l.now().UnixMilli(),
		Name:        optional(d.Name),
		Waterway:    optional(d.Waterway),
		Notes:       optional(d.Notes),
	}
	id, err := l.store.InsertTrip(ctx, t)
	if err != nil {
		return nil, err
	}
	t.ID = id
	log.Printf("INFO: trip %d started", id)
	return &t, nil
}

// EndActiveTrip stamps the active trip with the current time.
func (l *Logbook) EndActiveTrip(ctx context.Context) (*store.Trip, error) {
	active, err := l.store.ActiveTrip(ctx)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, ErrNoActiveTrip
	}

	end := l.now().UnixMilli()
	if err := l.store.EndTrip(ctx, active.ID, end); err != nil {
		return nil, err
	}
	active.EndMillis = &end
	log.Printf("INFO: trip %d ended", active.ID)
	return active, nil
}

// RecordCatch saves a catch against the active trip (if any) with moon and weather data.
func (l *Logbook) RecordCatch(ctx context.Context, d CatchDraft) (*store.Catch, error) {
	species := strings.TrimSpace(d.Species)
	if species == "" {
		return nil, store.ErrInvalidCatch
	}

	ts := d.Time
	if ts.IsZero() {
		ts = l.now()
	}

	c := store.Catch{
		TimestampMillis: ts.UnixMilli(),
		Species:         species,
		LengthCm:        d.LengthCm,
		WeightKg:        d.WeightKg,
		Lure:            optional(d.Lure),
		Notes:           optional(d.Notes),
		Latitude:        d.Latitude,
		Longitude:       d.Longitude,
		AccuracyM:       d.AccuracyM,
		PhotoRef:        optional(d.PhotoRef),
	}

	active, err := l.store.ActiveTrip(ctx)
	if err != nil {
		return nil, err
	}
	if active != nil {
		c.TripID = &active.ID
	}

	phase := moon.PhaseAt(c.TimestampMillis)
	c.MoonPhaseName = &phase.Name
	c.MoonIlluminationPct = &phase.IlluminationPct

	if c.HasPosition() && l.weather != nil {
		if snap := l.weather.Current(ctx, *c.Latitude, *c.Longitude); snap != nil {
			fetched := l.now().UnixMilli()
			c.WeatherTempC = snap.TemperatureC
			c.WeatherPressureHpa = snap.PressureHpa
			c.WeatherFetchedAtMillis = &fetched
		} else {
			log.Println("WARN: weather unavailable, saving catch without it")
		}
	}

	id, err := l.store.InsertCatch(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("record catch: %w", err)
	}
	c.ID = id
	log.Printf("INFO: catch %d saved: %s, %s", id, species, phase)
	return &c, nil
}

// Snapshot returns all trips and catches (newest first) for exporting.
func (l *Logbook) Snapshot(ctx context.Context) ([]store.Trip, []store.Catch, error) {
	trips, err := l.store.ListTrips(ctx)
	if err != nil {
		return nil, nil, err
	}
	catches, err := l.store.ListCatches(ctx)
	if err != nil {
		return nil, nil, err
	}
	return trips, catches, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
