package store

// Trip is a fishing outing. A trip without an end time is active.
type Trip struct {
	ID          int64   `json:"id"`
	StartMillis int64   `json:"startMillis"`
	EndMillis   *int64  `json:"endMillis,omitempty"`
	Name        *string `json:"name,omitempty"`
	Waterway    *string `json:"waterway,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

// Active reports whether the trip has not been ended.
func (t Trip) Active() bool { return t.EndMillis == nil }

// Catch is a single logged fish. Nil fields were not measured or not available.
type Catch struct {
	ID              int64  `json:"id"`
	TripID          *int64 `json:"tripId,omitempty"`
	TimestampMillis int64  `json:"timestampMillis"`
	Species         string `json:"species"`

	LengthCm *float64 `json:"lengthCm,omitempty"`
	WeightKg *float64 `json:"weightKg,omitempty"`
	Lure     *string  `json:"lure,omitempty"`
	Notes    *string  `json:"notes,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	AccuracyM *float64 `json:"accuracyM,omitempty"`
	PhotoRef  *string  `json:"photoRef,omitempty"`

	WeatherTempC           *float64 `json:"weatherTempC,omitempty"`
	WeatherPressureHpa     *float64 `json:"weatherPressureHpa,omitempty"`
	WeatherFetchedAtMillis *int64   `json:"weatherFetchedAtMillis,omitempty"`

	MoonPhaseName       *string `json:"moonPhaseName,omitempty"`
	MoonIlluminationPct *int    `json:"moonIlluminationPct,omitempty"`
}

// HasPosition reports whether both coordinates were recorded.
func (c Catch) HasPosition() bool { return c.Latitude != nil && c.Longitude != nil }

// EventKind identifies what changed in the store.
type EventKind string

const (
	TripStarted  EventKind = "trip_started"
	TripEnded    EventKind = "trip_ended"
	CatchAdded   EventKind = "catch_added"
	CatchDeleted EventKind = "catch_deleted"
)

// Event is delivered to subscribers after every committed change.
type Event struct {
	Kind EventKind
	ID   int64
}
