// Package export writes the logbook as CSV, PDF and GeoJSON.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"fishlog/store"
)

// Header is the fixed CSV column order.
var Header = []string{
	"type", "id", "tripId", "timestamp", "species", "lengthCm", "weightKg", "lure", "notes",
	"latitude", "longitude", "accuracyM", "photoUri",
	"weatherTempC", "weatherPressureHpa",
	"tripName", "waterway", "tripNotes", "tripStart", "tripEnd",
	"moonPhase", "moonIlluminationPct",
}

const csvTimeLayout = "2006-01-02 15:04:05"

// WriteCSV writes one "catch" row per catch, joined with its trip.
// Timestamps are rendered in loc (UTC when nil).
func WriteCSV(w io.Writer, trips []store.Trip, catches []store.Catch, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	tripByID := indexTrips(trips)

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, c := range catches {
		var t *store.Trip
		if c.TripID != nil {
			t = tripByID[*c.TripID]
		}

		row := []string{
			"catch",
			strconv.FormatInt(c.ID, 10),
			formatInt(c.TripID),
			formatMillis(&c.TimestampMillis, loc),
			c.Species,
			formatFloat(c.LengthCm),
			formatFloat(c.WeightKg),
			deref(c.Lure),
			deref(c.Notes),
			formatFloat(c.Latitude),
			formatFloat(c.Longitude),
			formatFloat(c.AccuracyM),
			deref(c.PhotoRef),
			formatFloat(c.WeatherTempC),
			formatFloat(c.WeatherPressureHpa),
		}
		if t != nil {
			row = append(row,
				deref(t.Name),
				deref(t.Waterway),
				deref(t.Notes),
				formatMillis(&t.StartMillis, loc),
				formatMillis(t.EndMillis, loc),
			)
		} else {
			row = append(row, "", "", "", "", "")
		}
		row = append(row, deref(c.MoonPhaseName))
		if c.MoonIlluminationPct != nil {
			row = append(row, strconv.Itoa(*c.MoonIlluminationPct))
		} else {
			row = append(row, "")
		}

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row for catch %d: %w", c.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func indexTrips(trips []store.Trip) map[int64]*store.Trip {
	m := make(map[int64]*store.Trip, len(trips))
	for i := range trips {
		m[trips[i].ID] = &trips[i]
	}
	return m
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatInt(i *int64) string {
	if i == nil {
		return ""
	}
	return strconv.FormatInt(*i, 10)
}

func formatMillis(ms *int64, loc *time.Location) string {
	if ms == nil {
		return ""
	}
	return time.UnixMilli(*ms).In(loc).Format(csvTimeLayout)
}
