package export

import (
	"encoding/json"
	"io"
	"time"

	"fishlog/store"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string            `json:"type"`
	Geometry   Point             `json:"geometry"`
	Properties FeatureProperties `json:"properties"`
}

type Point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

type FeatureProperties struct {
	ID                  int64    `json:"id"`
	Species             string   `json:"species"`
	Timestamp           string   `json:"timestamp"`
	TripID              *int64   `json:"tripId,omitempty"`
	LengthCm            *float64 `json:"lengthCm,omitempty"`
	WeightKg            *float64 `json:"weightKg,omitempty"`
	AccuracyM           *float64 `json:"accuracyM,omitempty"`
	MoonPhase           *string  `json:"moonPhase,omitempty"`
	MoonIlluminationPct *int     `json:"moonIlluminationPct,omitempty"`
}

// CatchMap builds a FeatureCollection of catches that have a GPS position.
func CatchMap(catches []store.Catch) FeatureCollection {
	fc := FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, len(catches))}
	for _, c := range catches {
		if !c.HasPosition() {
			continue
		}
		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			// GeoJSON orders coordinates longitude first.
			Geometry: Point{Type: "Point", Coordinates: [2]float64{*c.Longitude, *c.Latitude}},
			Properties: FeatureProperties{
				ID:                  c.ID,
				Species:             c.Species,
				Timestamp:           time.UnixMilli(c.TimestampMillis).UTC().Format(time.RFC3339),
				TripID:              c.TripID,
				LengthCm:            c.LengthCm,
				WeightKg:            c.WeightKg,
				AccuracyM:           c.AccuracyM,
				MoonPhase:           c.MoonPhaseName,
				MoonIlluminationPct: c.MoonIlluminationPct,
			},
		})
	}
	return fc
}

// WriteGeoJSON writes the catch map as indented GeoJSON.
func WriteGeoJSON(w io.Writer, catches []store.Catch) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(CatchMap(catches))
}
