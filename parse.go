package main

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"fishlog/logbook"
)

var errNoSpecies = errors.New("species is required")

// parseCatchArgs parses "/catch" arguments:
//
//	Murray cod 72.5 3.1 | Spinnerbait | Near the snag
//
// Up to two trailing numbers are length (cm) and weight (kg); "cm"/"kg"
// suffixes pin a number to its field. The first "|" section is the lure,
// the rest are notes.
func parseCatchArgs(args string) (logbook.CatchDraft, error) {
	var d logbook.CatchDraft

	sections := strings.Split(args, "|")
	if len(sections) > 1 {
		d.Lure = strings.TrimSpace(sections[1])
	}
	if len(sections) > 2 {
		d.Notes = strings.TrimSpace(strings.Join(sections[2:], "|"))
	}

	tokens := strings.Fields(sections[0])

	// Peel measurements off the end, at most two.
	n := len(tokens)
	for n > 0 && len(tokens)-n < 2 {
		if _, _, ok := parseMeasurement(tokens[n-1]); !ok {
			break
		}
		n--
	}
	measures := tokens[n:]
	d.Species = strings.Join(tokens[:n], " ")
	if d.Species == "" {
		return d, errNoSpecies
	}

	var bare []float64
	for _, tok := range measures {
		v, unit, _ := parseMeasurement(tok)
		switch unit {
		case "cm":
			d.LengthCm = &v
		case "kg":
			d.WeightKg = &v
		default:
			bare = append(bare, v)
		}
	}
	for _, v := range bare {
		if d.LengthCm == nil {
			d.LengthCm = &v
		} else if d.WeightKg == nil {
			d.WeightKg = &v
		}
	}
	return d, nil
}

// parseMeasurement reads "72.5", "72,5", "72cm" or "3.1kg".
func parseMeasurement(tok string) (float64, string, bool) {
	s := strings.ToLower(tok)
	unit := ""
	for _, u := range []string{"cm", "kg"} {
		if strings.HasSuffix(s, u) {
			unit = u
			s = strings.TrimSuffix(s, u)
			break
		}
	}
	s = strings.Replace(s, ",", ".", 1)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, "", false
	}
	return v, unit, true
}

// parseTripArgs parses "/trip name | waterway | notes".
func parseTripArgs(args string) logbook.TripDraft {
	var d logbook.TripDraft
	parts := strings.SplitN(args, "|", 3)
	d.Name = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		d.Waterway = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		d.Notes = strings.TrimSpace(parts[2])
	}
	return d
}

// parseID reads a catch id argument such as "12" or "#12".
func parseID(args string) (int64, bool) {
	s := strings.TrimPrefix(strings.TrimSpace(args), "#")
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
