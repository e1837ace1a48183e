package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"fishlog/moon"
	"fishlog/store"
)

const displayTimeLayout = "Mon 2 Jan 2006, 3:04 PM"

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatCatchRow returns the short list entry for a catch.
func formatCatchRow(c store.Catch, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s\n", c.ID, c.Species)
	b.WriteString(time.UnixMilli(c.TimestampMillis).In(loc).Format(displayTimeLayout))

	var size []string
	if c.LengthCm != nil {
		size = append(size, fmtFloat(*c.LengthCm)+"cm")
	}
	if c.WeightKg != nil {
		size = append(size, fmtFloat(*c.WeightKg)+"kg")
	}
	if len(size) > 0 {
		b.WriteString("\n" + strings.Join(size, "  •  "))
	}
	if c.Lure != nil {
		b.WriteString("\nLure: " + *c.Lure)
	}
	if c.HasPosition() {
		fmt.Fprintf(&b, "\nGPS: %.5f, %.5f", *c.Latitude, *c.Longitude)
	}

	var conditions []string
	if c.WeatherTempC != nil {
		conditions = append(conditions, fmt.Sprintf("%.1f°C", *c.WeatherTempC))
	}
	if c.WeatherPressureHpa != nil {
		conditions = append(conditions, fmt.Sprintf("%.0f hPa", *c.WeatherPressureHpa))
	}
	if c.MoonPhaseName != nil {
		pct := 0
		if c.MoonIlluminationPct != nil {
			pct = *c.MoonIlluminationPct
		}
		conditions = append(conditions, fmt.Sprintf("%s (%d%%)", *c.MoonPhaseName, pct))
	}
	if len(conditions) > 0 {
		b.WriteString("\n" + strings.Join(conditions, "  •  "))
	}
	return b.String()
}

// formatCatchDetail returns every recorded field of a catch.
func formatCatchDetail(c store.Catch, t *store.Trip, loc *time.Location) string {
	dash := func(s *string) string {
		if s == nil {
			return "—"
		}
		return *s
	}
	unit := func(f *float64, suffix string) string {
		if f == nil {
			return "—"
		}
		return fmtFloat(*f) + " " + suffix
	}

	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s\n", c.ID, c.Species)
	b.WriteString(time.UnixMilli(c.TimestampMillis).In(loc).Format(displayTimeLayout) + "\n\n")

	b.WriteString("Length: " + unit(c.LengthCm, "cm") + "\n")
	b.WriteString("Weight: " + unit(c.WeightKg, "kg") + "\n")
	b.WriteString("Lure/Bait: " + dash(c.Lure) + "\n")
	b.WriteString("Notes: " + dash(c.Notes) + "\n\n")

	if c.HasPosition() {
		acc := 0
		if c.AccuracyM != nil {
			acc = int(*c.AccuracyM)
		}
		fmt.Fprintf(&b, "GPS: %.5f, %.5f (±%dm)\n", *c.Latitude, *c.Longitude, acc)
		b.WriteString(mapsLink(*c.Latitude, *c.Longitude) + "\n\n")
	} else {
		b.WriteString("GPS: —\n\n")
	}

	temp, press := "—", "—"
	if c.WeatherTempC != nil {
		temp = fmt.Sprintf("%.1f °C", *c.WeatherTempC)
	}
	if c.WeatherPressureHpa != nil {
		press = fmt.Sprintf("%.0f hPa", *c.WeatherPressureHpa)
	}
	b.WriteString("Temperature: " + temp + "\n")
	b.WriteString("Pressure: " + press + "\n")
	pct := 0
	if c.MoonIlluminationPct != nil {
		pct = *c.MoonIlluminationPct
	}
	fmt.Fprintf(&b, "Moon: %s (%d%%)", dash(c.MoonPhaseName), pct)

	if t != nil {
		var parts []string
		for _, s := range []*string{t.Name, t.Waterway} {
			if s != nil {
				parts = append(parts, *s)
			}
		}
		if len(parts) > 0 {
			b.WriteString("\n\nTrip: " + strings.Join(parts, " — "))
		}
	}
	if c.PhotoRef != nil {
		b.WriteString("\nPhoto: attached")
	}
	return b.String()
}

// formatTrip describes a trip for the status reply.
func formatTrip(t store.Trip, loc *time.Location) string {
	name := "Unnamed trip"
	if t.Name != nil {
		name = *t.Name
	}
	out := name
	if t.Waterway != nil {
		out += "\n" + *t.Waterway
	}
	out += "\nStarted: " + time.UnixMilli(t.StartMillis).In(loc).Format(displayTimeLayout)
	if t.EndMillis != nil {
		out += "\nEnded: " + time.UnixMilli(*t.EndMillis).In(loc).Format(displayTimeLayout)
	}
	if t.Notes != nil {
		out += "\n" + *t.Notes
	}
	return out
}

func formatMoon(at time.Time, loc *time.Location) string {
	return fmt.Sprintf("%s\nMoon: %s", at.In(loc).Format(displayTimeLayout), moon.At(at))
}

func mapsLink(lat, lon float64) string {
	return fmt.Sprintf("https://maps.google.com/?q=%s,%s", fmtFloat(lat), fmtFloat(lon))
}

func findTrip(trips []store.Trip, id int64) *store.Trip {
	for i := range trips {
		if trips[i].ID == id {
			return &trips[i]
		}
	}
	return nil
}
