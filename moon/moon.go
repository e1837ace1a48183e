// Package moon calculates the lunar phase and illumination for a point in time
// using a simplified synodic-cycle model.
package moon

import (
	"fmt"
	"math"
	"time"
)

const (
	synodicMonth     float64 = 29.530588853 // Average length of a synodic month in days
	newMoonReference float64 = 2451550.1    // Julian day of a known new moon (Jan 6, 2000 18:14 UTC)
	unixEpochJulian  float64 = 2440587.5    // Julian day of 1970-01-01 00:00:00 UTC
	millisPerDay     float64 = 86400000.0
)

// Phase names, in ascending order through the cycle.
const (
	NewMoon        = "New Moon"
	WaxingCrescent = "Waxing Crescent"
	FirstQuarter   = "First Quarter"
	WaxingGibbous  = "Waxing Gibbous"
	FullMoon       = "Full Moon"
	WaningGibbous  = "Waning Gibbous"
	LastQuarter    = "Last Quarter"
	WaningCrescent = "Waning Crescent"
)

// SynodicMonth is the synodic month length used by the model.
const SynodicMonth = time.Duration(synodicMonth * millisPerDay * float64(time.Millisecond))

// Result is the phase name and illuminated percentage of the visible disc.
type Result struct {
	Name            string
	IlluminationPct int
}

// String returns the result as "Full Moon (100%)".
func (r Result) String() string {
	return fmt.Sprintf("%s (%d%%)", r.Name, r.IlluminationPct)
}

// PhaseAt returns the moon phase for an instant given as milliseconds since the Unix epoch.
func PhaseAt(instantMillis int64) Result {
	phase := cyclePosition(instantMillis)

	// Cosine approximation of the illuminated fraction
	illumination := 0.5 * (1.0 - math.Cos(2.0*math.Pi*phase))
	pct := int(illumination * 100.0)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	return Result{Name: phaseName(phase), IlluminationPct: pct}
}

// At returns the moon phase for t.
func At(t time.Time) Result {
	return PhaseAt(t.UnixMilli())
}

// cyclePosition returns the position within the current synodic cycle in [0, 1),
// 0 being new moon and 0.5 full moon.
func cyclePosition(instantMillis int64) float64 {
	julianDay := float64(instantMillis)/millisPerDay + unixEpochJulian

	cycles := (julianDay - newMoonReference) / synodicMonth
	phase := cycles - math.Floor(cycles)
	if phase < 0 {
		phase += 1.0
	}
	if phase >= 1.0 {
		phase = 0
	}
	return phase
}

func phaseName(p float64) string {
	switch {
	case p < 0.03 || p > 0.97:
		return NewMoon
	case p < 0.22:
		return WaxingCrescent
	case p < 0.28:
		return FirstQuarter
	case p < 0.47:
		return WaxingGibbous
	case p < 0.53:
		return FullMoon
	case p < 0.72:
		return WaningGibbous
	case p < 0.78:
		return LastQuarter
	default:
		return WaningCrescent
	}
}
