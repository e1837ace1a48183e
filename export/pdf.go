package export

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font/gofont/goregular"

	"fishlog/store"
)

// Page geometry in points (A4).
const (
	pageWidth   = 595.0
	pageHeight  = 842.0
	marginLeft  = 40.0
	marginTop   = 40.0
	pageBreakY  = 800.0
	pageBottomY = 822.0

	titleSize    = 16.0
	bodySize     = 12.0
	titleAdvance = 26.0
	lineAdvance  = 16.0
	blockGap     = 8.0

	tripLineMax = 90
	textLineMax = 100
)

const pdfTimeLayout = "Mon 2 Jan 2006, 3:04 PM"

const fontFamily = "goregular"

type textLine struct {
	Y    float64
	Size float64
	Text string
}

// WritePDF renders a paginated report with one text block per catch, newest first.
func WritePDF(w io.Writer, trips []store.Trip, catches []store.Catch, loc *time.Location) error {
	pdf, err := renderPDF(layoutPages(trips, catches, loc))
	if err != nil {
		return err
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// renderPDF draws the laid out pages with an embedded UTF-8 font, so species
// and notes in any script covered by the Go fonts survive.
func renderPDF(pages [][]textLine) (*fpdf.Fpdf, error) {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: pageWidth, Ht: pageHeight},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Fishing Logbook Export", true)
	pdf.AddUTF8FontFromBytes(fontFamily, "", goregular.TTF)
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("load pdf font: %w", err)
	}

	for _, lines := range pages {
		pdf.AddPage()
		for _, l := range lines {
			pdf.SetFont(fontFamily, "", l.Size)
			pdf.Text(marginLeft, l.Y, l.Text)
		}
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return pdf, nil
}

// layoutPages positions every line of the report. A new page starts when the
// offset passes pageBreakY or the next block would run off the bottom.
func layoutPages(trips []store.Trip, catches []store.Catch, loc *time.Location) [][]textLine {
	if loc == nil {
		loc = time.UTC
	}
	tripByID := indexTrips(trips)

	sorted := make([]store.Catch, len(catches))
	copy(sorted, catches)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimestampMillis > sorted[j].TimestampMillis
	})

	y := marginTop
	page := []textLine{{Y: y, Size: titleSize, Text: "Fishing Logbook Export"}}
	y += titleAdvance
	var pages [][]textLine

	for _, c := range sorted {
		var t *store.Trip
		if c.TripID != nil {
			t = tripByID[*c.TripID]
		}
		block := catchBlock(c, t, loc)

		height := float64(len(block)) * lineAdvance
		if y > pageBreakY || (y+height > pageBottomY && y > marginTop) {
			pages = append(pages, page)
			page = nil
			y = marginTop
		}

		for _, text := range block {
			page = append(page, textLine{Y: y, Size: bodySize, Text: text})
			y += lineAdvance
		}
		y += blockGap
	}

	return append(pages, page)
}

func catchBlock(c store.Catch, t *store.Trip, loc *time.Location) []string {
	var lines []string

	head := time.UnixMilli(c.TimestampMillis).In(loc).Format(pdfTimeLayout) + " — " + c.Species
	if c.LengthCm != nil {
		head += "  " + formatFloat(c.LengthCm) + "cm"
	}
	if c.WeightKg != nil {
		head += "  " + formatFloat(c.WeightKg) + "kg"
	}
	lines = append(lines, head)

	if c.HasPosition() {
		acc := 0
		if c.AccuracyM != nil {
			acc = int(*c.AccuracyM)
		}
		lines = append(lines, fmt.Sprintf("GPS: %.5f, %.5f (±%dm)", *c.Latitude, *c.Longitude, acc))
	} else {
		lines = append(lines, "GPS: —")
	}

	if c.WeatherTempC != nil || c.WeatherPressureHpa != nil {
		temp, press := "—", "—"
		if c.WeatherTempC != nil {
			temp = fmt.Sprintf("%.1f°C", *c.WeatherTempC)
		}
		if c.WeatherPressureHpa != nil {
			press = fmt.Sprintf("%.0f hPa", *c.WeatherPressureHpa)
		}
		lines = append(lines, "Weather: "+temp+"  "+press)
	}

	if c.MoonPhaseName != nil {
		pct := 0
		if c.MoonIlluminationPct != nil {
			pct = *c.MoonIlluminationPct
		}
		lines = append(lines, fmt.Sprintf("Moon: %s (%d%%)", *c.MoonPhaseName, pct))
	}

	if t != nil {
		var parts []string
		for _, s := range []*string{t.Name, t.Waterway} {
			if s != nil && strings.TrimSpace(*s) != "" {
				parts = append(parts, *s)
			}
		}
		if len(parts) > 0 {
			lines = append(lines, truncate("Trip: "+strings.Join(parts, " — "), tripLineMax))
		}
	}

	if c.Lure != nil && strings.TrimSpace(*c.Lure) != "" {
		lines = append(lines, truncate("Lure/Bait: "+*c.Lure, textLineMax))
	}
	if c.Notes != nil && strings.TrimSpace(*c.Notes) != "" {
		lines = append(lines, truncate("Notes: "+*c.Notes, textLineMax))
	}
	return lines
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
