// Package display renders the broken-elevator overview for a 2.9" e-paper tag and uploads
// it to an OpenEPaperLink access point.
package display

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"strings"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"elevator-status-monitor/internal/model"
)

// Tag resolution in pixels.
const (
	Width  = 296
	Height = 128
)

const (
	margin       = 4
	headerHeight = 16
	lineHeight   = 13
	jpegQuality  = 100
)

// basicfont only covers ASCII.
var asciiReplacer = strings.NewReplacer(
	"ä", "ae", "ö", "oe", "ü", "ue", "Ä", "Ae", "Ö", "Oe", "Ü", "Ue", "ß", "ss",
	"–", "-", "—", "-",
)

// Renderer draws the status image.
type Renderer struct {
	face font.Face
	now  func() time.Time
}

// NewRenderer creates a Renderer using the 7x13 fixed font and the local clock.
func NewRenderer() *Renderer {
	return &Renderer{face: basicfont.Face7x13, now: time.Now}
}

// NotWorking returns the elevators that are not known to be working. Elevators without
// a reported status are included.
func NotWorking(equipments []model.Equipment) []model.Equipment {
	var out []model.Equipment
	for _, e := range equipments {
		if !e.IsWorking() {
			out = append(out, e)
		}
	}
	return out
}

// Timestamp formats t as "day.month. - hour:minute".
func Timestamp(t time.Time) string {
	return fmt.Sprintf("%d.%d. - %d:%02d", t.Day(), int(t.Month()), t.Hour(), t.Minute())
}

// Render draws a header with the update time followed by one line per elevator that is
// not working.
func (r *Renderer) Render(equipments []model.Equipment) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, 0, Width, headerHeight), image.Black, image.Point{}, draw.Src)

	d := &font.Drawer{Dst: img, Src: image.White, Face: r.face}

	d.Dot = fixed.P(margin, headerHeight-margin)
	d.DrawString("Aufzugstatus")

	stamp := Timestamp(r.now())
	d.Dot = fixed.P(Width-margin-d.MeasureString(stamp).Ceil(), headerHeight-margin)
	d.DrawString(stamp)

	d.Src = image.NewUniform(color.Black)
	for i, line := range layout(NotWorking(equipments)) {
		d.Dot = fixed.P(margin, headerHeight+(i+1)*lineHeight)
		d.DrawString(line)
	}
	return img
}

// layout turns elevators into the text lines that fit below the header.
func layout(equipments []model.Equipment) []string {
	maxLines := (Height - headerHeight - margin) / lineHeight
	maxChars := (Width - 2*margin) / basicfont.Face7x13.Advance

	if len(equipments) == 0 {
		return []string{"Alle Aufzuege funktionieren!"}
	}

	shown := equipments
	var overflow int
	if len(equipments) > maxLines {
		shown = equipments[:maxLines-1]
		overflow = len(equipments) - len(shown)
	}

	lines := make([]string, 0, maxLines)
	for _, e := range shown {
		marker := "X"
		if e.IsUnknown() {
			marker = "?"
		}
		text := marker + " " + e.Name
		if place := e.PlaceName(); place != "" {
			text += " (" + place + ")"
		}
		lines = append(lines, truncate(asciiReplacer.Replace(text), maxChars))
	}
	if overflow > 0 {
		lines = append(lines, fmt.Sprintf("+%d weitere", overflow))
	}
	return lines
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// EncodeJPEG encodes img at full quality.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
