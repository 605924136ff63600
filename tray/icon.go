package tray

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"go.aimuz.me/ghostwriter/cue"
)

const iconSize = 32

// Icon renders the tray icon for an indicator state: a filled disc in the
// indicator colour on a transparent background.
func Icon(i cue.Indicator) ([]byte, error) {
	rgb := i.Color()
	fill := color.NRGBA{R: uint8(rgb >> 16), G: uint8(rgb >> 8), B: uint8(rgb), A: 0xff}

	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	center := float64(iconSize) / 2
	radius := center - 2

	for y := range iconSize {
		for x := range iconSize {
			d := math.Hypot(float64(x)+0.5-center, float64(y)+0.5-center)
			// Edge coverage for a one pixel wide anti-aliased rim.
			cov := math.Max(0, math.Min(1, radius-d+0.5))
			if cov == 0 {
				continue
			}
			c := fill
			c.A = uint8(math.Round(cov * 0xff))
			img.SetNRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode %s icon: %w", i, err)
	}
	return buf.Bytes(), nil
}

// icons renders every indicator state once.
func icons() (map[cue.Indicator][]byte, error) {
	out := make(map[cue.Indicator][]byte, len(cue.Indicators))
	for _, ind := range cue.Indicators {
		b, err := Icon(ind)
		if err != nil {
			return nil, err
		}
		out[ind] = b
	}
	return out, nil
}
