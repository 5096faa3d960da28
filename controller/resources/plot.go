// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package resources

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
)

// Plot rendering geometry.
const (
	plotWidth  = 640
	plotHeight = 320
	plotMargin = 24
)

var (
	plotBackground = color.RGBA{255, 255, 255, 255}
	plotAxis       = color.RGBA{96, 96, 96, 255}
	plotLine       = color.RGBA{32, 96, 192, 255}
)

// PlotPNG renders the samples as a PNG line chart, oldest to newest on the
// x axis. An empty series renders an empty frame.
func PlotPNG(samples []Resource) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, plotWidth, plotHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(plotBackground), image.Point{}, draw.Src)

	left, right := plotMargin, plotWidth-plotMargin
	top, bottom := plotMargin, plotHeight-plotMargin

	drawLine(img, left, top, left, bottom, plotAxis)
	drawLine(img, left, bottom, right, bottom, plotAxis)

	if len(samples) > 0 {
		minTs, maxTs := samples[0].Unix(), samples[0].Unix()
		minVal, maxVal := samples[0].Value, samples[0].Value
		for _, sample := range samples {
			ts, val := sample.Unix(), sample.Value
			if ts < minTs {
				minTs = ts
			}
			if ts > maxTs {
				maxTs = ts
			}
			if val < minVal {
				minVal = val
			}
			if val > maxVal {
				maxVal = val
			}
		}

		scaleX := func(ts int64) int {
			if maxTs == minTs {
				return (left + right) / 2
			}
			return left + int(float64(right-left)*float64(ts-minTs)/float64(maxTs-minTs))
		}
		scaleY := func(val float64) int {
			if maxVal == minVal {
				return (top + bottom) / 2
			}
			return bottom - int(float64(bottom-top)*(val-minVal)/(maxVal-minVal))
		}

		prevX, prevY := scaleX(samples[0].Unix()), scaleY(samples[0].Value)
		for _, sample := range samples[1:] {
			x, y := scaleX(sample.Unix()), scaleY(sample.Value)
			drawLine(img, prevX, prevY, x, y, plotLine)
			prevX, prevY = x, y
		}
		if len(samples) == 1 {
			drawLine(img, prevX-2, prevY, prevX+2, prevY, plotLine)
			drawLine(img, prevX, prevY-2, prevX, prevY+2, plotLine)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, Error.Wrap(err)
	}
	return buf.Bytes(), nil
}

// drawLine rasterizes a segment with integer Bresenham.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		img.SetRGBA(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
