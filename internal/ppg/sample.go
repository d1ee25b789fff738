package ppg

import "fmt"

// Sample holds one tick's ROI-averaged channel intensities. Samples are
// immutable once produced; the session controller appends them to
// per-channel histories for the lifetime of a measurement.
type Sample struct {
	Red   float64 `json:"red"`
	Green float64 `json:"green"`
	Blue  float64 `json:"blue"`
}

// ROIFraction is the fraction of the frame width and height covered by
// the central region of interest. The fingertip is pressed flat against
// the lens, so the centre of the frame is the best-illuminated region.
const ROIFraction = 0.5

// bytesPerPixel assumes RGBA8 pixel buffers from the camera collaborator.
const bytesPerPixel = 4

// SampleFrame computes the mean red, green and blue intensity over the
// fixed central ROI of an RGBA pixel buffer. The buffer must hold at
// least width*height pixels.
func SampleFrame(pixels []byte, width, height int) (Sample, error) {
	if width <= 0 || height <= 0 {
		return Sample{}, fmt.Errorf("ppg: invalid frame dimensions %dx%d", width, height)
	}
	if len(pixels) < width*height*bytesPerPixel {
		return Sample{}, fmt.Errorf("ppg: short pixel buffer: got %d bytes, need %d", len(pixels), width*height*bytesPerPixel)
	}

	// Central ROI bounds. Integer truncation biases the window up-left
	// by at most one pixel, which is irrelevant at camera resolutions.
	x0 := int(float64(width) * (1 - ROIFraction) / 2)
	y0 := int(float64(height) * (1 - ROIFraction) / 2)
	x1 := x0 + int(float64(width)*ROIFraction)
	y1 := y0 + int(float64(height)*ROIFraction)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}

	var r, g, b float64
	for y := y0; y < y1; y++ {
		row := y * width * bytesPerPixel
		for x := x0; x < x1; x++ {
			off := row + x*bytesPerPixel
			r += float64(pixels[off])
			g += float64(pixels[off+1])
			b += float64(pixels[off+2])
		}
	}
	n := float64((x1 - x0) * (y1 - y0))
	return Sample{Red: r / n, Green: g / n, Blue: b / n}, nil
}
