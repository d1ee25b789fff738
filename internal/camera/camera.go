// Package camera provides fingertip frame sources for the pulse
// pipeline. A FrameSource yields RGBA frames at whatever cadence the
// caller polls it; real capture hardware sits behind the same
// interface as the synthetic sources used in development mode.
package camera

import (
	"errors"
	"time"
)

// ErrSourceClosed is returned by Frame after a source has been closed.
var ErrSourceClosed = errors.New("camera: source closed")

// Frame is a single captured RGBA8 frame.
type Frame struct {
	Pixels    []byte
	Width     int
	Height    int
	Timestamp time.Time
}

// FrameSource produces frames on demand. Implementations must be safe
// for use from a single goroutine; the session controller polls one
// frame per tick.
type FrameSource interface {
	// Frame captures and returns the next frame.
	Frame() (Frame, error)

	// Close releases the underlying device. Frame returns
	// ErrSourceClosed afterwards.
	Close() error
}
