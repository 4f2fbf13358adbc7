// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"time"

	"github.com/loov/hrtime"
)

// NewTime creates a new time service
func NewTime(cfg TimeConfiguration) *Time {
	var interval time.Duration
	if cfg.FramesPerSecond == 0 {
		interval = time.Nanosecond
	} else {
		interval = time.Second / (time.Duration)(cfg.FramesPerSecond)
	}

	t := &Time{
		fps:       cfg.FramesPerSecond,
		fpsTicker: time.NewTicker(interval),
		now:       hrtime.Now,
	}
	t.last = t.now()
	t.windowStart = t.last
	return t
}

// Time contains the frame pacing ticker and frame statistics
type Time struct {
	fps       int
	fpsTicker *time.Ticker

	now         func() time.Duration
	last        time.Duration
	frames      uint64
	windowStart time.Duration
	window      FrameStats
}

// FrameStats summarises the frames of one reporting window
type FrameStats struct {
	Frames  int
	Elapsed time.Duration
	Worst   time.Duration
}

// Average returns the mean frame time of the window
func (s FrameStats) Average() time.Duration {
	if s.Frames == 0 {
		return 0
	}
	return s.Elapsed / time.Duration(s.Frames)
}

// FPS returns frames per second over the window
func (s FrameStats) FPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Frames) / s.Elapsed.Seconds()
}

// Fps gets the set frames per second
func (t *Time) Fps() int {
	return t.fps
}

// FpsTicker gets the initialized fps ticker
func (t *Time) FpsTicker() *time.Ticker {
	return t.fpsTicker
}

// Frames returns the number of frames recorded so far
func (t *Time) Frames() uint64 {
	return t.frames
}

// Frame marks the end of a frame and returns how long it took
func (t *Time) Frame() time.Duration {
	now := t.now()
	d := now - t.last
	t.last = now
	t.frames++

	t.window.Frames++
	if d > t.window.Worst {
		t.window.Worst = d
	}
	return d
}

// Report returns the statistics gathered since the previous report once
// at least interval has passed, and starts a new window
func (t *Time) Report(interval time.Duration) (FrameStats, bool) {
	elapsed := t.now() - t.windowStart
	if elapsed < interval {
		return FrameStats{}, false
	}
	stats := t.window
	stats.Elapsed = elapsed

	t.windowStart += elapsed
	t.window = FrameStats{}
	return stats, true
}

// Stop stops the tickers
func (t *Time) Stop() {
	t.fpsTicker.Stop()
}
