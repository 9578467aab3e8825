// Package timing measures session wall time for the elapsed-time banners.
package timing

import (
	"fmt"
	"time"
)

// Stopwatch measures one playback session.
type Stopwatch struct {
	now   func() time.Time
	start time.Time
	end   time.Time
}

// New returns a stopwatch that has not started.
func New() *Stopwatch {
	return &Stopwatch{now: time.Now}
}

// Start marks the session beginning.
func (s *Stopwatch) Start() {
	s.start = s.now()
}

// Stop marks the session end.
func (s *Stopwatch) Stop() {
	s.end = s.now()
}

// Elapsed reports the time between Start and Stop, or up to now while the
// session is still running.
func (s *Stopwatch) Elapsed() time.Duration {
	if s.end.IsZero() {
		return s.now().Sub(s.start)
	}
	return s.end.Sub(s.start)
}

// FormatMinSec renders d in the M:SS form the banners use.
func FormatMinSec(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
