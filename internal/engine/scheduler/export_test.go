package scheduler

import "time"

// SetNow replaces the clock used for durations and cache timestamps.
func (s *Scheduler) SetNow(now func() time.Time) {
	s.now = now
}
