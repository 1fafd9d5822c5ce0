package windowbox

import (
	"math"
	"time"
)

// Progress is an estimate for a running movement. Fields are nil when the
// inputs needed to compute them are unknown.
type Progress struct {
	Elapsed            *time.Duration
	EstimatedTotal     *time.Duration
	EstimatedRemaining *time.Duration
	ProgressPct        *int
}

// Estimate derives movement progress from a session, the current position and
// the wall clock. It assumes a constant travel speed over the full range.
func Estimate(s *Session, current *int, now time.Time) Progress {
	var p Progress
	if s == nil || s.FullTravelTime == 0 {
		return p
	}

	elapsed := now.Sub(s.StartedAt)
	p.Elapsed = &elapsed

	if current == nil || s.Target == nil {
		return p
	}

	remainingDistance := abs(*current - *s.Target)
	total := s.FullTravelTime
	remaining := time.Duration(float64(remainingDistance) / 100.0 * float64(s.FullTravelTime))
	p.EstimatedTotal = &total
	p.EstimatedRemaining = &remaining

	if s.StartPosition == nil {
		return p
	}

	pct := 100
	if totalDistance := abs(*s.StartPosition - *s.Target); totalDistance != 0 {
		progress := float64(totalDistance-remainingDistance) / float64(totalDistance) * 100.0
		pct = int(math.Max(0, math.Min(100, math.Round(progress))))
	}
	p.ProgressPct = &pct

	return p
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
