package windowbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimate(t *testing.T) {
	t0 := time.Now()
	session := &Session{
		StartedAt:      t0,
		StartPosition:  intPtr(0),
		Target:         intPtr(80),
		Direction:      Closing,
		FullTravelTime: 40 * time.Second,
	}

	t.Run("mid movement", func(t *testing.T) {
		p := Estimate(session, intPtr(20), t0.Add(8*time.Second))
		require.NotNil(t, p.Elapsed)
		assert.Equal(t, 8*time.Second, *p.Elapsed)
		assert.Equal(t, 40*time.Second, *p.EstimatedTotal)
		assert.Equal(t, 24*time.Second, *p.EstimatedRemaining)
		assert.Equal(t, 25, *p.ProgressPct)
	})

	t.Run("unknown current position", func(t *testing.T) {
		p := Estimate(session, nil, t0.Add(time.Second))
		assert.NotNil(t, p.Elapsed)
		assert.Nil(t, p.EstimatedTotal)
		assert.Nil(t, p.EstimatedRemaining)
		assert.Nil(t, p.ProgressPct)
	})

	t.Run("unknown start position", func(t *testing.T) {
		s := *session
		s.StartPosition = nil
		p := Estimate(&s, intPtr(40), t0)
		assert.NotNil(t, p.EstimatedRemaining)
		assert.Nil(t, p.ProgressPct)
	})

	t.Run("zero distance is complete", func(t *testing.T) {
		s := *session
		s.StartPosition = intPtr(80)
		p := Estimate(&s, intPtr(80), t0)
		assert.Equal(t, 100, *p.ProgressPct)
	})

	t.Run("overshoot and wrong way are clamped", func(t *testing.T) {
		assert.Equal(t, 0, *Estimate(session, intPtr(-100), t0).ProgressPct)
		s := *session
		s.StartPosition = intPtr(50)
		s.Target = intPtr(60)
		assert.Equal(t, 0, *Estimate(&s, intPtr(90), t0).ProgressPct)
	})

	t.Run("no session", func(t *testing.T) {
		assert.Equal(t, Progress{}, Estimate(nil, intPtr(10), t0))
	})
}

func TestEstimateProgressIsMonotonic(t *testing.T) {
	t0 := time.Now()
	session := &Session{StartedAt: t0, StartPosition: intPtr(90), Target: intPtr(10), Direction: Opening, FullTravelTime: 30 * time.Second}

	last := -1
	for pos := 90; pos >= 10; pos-- {
		p := Estimate(session, intPtr(pos), t0.Add(time.Duration(90-pos)*time.Second))
		require.NotNil(t, p.ProgressPct)
		assert.GreaterOrEqual(t, *p.ProgressPct, last)
		assert.GreaterOrEqual(t, *p.ProgressPct, 0)
		assert.LessOrEqual(t, *p.ProgressPct, 100)
		last = *p.ProgressPct
	}
	assert.Equal(t, 100, last)
}
