package model

import "time"

type Timer struct {
	ID                string     `json:"_id" bson:"_id"`
	UserID            string     `json:"userId" bson:"userId"`
	Description       string     `json:"description" bson:"description"`
	Start             time.Time  `json:"start" bson:"start"`
	End               *time.Time `json:"end,omitempty" bson:"end,omitempty"`
	DurationInSeconds int64      `json:"durationInSeconds" bson:"durationInSeconds"`
	IsActive          bool       `json:"isActive" bson:"isActive"`
}

// TimerList is the body of GET /timer/update and of every live push.
type TimerList struct {
	Timers []Timer `json:"timers"`
}

// Elapsed returns whole seconds between start and the reference point: end
// for a stopped timer, now for an active one. Never negative.
func Elapsed(start time.Time, end *time.Time, active bool, now time.Time) int64 {
	ref := now
	if !active && end != nil {
		ref = *end
	}
	d := ref.Sub(start)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// WithLiveDuration overlays the elapsed time on an active timer. Stopped
// timers keep the duration persisted at stop time.
func (t Timer) WithLiveDuration(now time.Time) Timer {
	if t.IsActive {
		t.DurationInSeconds = Elapsed(t.Start, nil, true, now)
	}
	return t
}

// OverlayLiveDurations applies WithLiveDuration to every timer and never
// returns nil, so the JSON form is always an array.
func OverlayLiveDurations(timers []Timer, now time.Time) []Timer {
	out := make([]Timer, 0, len(timers))
	for _, t := range timers {
		out = append(out, t.WithLiveDuration(now))
	}
	return out
}
