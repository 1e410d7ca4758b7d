package playback

import (
	"time"

	"github.com/google/uuid"
)

// Session is the authoritative playback record for the watch party.
// Position is only accurate at LastUpdate; every reader extrapolates
// from that reference point instead of the store ticking continuously.
type Session struct {
	ID         uuid.UUID
	VideoRef   string
	Position   float64 // seconds, valid at LastUpdate
	Playing    bool
	Duration   float64 // seconds, 0 = unknown
	LastUpdate time.Time
	Ended      bool
}

// positionAt extrapolates the playback position at t. Negative elapsed
// time (clock skew between reads) clamps to zero so the position never
// moves backward; a known duration caps the result.
func (s *Session) positionAt(t time.Time) float64 {
	if s.Ended || !s.Playing {
		return s.Position
	}
	elapsed := t.Sub(s.LastUpdate).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	pos := s.Position + elapsed
	if s.Duration > 0 && pos > s.Duration {
		pos = s.Duration
	}
	return pos
}

// expiredAt reports whether playback has run past the end of the video
// at t. Sessions with unknown duration never expire on their own.
func (s *Session) expiredAt(t time.Time) bool {
	if s.Duration <= 0 {
		return false
	}
	return s.positionAt(t) >= s.Duration
}

// liveAt reports whether the session still accepts mutations at t.
func (s *Session) liveAt(t time.Time) bool {
	return !s.Ended && !s.expiredAt(t)
}
