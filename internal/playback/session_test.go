package playback

import (
	"context"
	"testing"
	"time"
)

func TestPositionAtClampsNegativeElapsed(t *testing.T) {
	now := time.Unix(1700000000, 0)

	// LastUpdate after the query time models clock skew between the
	// write and a subsequent read.
	s := &Session{
		VideoRef:   "video-1",
		Position:   42,
		Playing:    true,
		LastUpdate: now.Add(10 * time.Second),
	}

	if got := s.positionAt(now); got != 42 {
		t.Fatalf("positionAt() with future LastUpdate = %v, want 42", got)
	}
}

func TestPositionAtNeverNegative(t *testing.T) {
	now := time.Unix(1700000000, 0)

	s := &Session{
		VideoRef:   "video-1",
		Position:   0,
		Playing:    true,
		LastUpdate: now.Add(time.Hour),
	}

	if got := s.positionAt(now); got != 0 {
		t.Fatalf("positionAt() = %v, want 0", got)
	}
}

func TestStatusUnderClockSkew(t *testing.T) {
	e, clock := newTestEngine(t, Config{AutoPlay: true})

	if _, err := e.Upload(context.Background(), "video-1", 0); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	// Pretend the reference point was stamped ahead of the reading
	// clock; the reported position must not regress below it.
	e.mu.Lock()
	e.cur.Position = 30
	e.cur.LastUpdate = clock.Now().Add(5 * time.Second)
	e.mu.Unlock()

	st, err := e.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Position != 30 {
		t.Fatalf("Status() position under skew = %v, want 30", st.Position)
	}
}
