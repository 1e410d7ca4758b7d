package playback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/sharedvideo/sharedvideo/internal/viewers"
)

func newTestEngine(t *testing.T, cfg Config) (*Engine, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClock()
	tracker := viewers.NewMemory(clock)
	if cfg.ViewerTimeout == 0 {
		cfg.ViewerTimeout = 30 * time.Second
	}
	return NewEngine(clock, tracker, cfg, zerolog.Nop()), clock
}

func TestStatusNoSession(t *testing.T) {
	e, _ := newTestEngine(t, Config{})

	if _, err := e.Status(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Status() error = %v, want ErrNoSession", err)
	}
}

func TestUploadCreatesPausedSessionAtZero(t *testing.T) {
	e, clock := newTestEngine(t, Config{})
	ctx := context.Background()

	st, err := e.Upload(ctx, "video-1", 0)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if st.Position != 0 || st.Playing || st.Ended {
		t.Fatalf("Upload() status = %+v, want position 0, paused, not ended", st)
	}

	// Paused sessions never advance regardless of elapsed time.
	clock.Advance(time.Hour)
	st, err = e.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Position != 0 {
		t.Fatalf("paused position = %v, want 0", st.Position)
	}
}

func TestUploadRejectsBlankRef(t *testing.T) {
	e, _ := newTestEngine(t, Config{})

	if _, err := e.Upload(context.Background(), "  ", 0); !errors.Is(err, ErrInvalidVideo) {
		t.Fatalf("Upload(blank) error = %v, want ErrInvalidVideo", err)
	}
}

func TestExtrapolationWhilePlaying(t *testing.T) {
	e, clock := newTestEngine(t, Config{})
	ctx := context.Background()

	if _, err := e.Upload(ctx, "video-1", 0); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if _, err := e.SetPlaying(ctx, true); err != nil {
		t.Fatalf("SetPlaying(true) error = %v", err)
	}

	clock.Advance(10 * time.Second)
	st, err := e.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Position != 10.0 {
		t.Fatalf("position after 10s playing = %v, want 10.0", st.Position)
	}

	// Pausing freezes the position.
	if _, err := e.SetPlaying(ctx, false); err != nil {
		t.Fatalf("SetPlaying(false) error = %v", err)
	}
	clock.Advance(10 * time.Second)
	st, _ = e.Status(ctx)
	if st.Position != 10.0 {
		t.Fatalf("position after pause = %v, want 10.0", st.Position)
	}
}

func TestPositionMonotonicWhilePlaying(t *testing.T) {
	e, clock := newTestEngine(t, Config{AutoPlay: true})
	ctx := context.Background()

	if _, err := e.Upload(ctx, "video-1", 0); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	prev := -1.0
	for i := 0; i < 20; i++ {
		st, err := e.Status(ctx)
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if st.Position < prev {
			t.Fatalf("position regressed: %v -> %v", prev, st.Position)
		}
		prev = st.Position
		clock.Advance(700 * time.Millisecond)
	}
}

func TestSeek(t *testing.T) {
	e, clock := newTestEngine(t, Config{AutoPlay: true})
	ctx := context.Background()

	if _, err := e.Upload(ctx, "video-1", 120); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	st, err := e.Seek(ctx, 42)
	if err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	if st.Position != 42 {
		t.Fatalf("Seek(42) position = %v", st.Position)
	}

	clock.Advance(3 * time.Second)
	st, _ = e.Status(ctx)
	if st.Position != 45 {
		t.Fatalf("position 3s after seek = %v, want 45", st.Position)
	}

	if _, err := e.Seek(ctx, -1); !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("Seek(-1) error = %v, want ErrInvalidPosition", err)
	}

	// Past-the-end targets clamp to the duration.
	st, err = e.Seek(ctx, 500)
	if err != nil {
		t.Fatalf("Seek(500) error = %v", err)
	}
	if st.Position != 120 {
		t.Fatalf("Seek past end position = %v, want 120", st.Position)
	}
}

func TestPositionClampsAtDuration(t *testing.T) {
	e, clock := newTestEngine(t, Config{AutoPlay: true})
	ctx := context.Background()

	if _, err := e.Upload(ctx, "video-1", 60); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	clock.Advance(2 * time.Minute)
	st, err := e.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Position != 60 {
		t.Fatalf("position past end = %v, want 60", st.Position)
	}
	if !st.Ended {
		t.Fatal("expired session not reported as ended")
	}
	if st.Playing {
		t.Fatal("expired session still reported playing")
	}
}

func TestEndFreezesPosition(t *testing.T) {
	e, clock := newTestEngine(t, Config{AutoPlay: true})
	ctx := context.Background()

	if _, err := e.Upload(ctx, "video-1", 0); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	clock.Advance(25 * time.Second)

	st, err := e.End(ctx)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if st.Position != 25 {
		t.Fatalf("End() position = %v, want 25", st.Position)
	}
	if !st.Ended || st.Playing {
		t.Fatalf("End() status = %+v, want ended and not playing", st)
	}

	// Second end fails and the frozen position stays put.
	if _, err := e.End(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("second End() error = %v, want ErrNoSession", err)
	}
	clock.Advance(time.Minute)
	st, err = e.Status(ctx)
	if err != nil {
		t.Fatalf("Status() after end error = %v", err)
	}
	if st.Position != 25 || !st.Ended {
		t.Fatalf("status after end = %+v, want frozen at 25", st)
	}
}

func TestEndWithoutSession(t *testing.T) {
	e, _ := newTestEngine(t, Config{})

	if _, err := e.End(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("End() error = %v, want ErrNoSession", err)
	}
}

func TestEndClearsViewers(t *testing.T) {
	e, _ := newTestEngine(t, Config{AutoPlay: true})
	ctx := context.Background()

	if _, err := e.Upload(ctx, "video-1", 0); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if _, err := e.Ping(ctx, "viewerA"); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if _, err := e.End(ctx); err != nil {
		t.Fatalf("End() error = %v", err)
	}

	n, err := e.tracker.ActiveCount(ctx, time.Hour)
	if err != nil {
		t.Fatalf("ActiveCount() error = %v", err)
	}
	if n != 0 {
		t.Fatalf("viewer table not cleared on end, count = %d", n)
	}
}

func TestPingCountsViewers(t *testing.T) {
	e, clock := newTestEngine(t, Config{AutoPlay: true, ViewerTimeout: 30 * time.Second})
	ctx := context.Background()

	if _, err := e.Upload(ctx, "video-1", 0); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	st, err := e.Ping(ctx, "viewerA")
	if err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if st.ActiveViewers != 1 {
		t.Fatalf("ActiveViewers = %d, want 1", st.ActiveViewers)
	}

	// Repeated pings for the same viewer never create duplicates.
	for i := 0; i < 3; i++ {
		st, _ = e.Ping(ctx, "viewerA")
	}
	if st.ActiveViewers != 1 {
		t.Fatalf("ActiveViewers after repeats = %d, want 1", st.ActiveViewers)
	}

	st, _ = e.Ping(ctx, "viewerB")
	if st.ActiveViewers != 2 {
		t.Fatalf("ActiveViewers = %d, want 2", st.ActiveViewers)
	}

	clock.Advance(31 * time.Second)
	st, err = e.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.ActiveViewers != 0 {
		t.Fatalf("ActiveViewers after timeout = %d, want 0", st.ActiveViewers)
	}
}

func TestPingRejectsBlankViewer(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	ctx := context.Background()

	if _, err := e.Upload(ctx, "video-1", 0); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if _, err := e.Ping(ctx, ""); !errors.Is(err, ErrInvalidViewer) {
		t.Fatalf("Ping(blank) error = %v, want ErrInvalidViewer", err)
	}
}

func TestUploadConflictPolicyStrict(t *testing.T) {
	e, _ := newTestEngine(t, Config{AutoPlay: true, ReplaceActive: false})
	ctx := context.Background()

	if _, err := e.Upload(ctx, "video-1", 0); err != nil {
		t.Fatalf("first Upload() error = %v", err)
	}
	if _, err := e.Upload(ctx, "video-2", 0); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("second Upload() error = %v, want ErrSessionActive", err)
	}

	// The failed upload leaves prior state untouched.
	st, err := e.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.VideoRef != "video-1" {
		t.Fatalf("VideoRef = %q, want video-1", st.VideoRef)
	}
}

func TestUploadConflictPolicyReplace(t *testing.T) {
	e, clock := newTestEngine(t, Config{AutoPlay: true, ReplaceActive: true})
	ctx := context.Background()

	if _, err := e.Upload(ctx, "video-1", 0); err != nil {
		t.Fatalf("first Upload() error = %v", err)
	}
	clock.Advance(5 * time.Second)

	st, err := e.Upload(ctx, "video-2", 0)
	if err != nil {
		t.Fatalf("replacing Upload() error = %v", err)
	}
	if st.VideoRef != "video-2" || st.Position != 0 {
		t.Fatalf("replacement status = %+v, want video-2 at 0", st)
	}
}

func TestUploadAfterExpiry(t *testing.T) {
	e, clock := newTestEngine(t, Config{AutoPlay: true, ReplaceActive: false})
	ctx := context.Background()

	if _, err := e.Upload(ctx, "video-1", 10); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	clock.Advance(11 * time.Second)

	// Expired sessions no longer block new uploads, even under the
	// strict policy.
	if _, err := e.Upload(ctx, "video-2", 0); err != nil {
		t.Fatalf("Upload() after expiry error = %v", err)
	}
}

func TestControlsRejectedAfterEnd(t *testing.T) {
	e, _ := newTestEngine(t, Config{AutoPlay: true})
	ctx := context.Background()

	if _, err := e.Upload(ctx, "video-1", 0); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if _, err := e.End(ctx); err != nil {
		t.Fatalf("End() error = %v", err)
	}

	if _, err := e.SetPlaying(ctx, true); !errors.Is(err, ErrNoSession) {
		t.Fatalf("SetPlaying() after end error = %v, want ErrNoSession", err)
	}
	if _, err := e.Seek(ctx, 1); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Seek() after end error = %v, want ErrNoSession", err)
	}
}

func TestConcurrentStatusAndPing(t *testing.T) {
	e, _ := newTestEngine(t, Config{AutoPlay: true})
	ctx := context.Background()

	if _, err := e.Upload(ctx, "video-1", 0); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	done := make(chan error, 20)
	for i := 0; i < 10; i++ {
		id := string(rune('a' + i))
		go func() {
			_, err := e.Ping(ctx, "viewer-"+id)
			done <- err
		}()
		go func() {
			_, err := e.Status(ctx)
			done <- err
		}()
	}
	for i := 0; i < 20; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent call error = %v", err)
		}
	}

	st, err := e.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.ActiveViewers != 10 {
		t.Fatalf("ActiveViewers = %d, want 10", st.ActiveViewers)
	}
}
