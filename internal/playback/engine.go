package playback

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/sharedvideo/sharedvideo/internal/viewers"
)

// Config controls engine policy.
type Config struct {
	// AutoPlay starts playback immediately on upload instead of
	// creating the session paused.
	AutoPlay bool

	// ReplaceActive lets Upload implicitly end a still-live session.
	// When false Upload returns ErrSessionActive instead.
	ReplaceActive bool

	// ViewerTimeout is the liveness window for the active viewer count.
	ViewerTimeout time.Duration
}

// DefaultViewerTimeout matches the ping cadence expected of clients.
const DefaultViewerTimeout = 15 * time.Second

// Status is the consistent view handed to every client. Position is
// already extrapolated to the moment of the call.
type Status struct {
	SessionID     uuid.UUID
	VideoRef      string
	Position      float64
	Duration      float64
	Playing       bool
	Ended         bool
	ActiveViewers int
}

// Engine owns the single-slot session store and applies every
// state-changing command. It holds no timers: readers recompute the
// live position from (Position, LastUpdate) on demand.
type Engine struct {
	clock   clockwork.Clock
	tracker viewers.Tracker
	cfg     Config
	log     zerolog.Logger

	mu  sync.RWMutex
	cur *Session
}

func NewEngine(clock clockwork.Clock, tracker viewers.Tracker, cfg Config, log zerolog.Logger) *Engine {
	if cfg.ViewerTimeout <= 0 {
		cfg.ViewerTimeout = DefaultViewerTimeout
	}
	return &Engine{
		clock:   clock,
		tracker: tracker,
		cfg:     cfg,
		log:     log,
	}
}

// Upload installs a new session for videoRef at position zero.
// duration may be zero when unknown. The conflict policy is
// Config.ReplaceActive; replacement implicitly ends the prior session.
func (e *Engine) Upload(ctx context.Context, videoRef string, duration float64) (*Status, error) {
	if strings.TrimSpace(videoRef) == "" {
		return nil, ErrInvalidVideo
	}
	if duration < 0 {
		duration = 0
	}

	now := e.clock.Now()

	e.mu.Lock()
	if e.cur != nil && e.cur.liveAt(now) {
		if !e.cfg.ReplaceActive {
			e.mu.Unlock()
			return nil, ErrSessionActive
		}
		e.log.Info().
			Str("video", e.cur.VideoRef).
			Str("session_id", e.cur.ID.String()).
			Msg("replacing live session")
	}
	s := &Session{
		ID:         uuid.New(),
		VideoRef:   videoRef,
		Position:   0,
		Playing:    e.cfg.AutoPlay,
		Duration:   duration,
		LastUpdate: now,
	}
	e.cur = s
	snap := *s
	e.mu.Unlock()

	e.log.Info().
		Str("video", videoRef).
		Str("session_id", snap.ID.String()).
		Float64("duration", duration).
		Bool("playing", snap.Playing).
		Msg("session created")

	return e.status(ctx, snap, now)
}

// Status returns the extrapolated view of the current session.
// Read-only: an expired session is reported as ended rather than
// mutated in place.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	now := e.clock.Now()

	e.mu.RLock()
	if e.cur == nil {
		e.mu.RUnlock()
		return nil, ErrNoSession
	}
	snap := *e.cur
	e.mu.RUnlock()

	return e.status(ctx, snap, now)
}

// Ping records a viewer heartbeat and returns the same view as Status.
// Clients poll this to re-align local playback.
func (e *Engine) Ping(ctx context.Context, viewerID string) (*Status, error) {
	if strings.TrimSpace(viewerID) == "" {
		return nil, ErrInvalidViewer
	}
	if err := e.tracker.Touch(ctx, viewerID); err != nil {
		return nil, err
	}
	return e.Status(ctx)
}

// End terminates the current session, freezing its position at the
// extrapolated value. A second call fails with ErrNoSession and never
// moves the frozen position.
func (e *Engine) End(ctx context.Context) (*Status, error) {
	now := e.clock.Now()

	e.mu.Lock()
	if e.cur == nil || !e.cur.liveAt(now) {
		e.mu.Unlock()
		return nil, ErrNoSession
	}
	e.cur.Position = e.cur.positionAt(now)
	e.cur.Playing = false
	e.cur.Ended = true
	e.cur.LastUpdate = now
	snap := *e.cur
	e.mu.Unlock()

	// The party is over; liveness is no longer meaningful.
	if err := e.tracker.Clear(ctx); err != nil {
		e.log.Warn().Err(err).Msg("clearing viewer table")
	}

	e.log.Info().
		Str("video", snap.VideoRef).
		Str("session_id", snap.ID.String()).
		Float64("position", snap.Position).
		Msg("session ended")

	st := snapStatus(snap, now)
	return &st, nil
}

// SetPlaying toggles play/pause, folding the extrapolated position into
// the stored reference point so later reads extrapolate from now.
func (e *Engine) SetPlaying(ctx context.Context, playing bool) (*Status, error) {
	now := e.clock.Now()

	e.mu.Lock()
	if e.cur == nil || !e.cur.liveAt(now) {
		e.mu.Unlock()
		return nil, ErrNoSession
	}
	e.cur.Position = e.cur.positionAt(now)
	e.cur.Playing = playing
	e.cur.LastUpdate = now
	snap := *e.cur
	e.mu.Unlock()

	return e.status(ctx, snap, now)
}

// Seek moves the session to an absolute position in seconds.
func (e *Engine) Seek(ctx context.Context, position float64) (*Status, error) {
	if position < 0 {
		return nil, ErrInvalidPosition
	}
	now := e.clock.Now()

	e.mu.Lock()
	if e.cur == nil || !e.cur.liveAt(now) {
		e.mu.Unlock()
		return nil, ErrNoSession
	}
	if e.cur.Duration > 0 && position > e.cur.Duration {
		position = e.cur.Duration
	}
	e.cur.Position = position
	e.cur.LastUpdate = now
	snap := *e.cur
	e.mu.Unlock()

	return e.status(ctx, snap, now)
}

// status assembles a Status from a session snapshot without holding the
// engine lock across the tracker call.
func (e *Engine) status(ctx context.Context, snap Session, now time.Time) (*Status, error) {
	st := snapStatus(snap, now)
	if !st.Ended {
		n, err := e.tracker.ActiveCount(ctx, e.cfg.ViewerTimeout)
		if err != nil {
			return nil, err
		}
		st.ActiveViewers = n
	}
	return &st, nil
}

func snapStatus(snap Session, now time.Time) Status {
	return Status{
		SessionID: snap.ID,
		VideoRef:  snap.VideoRef,
		Position:  snap.positionAt(now),
		Duration:  snap.Duration,
		Playing:   snap.Playing && snap.liveAt(now),
		Ended:     snap.Ended || snap.expiredAt(now),
	}
}
