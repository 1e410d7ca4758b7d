package server

import (
	"context"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/sharedvideo/sharedvideo/internal/playback"
	"github.com/sharedvideo/sharedvideo/internal/storage"
	"github.com/sharedvideo/sharedvideo/internal/viewers"
	"github.com/sharedvideo/sharedvideo/internal/weather"
)

// Prober validates uploaded files before a session starts.
type Prober interface {
	CheckIntegrity(ctx context.Context, path string) error
	Duration(ctx context.Context, path string) (float64, error)
}

// Options configures the HTTP boundary.
type Options struct {
	Addr              string
	VideoDir          string
	MaxUploadBytes    int64
	UploadMinInterval time.Duration
	ViewerTimeout     time.Duration
	SweepInterval     time.Duration
}

type Server struct {
	opts    Options
	engine  *playback.Engine
	tracker viewers.Tracker
	stats   *storage.Store
	weather *weather.Client
	prober  Prober
	clock   clockwork.Clock
	log     zerolog.Logger

	http        *http.Server
	uploadLimit *rateLimiter
	sweepTicker clockwork.Ticker
	sweepStop   chan struct{}
}

func New(opts Options, engine *playback.Engine, tracker viewers.Tracker, stats *storage.Store, wc *weather.Client, prober Prober, clock clockwork.Clock, log zerolog.Logger) *Server {
	s := &Server{
		opts:        opts,
		engine:      engine,
		tracker:     tracker,
		stats:       stats,
		weather:     wc,
		prober:      prober,
		clock:       clock,
		log:         log,
		uploadLimit: newRateLimiter(opts.UploadMinInterval, clock),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/ping", s.handlePing)
	mux.HandleFunc("/end", s.handleEnd)
	mux.HandleFunc("/play", s.handlePlay)
	mux.HandleFunc("/pause", s.handlePause)
	mux.HandleFunc("/seek", s.handleSeek)
	mux.HandleFunc("/video", s.handleVideo)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/stats/recent", s.handleStatsRecent)
	mux.HandleFunc("/weather", s.handleWeather)

	handler := cors.AllowAll().Handler(s.logMiddleware(mux))

	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if opts.SweepInterval > 0 {
		s.sweepTicker = clock.NewTicker(opts.SweepInterval)
		s.sweepStop = make(chan struct{})
		go s.runSweepTicker()
	}

	return s
}

func (s *Server) Start() error { return s.http.ListenAndServe() }

func (s *Server) Close() error {
	s.stopSweepTicker()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}

// runSweepTicker periodically evicts stale viewer records so the
// liveness table does not grow without bound between sessions.
func (s *Server) runSweepTicker() {
	for {
		select {
		case <-s.sweepTicker.Chan():
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.tracker.Sweep(ctx, s.opts.ViewerTimeout); err != nil {
				s.log.Warn().Err(err).Msg("viewer sweep failed")
			}
			cancel()
		case <-s.sweepStop:
			s.sweepTicker.Stop()
			return
		}
	}
}

func (s *Server) stopSweepTicker() {
	if s.sweepStop == nil {
		return
	}
	close(s.sweepStop)
	s.sweepStop = nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
