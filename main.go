package main

import (
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/sharedvideo/sharedvideo/internal/config"
	"github.com/sharedvideo/sharedvideo/internal/media"
	"github.com/sharedvideo/sharedvideo/internal/playback"
	"github.com/sharedvideo/sharedvideo/internal/server"
	"github.com/sharedvideo/sharedvideo/internal/storage"
	"github.com/sharedvideo/sharedvideo/internal/viewers"
	"github.com/sharedvideo/sharedvideo/internal/weather"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		// .env is optional; anything else is worth knowing about.
		bootLog := zerolog.New(os.Stderr)
		bootLog.Warn().Err(err).Msg("loading .env")
	}

	cfg := config.FromEnv()

	var (
		addr     = flag.String("addr", cfg.Addr, "listen address")
		videoDir = flag.String("video-dir", cfg.VideoDir, "directory for uploaded videos")
		dbPath   = flag.String("db", cfg.DBPath, "statistics database path")
	)
	flag.Parse()
	cfg.Addr = *addr
	cfg.VideoDir = *videoDir
	cfg.DBPath = *dbPath

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	clock := clockwork.NewRealClock()

	prober, err := media.Locate()
	if err != nil {
		log.Fatal().Err(err).Msg("locating ffmpeg/ffprobe")
	}

	if err := os.MkdirAll(cfg.VideoDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.VideoDir).Msg("creating video directory")
	}

	store, err := openStatsStore(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("opening statistics database")
	}
	defer store.Close()

	tracker, err := newTracker(cfg, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("initializing viewer tracker")
	}

	engine := playback.NewEngine(clock, tracker, playback.Config{
		AutoPlay:      cfg.AutoPlay,
		ReplaceActive: cfg.ReplaceActive,
		ViewerTimeout: cfg.ViewerTimeout,
	}, log)

	weatherClient := weather.NewClient(cfg.WeatherURL, clock)

	srv := server.New(server.Options{
		Addr:              cfg.Addr,
		VideoDir:          cfg.VideoDir,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		UploadMinInterval: cfg.UploadMinInterval,
		ViewerTimeout:     cfg.ViewerTimeout,
		SweepInterval:     cfg.SweepInterval,
	}, engine, tracker, store, weatherClient, prober, clock, log)

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		log.Info().Msg("shutting down...")
		_ = srv.Close()
	}()

	log.Info().Str("addr", cfg.Addr).Str("video_dir", cfg.VideoDir).Msg("SharedVideo listening")
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func openStatsStore(path string) (*storage.Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
	}
	return storage.Open(path, storage.Options{
		BusyTimeout: 5 * time.Second,
		CacheSize:   -20000,
	})
}

func newTracker(cfg config.Config, clock clockwork.Clock) (viewers.Tracker, error) {
	if cfg.RedisAddress == "" {
		return viewers.NewMemory(clock), nil
	}
	return viewers.NewRedis(viewers.RedisConfig{
		Address:  cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Key:      cfg.RedisKey,
	}, clock)
}
