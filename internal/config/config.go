package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds SHAREDVIDEO_* environment settings (with defaults).
type Config struct {
	Addr     string
	VideoDir string
	DBPath   string
	LogLevel string

	// Engine policy.
	AutoPlay      bool
	ReplaceActive bool
	ViewerTimeout time.Duration
	SweepInterval time.Duration

	// Upload limits.
	MaxUploadBytes    int64
	UploadMinInterval time.Duration

	// Redis presence backend; empty address selects the in-memory tracker.
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisKey      string

	WeatherURL string
}

// FromEnv reads the environment (after any .env load) with defaults.
func FromEnv() Config {
	return Config{
		Addr:     getEnv("SHAREDVIDEO_ADDR", ":8080"),
		VideoDir: getEnv("SHAREDVIDEO_VIDEO_DIR", "shared_video"),
		DBPath:   getEnv("SHAREDVIDEO_DB_PATH", "sharedvideo/statistics.db"),
		LogLevel: getEnv("SHAREDVIDEO_LOG_LEVEL", "info"),

		AutoPlay:      getBool("SHAREDVIDEO_AUTOPLAY", true),
		ReplaceActive: getBool("SHAREDVIDEO_REPLACE_ACTIVE", true),
		ViewerTimeout: getDuration("SHAREDVIDEO_VIEWER_TIMEOUT", 15*time.Second),
		SweepInterval: getDuration("SHAREDVIDEO_SWEEP_INTERVAL", time.Minute),

		MaxUploadBytes:    getInt64("SHAREDVIDEO_MAX_UPLOAD_BYTES", 4<<30),
		UploadMinInterval: getDuration("SHAREDVIDEO_UPLOAD_MIN_INTERVAL", 2*time.Second),

		RedisAddress:  getEnv("SHAREDVIDEO_REDIS_ADDR", ""),
		RedisPassword: getEnv("SHAREDVIDEO_REDIS_PASSWORD", ""),
		RedisDB:       getInt("SHAREDVIDEO_REDIS_DB", 0),
		RedisKey:      getEnv("SHAREDVIDEO_REDIS_KEY", "sharedvideo:viewers"),

		WeatherURL: getEnv("SHAREDVIDEO_WEATHER_URL", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
