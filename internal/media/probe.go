package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// ErrToolNotFound is returned when neither the env override nor the
	// usual install locations yield a usable binary.
	ErrToolNotFound = errors.New("media: ffmpeg/ffprobe not found")

	// ErrCorrupt is returned when ffmpeg reports decode errors for an
	// uploaded file.
	ErrCorrupt = errors.New("media: video corruption detected")

	// ErrNoVideoTrack is returned when ffprobe finds no usable duration.
	ErrNoVideoTrack = errors.New("media: no video track found")
)

// Prober wraps the ffmpeg/ffprobe binaries used to validate uploads.
type Prober struct {
	ffmpeg  string
	ffprobe string
}

// Locate resolves the ffmpeg and ffprobe binaries: FFMPEG_PATH /
// FFPROBE_PATH env overrides first, then $PATH, then well-known
// install locations.
func Locate() (*Prober, error) {
	ffmpeg, err := locateTool("ffmpeg", os.Getenv("FFMPEG_PATH"))
	if err != nil {
		return nil, err
	}
	ffprobe, err := locateTool("ffprobe", os.Getenv("FFPROBE_PATH"))
	if err != nil {
		return nil, err
	}
	return &Prober{ffmpeg: ffmpeg, ffprobe: ffprobe}, nil
}

func locateTool(name, envOverride string) (string, error) {
	if envOverride != "" {
		if fileExists(envOverride) {
			return envOverride, nil
		}
		return "", fmt.Errorf("%w: %s override %q does not exist", ErrToolNotFound, name, envOverride)
	}

	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}

	guesses := []string{
		filepath.Join("/usr/local/bin", name),
		filepath.Join("/usr/bin", name),
		filepath.Join("/opt/homebrew/bin", name),
		filepath.Join("/snap/bin", name),
	}
	for _, g := range guesses {
		if fileExists(g) {
			return g, nil
		}
	}
	return "", fmt.Errorf("%w: %s missing; install it or set %s_PATH", ErrToolNotFound, name, strings.ToUpper(name))
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// CheckIntegrity decodes the whole file to /dev/null and fails on any
// reported decode error, mirroring `ffmpeg -loglevel error -i f -f null -`.
func (p *Prober) CheckIntegrity(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, p.ffmpeg, "-loglevel", "error", "-i", path, "-f", "null", "-")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("%w: %s", ErrCorrupt, msg)
	}
	return nil
}

// Duration returns the duration of the first video stream in seconds
// via ffprobe. Files without a video stream (audio-only uploads) are
// rejected with ErrNoVideoTrack.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, p.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=duration:format=duration",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("media: ffprobe %s: %w", filepath.Base(path), err)
	}
	return parseDuration(out)
}

func parseDuration(out []byte) (float64, error) {
	var probe struct {
		Streams []struct {
			Duration string `json:"duration"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, fmt.Errorf("media: parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return 0, ErrNoVideoTrack
	}

	// Some containers (notably Matroska) omit per-stream durations;
	// fall back to the container-level value once a video stream is
	// confirmed present.
	if d, ok := parseSeconds(probe.Streams[0].Duration); ok {
		return d, nil
	}
	if d, ok := parseSeconds(probe.Format.Duration); ok {
		return d, nil
	}
	return 0, ErrNoVideoTrack
}

func parseSeconds(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
