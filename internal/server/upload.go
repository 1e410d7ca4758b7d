package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sharedvideo/sharedvideo/internal/media"
)

var allowedContentTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
}

const multipartMemoryLimit = 32 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}

	if ok, wait := s.uploadLimit.allow(clientHost(r)); !ok {
		w.Header().Set("Retry-After", fmt.Sprintf("%.0f", wait.Seconds()))
		s.writeError(w, "too many uploads", http.StatusTooManyRequests)
		return
	}

	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		s.writeError(w, "invalid multipart body", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename, err := validateUpload(header)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	target := filepath.Join(s.opts.VideoDir, filename)
	if err := saveFile(file, target); err != nil {
		s.log.Error().Err(err).Str("file", filename).Msg("saving upload")
		s.writeError(w, errInternal, http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	if err := s.prober.CheckIntegrity(ctx, target); err != nil {
		_ = os.Remove(target)
		if errors.Is(err, media.ErrCorrupt) {
			s.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.log.Error().Err(err).Str("file", filename).Msg("integrity probe")
		s.writeError(w, errInternal, http.StatusInternalServerError)
		return
	}

	duration, err := s.prober.Duration(ctx, target)
	if err != nil {
		_ = os.Remove(target)
		if errors.Is(err, media.ErrNoVideoTrack) {
			s.writeError(w, "no video track found", http.StatusBadRequest)
			return
		}
		s.log.Error().Err(err).Str("file", filename).Msg("duration probe")
		s.writeError(w, errInternal, http.StatusInternalServerError)
		return
	}

	if _, err := s.engine.Upload(ctx, filename, duration); err != nil {
		_ = os.Remove(target)
		s.writeEngineError(w, err)
		return
	}

	if s.stats != nil {
		if err := s.stats.RecordUpload(filename, duration, s.clock.Now()); err != nil {
			s.log.Warn().Err(err).Str("file", filename).Msg("recording upload stats")
		}
	}

	writeJSON(w, map[string]any{
		"message":  "video uploaded",
		"filename": filename,
		"duration": duration,
	})
}

// validateUpload checks the filename extension and, when the client
// declared one, the content type.
func validateUpload(header *multipart.FileHeader) (string, error) {
	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return "", fmt.Errorf("invalid filename")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	expected, ok := allowedContentTypes[ext]
	if !ok {
		return "", fmt.Errorf("unsupported extension %q", ext)
	}

	if declared := header.Header.Get("Content-Type"); declared != "" && declared != expected {
		return "", fmt.Errorf("wrong content-type %q, expected %q", declared, expected)
	}

	return filename, nil
}

func saveFile(src multipart.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(target)
		return err
	}
	return dst.Close()
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
