package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/sharedvideo/sharedvideo/internal/playback"
	"github.com/sharedvideo/sharedvideo/internal/storage"
)

const (
	errNotFound = "not found"
	errInternal = "internal error"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeEngineError maps the engine's error taxonomy to HTTP codes.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, playback.ErrNoSession):
		s.writeError(w, "no video playing", http.StatusNotFound)
	case errors.Is(err, playback.ErrSessionActive):
		s.writeError(w, "a video is already playing", http.StatusConflict)
	case errors.Is(err, playback.ErrInvalidViewer),
		errors.Is(err, playback.ErrInvalidVideo),
		errors.Is(err, playback.ErrInvalidPosition):
		s.writeError(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.Error().Err(err).Msg("engine call failed")
		s.writeError(w, errInternal, http.StatusInternalServerError)
	}
}

// statusPayload is the wire shape of /status and the control endpoints.
type statusPayload struct {
	Status   string  `json:"status"`
	Filename string  `json:"filename,omitempty"`
	Position float64 `json:"position"`
	Duration float64 `json:"duration,omitempty"`
	Viewers  int     `json:"viewers"`
}

func toPayload(st *playback.Status) statusPayload {
	state := "paused"
	if st.Ended {
		state = "ended"
	} else if st.Playing {
		state = "playing"
	}
	return statusPayload{
		Status:   state,
		Filename: st.VideoRef,
		Position: st.Position,
		Duration: st.Duration,
		Viewers:  st.ActiveViewers,
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}

	st, err := s.engine.Status(r.Context())
	if err != nil {
		if errors.Is(err, playback.ErrNoSession) {
			writeJSON(w, map[string]string{"status": "idle"})
			return
		}
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, toPayload(st))
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}

	st, err := s.engine.Ping(r.Context(), viewerIdentity(r))
	if err != nil {
		if errors.Is(err, playback.ErrNoSession) {
			// Pinging an idle party still counts the viewer.
			n, cErr := s.tracker.ActiveCount(r.Context(), s.opts.ViewerTimeout)
			if cErr != nil {
				s.log.Error().Err(cErr).Msg("active count failed")
				s.writeError(w, errInternal, http.StatusInternalServerError)
				return
			}
			writeJSON(w, map[string]any{"viewers": n})
			return
		}
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"viewers":  st.ActiveViewers,
		"position": st.Position,
		"playing":  st.Playing,
	})
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}

	st, err := s.engine.End(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"message":  "video ended",
		"position": st.Position,
	})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	s.handleSetPlaying(w, r, true)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.handleSetPlaying(w, r, false)
}

func (s *Server) handleSetPlaying(w http.ResponseWriter, r *http.Request, playing bool) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}

	st, err := s.engine.SetPlaying(r.Context(), playing)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, toPayload(st))
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}

	raw := r.URL.Query().Get("position")
	if raw == "" {
		raw = r.PostFormValue("position")
	}
	position, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		s.writeError(w, "position must be a number of seconds", http.StatusBadRequest)
		return
	}

	st, err := s.engine.Seek(r.Context(), position)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, toPayload(st))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}
	if s.stats == nil {
		s.writeError(w, "not available without database", http.StatusNotImplemented)
		return
	}

	total, err := s.stats.TotalPlayed()
	if err != nil {
		s.log.Error().Err(err).Msg("reading play counter")
		s.writeError(w, errInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int64{"total_played": total})
}

func (s *Server) handleStatsRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}
	if s.stats == nil {
		s.writeError(w, "not available without database", http.StatusNotImplemented)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	uploads, err := s.stats.RecentUploads(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("reading upload history")
		s.writeError(w, errInternal, http.StatusInternalServerError)
		return
	}
	if uploads == nil {
		uploads = []storage.Upload{}
	}
	writeJSON(w, map[string]any{"uploads": uploads})
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}

	report, err := s.weather.Current(r.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("weather lookup failed")
		s.writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, report)
}

func (s *Server) methodNotAllowed(w http.ResponseWriter) {
	s.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
}

// viewerIdentity resolves the client identity for liveness tracking:
// the X-Viewer-ID header when present, else the remote host.
func viewerIdentity(r *http.Request) string {
	if id := r.Header.Get("X-Viewer-ID"); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
