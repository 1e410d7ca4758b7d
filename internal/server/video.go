package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.methodNotAllowed(w)
		return
	}

	st, err := s.engine.Status(r.Context())
	if err != nil || st.Ended {
		s.writeError(w, "no video playing", http.StatusNotFound)
		return
	}

	path := filepath.Join(s.opts.VideoDir, filepath.Base(st.VideoRef))
	serveVideoFile(w, r, path)
}

func serveVideoFile(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		http.Error(w, "file stat failed", http.StatusInternalServerError)
		return
	}

	// Content-Type best effort
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mkv":
		w.Header().Set("Content-Type", "video/x-matroska")
	case ".mp4", ".m4v", ".mov":
		w.Header().Set("Content-Type", "video/mp4")
	case ".webm":
		w.Header().Set("Content-Type", "video/webm")
	case ".avi":
		w.Header().Set("Content-Type", "video/x-msvideo")
	}

	// ServeContent supports Range if the reader is seekable (os.File is).
	http.ServeContent(w, r, filepath.Base(path), st.ModTime(), f)
}
