package playback

import "errors"

var (
	// ErrNoSession is returned when no live session exists for the
	// requested operation.
	ErrNoSession = errors.New("playback: no active session")

	// ErrSessionActive is returned by Upload under the strict conflict
	// policy while another session is still live.
	ErrSessionActive = errors.New("playback: a video is already playing")

	// ErrInvalidVideo is returned for a blank video reference.
	ErrInvalidVideo = errors.New("playback: invalid video reference")

	// ErrInvalidViewer is returned for a blank viewer identity.
	ErrInvalidViewer = errors.New("playback: invalid viewer id")

	// ErrInvalidPosition is returned for a negative seek target.
	ErrInvalidPosition = errors.New("playback: invalid position")
)
