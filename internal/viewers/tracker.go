package viewers

import (
	"context"
	"time"
)

// Tracker maintains last-seen timestamps for viewer heartbeats. A
// viewer is active when its last ping is within the given timeout;
// stale records linger until Sweep runs (ActiveCount ignores them).
type Tracker interface {
	// Touch upserts the viewer's last-ping timestamp. Idempotent;
	// viewer IDs are opaque strings.
	Touch(ctx context.Context, viewerID string) error

	// ActiveCount counts viewers pinged within timeout. Pure read.
	ActiveCount(ctx context.Context, timeout time.Duration) (int, error)

	// Sweep removes records older than timeout.
	Sweep(ctx context.Context, timeout time.Duration) error

	// Clear drops every record, used when a session ends.
	Clear(ctx context.Context) error
}
