package viewers

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Memory is the in-process Tracker, suitable for single-instance
// deployments. Records are held in a sync.Map so concurrent pings from
// distinct viewers never contend on a global lock.
type Memory struct {
	clock clockwork.Clock
	seen  sync.Map // viewerID -> time.Time
}

func NewMemory(clock clockwork.Clock) *Memory {
	return &Memory{clock: clock}
}

func (m *Memory) Touch(_ context.Context, viewerID string) error {
	m.seen.Store(viewerID, m.clock.Now())
	return nil
}

func (m *Memory) ActiveCount(_ context.Context, timeout time.Duration) (int, error) {
	now := m.clock.Now()
	count := 0
	m.seen.Range(func(_, v any) bool {
		if now.Sub(v.(time.Time)) <= timeout {
			count++
		}
		return true
	})
	return count, nil
}

func (m *Memory) Sweep(_ context.Context, timeout time.Duration) error {
	now := m.clock.Now()
	m.seen.Range(func(k, v any) bool {
		if now.Sub(v.(time.Time)) > timeout {
			m.seen.Delete(k)
		}
		return true
	})
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	// sync.Map.Clear requires Go 1.23; delete entries individually so the
	// module builds with the Go 1.21 toolchain.
	m.seen.Range(func(k, _ any) bool {
		m.seen.Delete(k)
		return true
	})
	return nil
}

var _ Tracker = (*Memory)(nil)
