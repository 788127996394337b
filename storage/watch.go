package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Watch polls the backing file for writes made by other processes and
// reports them to every attached view. It blocks until ctx is done. Watch is
// a no-op for in-memory media.
func (m *Medium) Watch(ctx context.Context, interval time.Duration) {
	if m.path == "" {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Reload(); err != nil {
				log.Warn().Err(err).Str("path", m.path).Msg("storage: reload failed")
			}
		}
	}
}

// Reload re-reads the backing file if it changed since the last read or
// write made through this medium.
func (m *Medium) Reload() error {
	if m.path == "" {
		return nil
	}
	m.lock.Lock()
	changed, err := m.syncFileLocked()
	targets := m.viewsExcept(nil)
	m.lock.Unlock()
	if err != nil {
		return err
	}

	deliverIfAny(targets, changed)
	return nil
}
