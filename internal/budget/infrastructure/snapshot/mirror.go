package snapshot

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	budget "grants-cloud/internal/budget/domain"
	"grants-cloud/internal/observability/metrics"
)

// Source is a repository that can be copied and replaced wholesale.
type Source interface {
	Snapshot(now time.Time) *budget.Snapshot
	Restore(snap *budget.Snapshot)
	Version() uint64
}

// Mirror restores a Source from a Store on start and saves it back
// periodically and on shutdown. Saves are skipped while the source is
// unchanged.
type Mirror struct {
	source   Source
	store    Store
	interval time.Duration
	clock    budget.Clock
	logger   *zap.Logger

	mu    sync.Mutex
	saved uint64
}

// MirrorOption configures a Mirror.
type MirrorOption func(*Mirror)

// WithInterval sets the save period.
func WithInterval(interval time.Duration) MirrorOption {
	return func(m *Mirror) {
		if interval > 0 {
			m.interval = interval
		}
	}
}

// WithClock overrides the clock stamped on snapshots.
func WithClock(clock budget.Clock) MirrorOption {
	return func(m *Mirror) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) MirrorOption {
	return func(m *Mirror) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMirror constructs a mirror.
func NewMirror(source Source, store Store, opts ...MirrorOption) (*Mirror, error) {
	if source == nil {
		return nil, errors.New("snapshot: nil source")
	}
	if store == nil {
		return nil, errors.New("snapshot: nil store")
	}
	m := &Mirror{
		source:   source,
		store:    store,
		interval: 30 * time.Second,
		clock:    budget.SystemClock{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("snapshot")
	return m, nil
}

// Restore loads the stored snapshot into the source. A missing snapshot
// leaves the source empty and is not an error.
func (m *Mirror) Restore(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, err := m.store.Load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		m.logger.Info("no snapshot stored, starting empty")
		m.saved = m.source.Version()
		return nil
	}
	metrics.IncSnapshot("restore", metrics.Result(err))
	if err != nil {
		return err
	}
	m.source.Restore(snap)
	m.saved = m.source.Version()
	m.logger.Info("snapshot restored",
		zap.Int("grants", len(snap.Grants)),
		zap.Int("engagements", len(snap.Engagements)),
		zap.Int("payments", len(snap.Payments)),
		zap.Time("saved_at", snap.SavedAt),
	)
	return nil
}

// Flush saves the source when it changed since the last save.
func (m *Mirror) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	version := m.source.Version()
	if version == m.saved {
		return nil
	}
	err := m.store.Save(ctx, m.source.Snapshot(m.clock.Now()))
	metrics.IncSnapshot("save", metrics.Result(err))
	if err != nil {
		return err
	}
	m.saved = version
	return nil
}

// Run saves on every tick until ctx is done, then flushes once more.
func (m *Mirror) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := m.Flush(shutdownCtx); err != nil {
				m.logger.Error("final snapshot save failed", zap.Error(err))
			}
			cancel()
			return
		case <-ticker.C:
			if err := m.Flush(ctx); err != nil {
				m.logger.Warn("snapshot save failed", zap.Error(err))
			}
		}
	}
}
