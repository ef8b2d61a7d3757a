package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"flowreplay/internal/executor"
	"flowreplay/internal/storage"
)

// StatusSyncService reconciles execution rows against the replay pool: a
// row stuck in running with no live run behind it (crash, restart) is force
// failed so the UI never shows phantom activity.
type StatusSyncService struct {
	store  *storage.GormStore
	logger *zap.Logger

	running bool
	ticker  *time.Ticker
	done    chan struct{}
}

func NewStatusSyncService(store *storage.GormStore, logger *zap.Logger) *StatusSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusSyncService{store: store, logger: logger, done: make(chan struct{})}
}

func (s *StatusSyncService) Start() {
	if s.running {
		return
	}
	s.running = true
	s.ticker = time.NewTicker(30 * time.Second)

	go s.syncLoop()
	s.logger.Info("status sync service started")
}

func (s *StatusSyncService) Stop() {
	if !s.running {
		return
	}
	s.running = false
	s.ticker.Stop()
	close(s.done)
	s.logger.Info("status sync service stopped")
}

func (s *StatusSyncService) syncLoop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.ticker.C:
			s.reconcile()
		}
	}
}

func (s *StatusSyncService) reconcile() {
	if executor.Global == nil {
		return
	}
	ctx := context.Background()

	// Very recent rows may still be between enqueue and worker pickup;
	// only rows quiet for a while are candidates.
	cutoff := time.Now().Add(-2 * time.Minute)
	stale, err := s.store.StaleRunning(ctx, cutoff)
	if err != nil {
		s.logger.Warn("stale execution query failed", zap.Error(err))
		return
	}

	fixed := 0
	for _, exec := range stale {
		if exec.FlowID != nil && executor.Global.IsRunning(*exec.FlowID) {
			continue
		}
		err := s.store.FailExecution(ctx, exec.ID,
			"execution lost: no active run behind a running status")
		if err != nil {
			s.logger.Warn("reconcile execution failed",
				zap.Uint("execution_id", exec.ID), zap.Error(err))
			continue
		}
		fixed++
	}
	if fixed > 0 {
		s.logger.Info("reconciled lost executions", zap.Int("count", fixed))
	}
}
