package handlers

import (
	"go.uber.org/zap"

	"flowreplay/internal/events"
	"flowreplay/internal/recorder"
	"flowreplay/internal/storage"
)

// Shared handler dependencies, wired once at startup.
var (
	store     *storage.GormStore
	recording *recorder.Manager
	bus       *events.Bus
	logger    *zap.Logger
)

func Init(s *storage.GormStore, r *recorder.Manager, b *events.Bus, l *zap.Logger) {
	store = s
	recording = r
	bus = b
	logger = l
	if logger == nil {
		logger = zap.NewNop()
	}
}
