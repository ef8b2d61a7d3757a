package services

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"flowreplay/internal/executor"
	"flowreplay/internal/models"
	"flowreplay/internal/storage"
	"flowreplay/pkg/database"
)

// SchedulerService replays suites on their cron expressions.
type SchedulerService struct {
	cron   *cron.Cron
	store  *storage.GormStore
	logger *zap.Logger

	mu      sync.Mutex
	entries map[uint]cron.EntryID // suite ID -> cron entry
}

var GlobalScheduler *SchedulerService

func InitScheduler(store *storage.GormStore, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	GlobalScheduler = &SchedulerService{
		cron:    cron.New(cron.WithSeconds()),
		store:   store,
		logger:  logger,
		entries: make(map[uint]cron.EntryID),
	}

	if err := GlobalScheduler.loadScheduledSuites(); err != nil {
		return err
	}

	GlobalScheduler.cron.Start()
	logger.Info("scheduler service initialized")
	return nil
}

func (s *SchedulerService) loadScheduledSuites() error {
	var suites []models.FlowSuite
	err := database.DB.Preload("Flows", "status = ?", 1).
		Where("cron_expression != '' AND status = ?", 1).
		Find(&suites).Error
	if err != nil {
		return err
	}

	for _, suite := range suites {
		if err := s.AddSuiteSchedule(suite); err != nil {
			s.logger.Warn("schedule registration failed",
				zap.Uint("suite_id", suite.ID), zap.Error(err))
		}
	}

	s.logger.Info("scheduled suites loaded", zap.Int("count", len(suites)))
	return nil
}

func (s *SchedulerService) AddSuiteSchedule(suite models.FlowSuite) error {
	if suite.CronExpression == "" {
		return nil
	}
	s.RemoveSuiteSchedule(suite.ID)

	suiteID := suite.ID
	entryID, err := s.cron.AddFunc(suite.CronExpression, func() {
		s.runScheduledSuite(suiteID)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[suite.ID] = entryID
	s.mu.Unlock()

	s.logger.Info("suite schedule added",
		zap.Uint("suite_id", suite.ID), zap.String("cron", suite.CronExpression))
	return nil
}

func (s *SchedulerService) RemoveSuiteSchedule(suiteID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[suiteID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, suiteID)
	}
}

// runScheduledSuite creates the parent suite execution plus one child
// execution per member flow and queues the children on the replay pool.
func (s *SchedulerService) runScheduledSuite(suiteID uint) {
	ctx := context.Background()
	log := s.logger.With(zap.Uint("suite_id", suiteID))

	var suite models.FlowSuite
	err := database.DB.Preload("Flows", "status = ?", 1).
		Where("id = ? AND status = ?", suiteID, 1).First(&suite).Error
	if err != nil {
		log.Warn("scheduled suite load failed", zap.Error(err))
		return
	}
	if len(suite.Flows) == 0 {
		log.Info("scheduled suite has no flows")
		return
	}

	now := time.Now()
	parent := &models.FlowExecution{
		SuiteID:     &suite.ID,
		Status:      models.ExecutionRunning,
		TriggerType: "scheduled",
		StartTime:   &now,
		StepsTotal:  len(suite.Flows),
	}
	if err := s.store.CreateExecution(ctx, parent); err != nil {
		log.Error("create suite execution failed", zap.Error(err))
		return
	}

	queued := 0
	for _, flow := range suite.Flows {
		flowID := flow.ID
		child := &models.FlowExecution{
			FlowID:            &flowID,
			SuiteID:           &suite.ID,
			ParentExecutionID: &parent.ID,
			TriggerType:       "scheduled",
		}
		if err := s.store.CreateExecution(ctx, child); err != nil {
			log.Error("create flow execution failed",
				zap.Uint("flow_id", flowID), zap.Error(err))
			continue
		}
		if err := executor.Global.Enqueue(flowID, child.ID); err != nil {
			log.Warn("enqueue scheduled replay failed",
				zap.Uint("flow_id", flowID), zap.Error(err))
			continue
		}
		queued++
	}
	log.Info("scheduled suite queued", zap.Int("flows", queued))
}

func (s *SchedulerService) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}
