package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"flowreplay/internal/models"
	"flowreplay/internal/runner"
)

var ErrNotFound = errors.New("record not found")

// GormStore backs the runner and the API with the relational schema in
// internal/models.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewGormStore(db *gorm.DB, logger *zap.Logger) *GormStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormStore{db: db, logger: logger}
}

// GetFlow hydrates a replayable flow: metadata plus decoded steps.
func (s *GormStore) GetFlow(ctx context.Context, id uint) (*runner.Flow, error) {
	var flow models.Flow
	if err := s.db.WithContext(ctx).First(&flow, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load flow %d: %w", id, err)
	}
	steps, err := flow.GetSteps()
	if err != nil {
		return nil, fmt.Errorf("decode steps of flow %d: %w", id, err)
	}
	return &runner.Flow{
		ID:       flow.ID,
		Name:     flow.Name,
		StartURL: flow.StartURL,
		Steps:    steps,
	}, nil
}

// ReportExecution writes the final outcome onto the execution row created
// when the run was requested.
func (s *GormStore) ReportExecution(ctx context.Context, report *runner.Report) error {
	bugs, err := json.Marshal(report.Bugs)
	if err != nil {
		return fmt.Errorf("encode bugs: %w", err)
	}
	now := time.Now()
	updates := map[string]interface{}{
		"status":        string(report.Status),
		"end_time":      &now,
		"duration_ms":   report.Duration.Milliseconds(),
		"steps_total":   report.StepsTotal,
		"steps_done":    report.StepsDone,
		"bugs":          string(bugs),
		"error_message": report.ErrorMessage,
		"page_snapshot": report.PageSnapshot,
	}
	err = s.db.WithContext(ctx).
		Model(&models.FlowExecution{}).
		Where("id = ?", report.ExecutionID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("persist execution %d: %w", report.ExecutionID, err)
	}
	return nil
}

// SaveRunState upserts the single checkpoint row of a flow.
func (s *GormStore) SaveRunState(ctx context.Context, state *runner.RunState) error {
	bugs, err := json.Marshal(state.Bugs)
	if err != nil {
		return fmt.Errorf("encode bugs: %w", err)
	}
	row := models.RunCheckpoint{
		FlowID:      state.FlowID,
		ExecutionID: state.ExecutionID,
		StepIndex:   state.StepIndex,
		Status:      string(state.Status),
		Bugs:        string(bugs),
		StartTime:   state.StartTime,
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "flow_id"}},
			DoUpdates: clause.AssignmentColumns(
				[]string{"execution_id", "step_index", "status", "bugs", "start_time", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save checkpoint for flow %d: %w", state.FlowID, err)
	}
	return nil
}

// LoadRunState returns the checkpoint of an interrupted run, ErrNotFound
// when the flow has none.
func (s *GormStore) LoadRunState(ctx context.Context, flowID uint) (*runner.RunState, error) {
	var row models.RunCheckpoint
	err := s.db.WithContext(ctx).Where("flow_id = ?", flowID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load checkpoint for flow %d: %w", flowID, err)
	}
	state := &runner.RunState{
		FlowID:      row.FlowID,
		ExecutionID: row.ExecutionID,
		StepIndex:   row.StepIndex,
		Status:      runner.Status(row.Status),
		StartTime:   row.StartTime,
	}
	if row.Bugs != "" {
		if err := json.Unmarshal([]byte(row.Bugs), &state.Bugs); err != nil {
			s.logger.Warn("corrupt checkpoint bugs, dropping",
				zap.Uint("flow_id", flowID), zap.Error(err))
		}
	}
	return state, nil
}

func (s *GormStore) ClearRunState(ctx context.Context, flowID uint) error {
	err := s.db.WithContext(ctx).
		Where("flow_id = ?", flowID).
		Delete(&models.RunCheckpoint{}).Error
	if err != nil {
		return fmt.Errorf("clear checkpoint for flow %d: %w", flowID, err)
	}
	return nil
}

// CreateExecution inserts the pending execution row a run will report into.
func (s *GormStore) CreateExecution(ctx context.Context, exec *models.FlowExecution) error {
	if exec.Status == "" {
		exec.Status = models.ExecutionPending
	}
	if err := s.db.WithContext(ctx).Create(exec).Error; err != nil {
		return fmt.Errorf("create execution: %w", err)
	}
	return nil
}

// MarkExecutionRunning stamps the start of a run.
func (s *GormStore) MarkExecutionRunning(ctx context.Context, executionID uint) error {
	now := time.Now()
	err := s.db.WithContext(ctx).
		Model(&models.FlowExecution{}).
		Where("id = ?", executionID).
		Updates(map[string]interface{}{
			"status":     models.ExecutionRunning,
			"start_time": &now,
		}).Error
	if err != nil {
		return fmt.Errorf("mark execution %d running: %w", executionID, err)
	}
	return nil
}

// StaleRunning returns executions still marked running whose last update is
// older than the cutoff; the reconciler fails them.
func (s *GormStore) StaleRunning(ctx context.Context, cutoff time.Time) ([]models.FlowExecution, error) {
	var rows []models.FlowExecution
	err := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", models.ExecutionRunning, cutoff).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query stale executions: %w", err)
	}
	return rows, nil
}

// FailExecution force-finishes an execution with the given message.
func (s *GormStore) FailExecution(ctx context.Context, executionID uint, message string) error {
	now := time.Now()
	err := s.db.WithContext(ctx).
		Model(&models.FlowExecution{}).
		Where("id = ?", executionID).
		Updates(map[string]interface{}{
			"status":        models.ExecutionFailed,
			"end_time":      &now,
			"error_message": message,
		}).Error
	if err != nil {
		return fmt.Errorf("fail execution %d: %w", executionID, err)
	}
	return nil
}

func (s *GormStore) DB() *gorm.DB { return s.db }
