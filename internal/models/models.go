package models

import (
	"time"

	"gorm.io/gorm"

	"flowreplay/internal/engine"
)

type BaseModel struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

type Project struct {
	BaseModel
	Name        string `json:"name" gorm:"size:100;not null"`
	Description string `json:"description" gorm:"size:500"`
	Status      int    `json:"status" gorm:"default:1"` // 1:active, 0:archived
}

type Environment struct {
	BaseModel
	Name        string `json:"name" gorm:"size:100;not null"`
	Description string `json:"description" gorm:"size:500"`
	BaseURL     string `json:"base_url" gorm:"size:500;not null"`
	Type        string `json:"type" gorm:"size:20;not null"` // test, staging, product
	Variables   string `json:"variables" gorm:"type:text"`   // JSON format
	Status      int    `json:"status" gorm:"default:1"`
}

// Flow is a recorded interaction sequence. Steps holds the JSON-encoded
// step array; it is append-only while the flow is being recorded, editable
// as a draft, and frozen once finalized.
type Flow struct {
	BaseModel
	Name          string      `json:"name" gorm:"size:200;not null"`
	Description   string      `json:"description" gorm:"size:1000"`
	ProjectID     uint        `json:"project_id" gorm:"not null"`
	Project       Project     `json:"project" gorm:"foreignKey:ProjectID"`
	EnvironmentID uint        `json:"environment_id" gorm:"not null"`
	Environment   Environment `json:"environment" gorm:"foreignKey:EnvironmentID"`
	StartURL      string      `json:"start_url" gorm:"size:1000;not null"`
	Steps         string      `json:"steps" gorm:"type:longtext"`
	StepCount     int         `json:"step_count" gorm:"-"`
	Draft         bool        `json:"draft" gorm:"default:true"`
	Tags          string      `json:"tags" gorm:"size:500"`
	Status        int         `json:"status" gorm:"default:1"`
}

func (f *Flow) GetSteps() ([]engine.Step, error) {
	return engine.ParseSteps(f.Steps)
}

func (f *Flow) SetSteps(steps []engine.Step) error {
	encoded, err := engine.EncodeSteps(steps)
	if err != nil {
		return err
	}
	f.Steps = encoded
	f.StepCount = len(steps)
	return nil
}

type FlowSuite struct {
	BaseModel
	Name           string  `json:"name" gorm:"size:200;not null"`
	Description    string  `json:"description" gorm:"size:1000"`
	ProjectID      uint    `json:"project_id" gorm:"not null"`
	Project        Project `json:"project" gorm:"foreignKey:ProjectID"`
	Flows          []Flow  `json:"flows" gorm:"many2many:flow_suite_flows;"`
	FlowCount      int     `json:"flow_count" gorm:"-"`
	CronExpression string  `json:"cron_expression" gorm:"size:100"`
	IsParallel     bool    `json:"is_parallel" gorm:"default:false"`
	TimeoutMinutes int     `json:"timeout_minutes" gorm:"default:60"`
	Status         int     `json:"status" gorm:"default:1"`
}

// Execution statuses, aligned with the runner's run-level states.
const (
	ExecutionPending   = "pending"
	ExecutionRunning   = "running"
	ExecutionSucceeded = "succeeded"
	ExecutionFailed    = "failed"
	ExecutionStopped   = "stopped"
)

// FlowExecution is one replay of a flow or a suite. Suite executions have
// FlowID unset and act as parents of their member flow executions.
type FlowExecution struct {
	BaseModel
	FlowID            *uint      `json:"flow_id"`
	Flow              Flow       `json:"flow" gorm:"foreignKey:FlowID"`
	SuiteID           *uint      `json:"suite_id"`
	Suite             FlowSuite  `json:"suite" gorm:"foreignKey:SuiteID"`
	ParentExecutionID *uint      `json:"parent_execution_id"`
	Status            string     `json:"status" gorm:"size:30;default:pending"`
	TriggerType       string     `json:"trigger_type" gorm:"size:20;default:manual"` // manual, scheduled, api
	StartTime         *time.Time `json:"start_time"`
	EndTime           *time.Time `json:"end_time"`
	DurationMs        int64      `json:"duration_ms"`
	StepsTotal        int        `json:"steps_total"`
	StepsDone         int        `json:"steps_done"`
	Bugs              string     `json:"bugs" gorm:"type:text"` // JSON Bug array
	ErrorMessage      string     `json:"error_message" gorm:"type:text"`
	PageSnapshot      string     `json:"page_snapshot" gorm:"type:longtext"`
}

// RunCheckpoint is the persisted resume point of an in-flight replay, one
// row per flow, rewritten before every step and cleared on clean finish.
type RunCheckpoint struct {
	BaseModel
	FlowID      uint      `json:"flow_id" gorm:"uniqueIndex;not null"`
	ExecutionID uint      `json:"execution_id" gorm:"not null"`
	StepIndex   int       `json:"step_index"`
	Status      string    `json:"status" gorm:"size:30"`
	Bugs        string    `json:"bugs" gorm:"type:text"`
	StartTime   time.Time `json:"start_time"`
}
