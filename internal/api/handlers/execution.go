package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"

	"flowreplay/internal/models"
	"flowreplay/internal/runner"
	"flowreplay/pkg/database"
	"flowreplay/pkg/response"
)

func GetExecutions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	flowID := c.Query("flow_id")
	suiteID := c.Query("suite_id")
	status := c.Query("status")
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}

	var executions []models.FlowExecution
	var total int64

	query := database.DB.Model(&models.FlowExecution{})
	if flowID != "" {
		query = query.Where("flow_id = ?", flowID)
	}
	if suiteID != "" {
		query = query.Where("suite_id = ?", suiteID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	query.Count(&total)

	offset := (page - 1) * pageSize
	err := query.Preload("Flow").Preload("Suite").
		Order("created_at DESC").
		Offset(offset).Limit(pageSize).Find(&executions).Error
	if err != nil {
		response.InternalServerError(c, "failed to list executions")
		return
	}

	response.Page(c, executions, total, page, pageSize)
}

func GetExecution(c *gin.Context) {
	id := c.Param("id")

	var execution models.FlowExecution
	err := database.DB.Preload("Flow").Preload("Suite").
		Where("id = ?", id).First(&execution).Error
	if err != nil {
		response.NotFound(c, "execution not found")
		return
	}

	response.Success(c, execution)
}

// GetExecutionBugs decodes the stored findings of a finished run.
func GetExecutionBugs(c *gin.Context) {
	id := c.Param("id")

	var execution models.FlowExecution
	if err := database.DB.Where("id = ?", id).First(&execution).Error; err != nil {
		response.NotFound(c, "execution not found")
		return
	}

	var bugs []runner.Bug
	if execution.Bugs != "" {
		if err := json.Unmarshal([]byte(execution.Bugs), &bugs); err != nil {
			response.InternalServerError(c, "stored bugs are corrupt")
			return
		}
	}

	response.Success(c, bugs)
}

// GetExecutionSnapshot serves the page HTML captured at the failure point.
func GetExecutionSnapshot(c *gin.Context) {
	id := c.Param("id")

	var execution models.FlowExecution
	if err := database.DB.Where("id = ?", id).First(&execution).Error; err != nil {
		response.NotFound(c, "execution not found")
		return
	}
	if execution.PageSnapshot == "" {
		response.NotFound(c, "execution has no page snapshot")
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(200, execution.PageSnapshot)
}

// GetExecutionStatistics aggregates outcomes for the dashboard.
func GetExecutionStatistics(c *gin.Context) {
	var total, succeeded, failed, running int64
	db := database.DB.Model(&models.FlowExecution{}).Where("flow_id IS NOT NULL")
	db.Count(&total)
	database.DB.Model(&models.FlowExecution{}).
		Where("flow_id IS NOT NULL AND status = ?", models.ExecutionSucceeded).Count(&succeeded)
	database.DB.Model(&models.FlowExecution{}).
		Where("flow_id IS NOT NULL AND status = ?", models.ExecutionFailed).Count(&failed)
	database.DB.Model(&models.FlowExecution{}).
		Where("flow_id IS NOT NULL AND status = ?", models.ExecutionRunning).Count(&running)

	response.Success(c, gin.H{
		"total":     total,
		"succeeded": succeeded,
		"failed":    failed,
		"running":   running,
	})
}

func DeleteExecution(c *gin.Context) {
	id := c.Param("id")

	var execution models.FlowExecution
	if err := database.DB.Where("id = ?", id).First(&execution).Error; err != nil {
		response.NotFound(c, "execution not found")
		return
	}
	if execution.Status == models.ExecutionRunning {
		response.Conflict(c, "execution is still running")
		return
	}

	if err := database.DB.Delete(&execution).Error; err != nil {
		response.InternalServerError(c, "failed to delete execution")
		return
	}

	response.SuccessWithMessage(c, "execution deleted", nil)
}
