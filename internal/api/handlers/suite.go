package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"flowreplay/internal/executor"
	"flowreplay/internal/models"
	"flowreplay/internal/services"
	"flowreplay/pkg/database"
	"flowreplay/pkg/response"
)

func GetSuites(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	projectID := c.Query("project_id")
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}

	var suites []models.FlowSuite
	var total int64

	query := database.DB.Model(&models.FlowSuite{}).Where("status = ?", 1)
	if projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}
	query.Count(&total)

	offset := (page - 1) * pageSize
	err := query.Preload("Project").Preload("Flows", "status = ?", 1).
		Offset(offset).Limit(pageSize).Find(&suites).Error
	if err != nil {
		response.InternalServerError(c, "failed to list suites")
		return
	}
	for i := range suites {
		suites[i].FlowCount = len(suites[i].Flows)
	}

	response.Page(c, suites, total, page, pageSize)
}

func GetSuite(c *gin.Context) {
	id := c.Param("id")

	var suite models.FlowSuite
	err := database.DB.Preload("Project").Preload("Flows", "status = ?", 1).
		Where("id = ? AND status = ?", id, 1).First(&suite).Error
	if err != nil {
		response.NotFound(c, "suite not found")
		return
	}
	suite.FlowCount = len(suite.Flows)

	response.Success(c, suite)
}

func CreateSuite(c *gin.Context) {
	var req struct {
		Name           string `json:"name" binding:"required,min=1,max=200"`
		Description    string `json:"description" binding:"max=1000"`
		ProjectID      uint   `json:"project_id" binding:"required"`
		FlowIDs        []uint `json:"flow_ids"`
		CronExpression string `json:"cron_expression" binding:"max=100"`
		IsParallel     bool   `json:"is_parallel"`
		TimeoutMinutes int    `json:"timeout_minutes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var project models.Project
	if err := database.DB.Where("id = ? AND status = ?", req.ProjectID, 1).First(&project).Error; err != nil {
		response.NotFound(c, "project not found")
		return
	}

	var flows []models.Flow
	if len(req.FlowIDs) > 0 {
		err := database.DB.Where("id IN ? AND status = ? AND draft = ?", req.FlowIDs, 1, false).
			Find(&flows).Error
		if err != nil || len(flows) != len(req.FlowIDs) {
			response.BadRequest(c, "one or more flows are missing or still drafts")
			return
		}
	}

	if req.TimeoutMinutes <= 0 {
		req.TimeoutMinutes = 60
	}
	suite := models.FlowSuite{
		Name:           req.Name,
		Description:    req.Description,
		ProjectID:      req.ProjectID,
		Flows:          flows,
		CronExpression: req.CronExpression,
		IsParallel:     req.IsParallel,
		TimeoutMinutes: req.TimeoutMinutes,
		Status:         1,
	}
	if err := database.DB.Create(&suite).Error; err != nil {
		response.InternalServerError(c, "failed to create suite")
		return
	}

	if suite.CronExpression != "" && services.GlobalScheduler != nil {
		if err := services.GlobalScheduler.AddSuiteSchedule(suite); err != nil {
			response.BadRequest(c, "invalid cron expression: "+err.Error())
			return
		}
	}

	response.Success(c, suite)
}

func UpdateSuite(c *gin.Context) {
	id := c.Param("id")

	var suite models.FlowSuite
	if err := database.DB.Where("id = ? AND status = ?", id, 1).First(&suite).Error; err != nil {
		response.NotFound(c, "suite not found")
		return
	}

	var req struct {
		Name           string `json:"name" binding:"required,min=1,max=200"`
		Description    string `json:"description" binding:"max=1000"`
		FlowIDs        []uint `json:"flow_ids"`
		CronExpression string `json:"cron_expression" binding:"max=100"`
		IsParallel     bool   `json:"is_parallel"`
		TimeoutMinutes int    `json:"timeout_minutes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var flows []models.Flow
	if len(req.FlowIDs) > 0 {
		err := database.DB.Where("id IN ? AND status = ? AND draft = ?", req.FlowIDs, 1, false).
			Find(&flows).Error
		if err != nil || len(flows) != len(req.FlowIDs) {
			response.BadRequest(c, "one or more flows are missing or still drafts")
			return
		}
	}

	suite.Name = req.Name
	suite.Description = req.Description
	suite.CronExpression = req.CronExpression
	suite.IsParallel = req.IsParallel
	if req.TimeoutMinutes > 0 {
		suite.TimeoutMinutes = req.TimeoutMinutes
	}
	if err := database.DB.Save(&suite).Error; err != nil {
		response.InternalServerError(c, "failed to update suite")
		return
	}
	if err := database.DB.Model(&suite).Association("Flows").Replace(flows); err != nil {
		response.InternalServerError(c, "failed to update suite flows")
		return
	}

	if services.GlobalScheduler != nil {
		services.GlobalScheduler.RemoveSuiteSchedule(suite.ID)
		if suite.CronExpression != "" {
			if err := services.GlobalScheduler.AddSuiteSchedule(suite); err != nil {
				response.BadRequest(c, "invalid cron expression: "+err.Error())
				return
			}
		}
	}

	response.Success(c, suite)
}

func DeleteSuite(c *gin.Context) {
	id := c.Param("id")

	var suite models.FlowSuite
	if err := database.DB.Where("id = ? AND status = ?", id, 1).First(&suite).Error; err != nil {
		response.NotFound(c, "suite not found")
		return
	}

	if services.GlobalScheduler != nil {
		services.GlobalScheduler.RemoveSuiteSchedule(suite.ID)
	}
	suite.Status = 0
	if err := database.DB.Save(&suite).Error; err != nil {
		response.InternalServerError(c, "failed to delete suite")
		return
	}

	response.SuccessWithMessage(c, "suite deleted", nil)
}

// ExecuteSuite queues a replay of every member flow under one parent
// execution.
func ExecuteSuite(c *gin.Context) {
	id := c.Param("id")

	var suite models.FlowSuite
	err := database.DB.Preload("Flows", "status = ?", 1).
		Where("id = ? AND status = ?", id, 1).First(&suite).Error
	if err != nil {
		response.NotFound(c, "suite not found")
		return
	}
	if len(suite.Flows) == 0 {
		response.BadRequest(c, "suite has no flows")
		return
	}

	now := time.Now()
	parent := &models.FlowExecution{
		SuiteID:     &suite.ID,
		Status:      models.ExecutionRunning,
		TriggerType: "manual",
		StartTime:   &now,
		StepsTotal:  len(suite.Flows),
	}
	if err := store.CreateExecution(c.Request.Context(), parent); err != nil {
		response.InternalServerError(c, "failed to create suite execution")
		return
	}

	queued := 0
	for _, flow := range suite.Flows {
		flowID := flow.ID
		child := &models.FlowExecution{
			FlowID:            &flowID,
			SuiteID:           &suite.ID,
			ParentExecutionID: &parent.ID,
			TriggerType:       "manual",
		}
		if err := store.CreateExecution(c.Request.Context(), child); err != nil {
			continue
		}
		if err := executor.Global.Enqueue(flowID, child.ID); err != nil {
			continue
		}
		queued++
	}

	response.Success(c, gin.H{"execution": parent, "queued_flows": queued})
}
