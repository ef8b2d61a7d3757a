package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"flowreplay/internal/engine"
	"flowreplay/internal/executor"
	"flowreplay/internal/models"
	"flowreplay/internal/storage"
	"flowreplay/pkg/database"
	"flowreplay/pkg/response"
)

func GetFlows(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	projectID := c.Query("project_id")
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}

	var flows []models.Flow
	var total int64

	query := database.DB.Model(&models.Flow{}).Where("status = ?", 1)
	if projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}
	query.Count(&total)

	offset := (page - 1) * pageSize
	err := query.Preload("Project").Preload("Environment").
		Offset(offset).Limit(pageSize).Find(&flows).Error
	if err != nil {
		response.InternalServerError(c, "failed to list flows")
		return
	}

	for i := range flows {
		if steps, err := flows[i].GetSteps(); err == nil {
			flows[i].StepCount = len(steps)
		}
	}

	response.Page(c, flows, total, page, pageSize)
}

func GetFlow(c *gin.Context) {
	id := c.Param("id")

	var flow models.Flow
	err := database.DB.Preload("Project").Preload("Environment").
		Where("id = ? AND status = ?", id, 1).First(&flow).Error
	if err != nil {
		response.NotFound(c, "flow not found")
		return
	}
	if steps, err := flow.GetSteps(); err == nil {
		flow.StepCount = len(steps)
	}

	response.Success(c, flow)
}

func CreateFlow(c *gin.Context) {
	var req struct {
		Name          string        `json:"name" binding:"required,min=1,max=200"`
		Description   string        `json:"description" binding:"max=1000"`
		ProjectID     uint          `json:"project_id" binding:"required"`
		EnvironmentID uint          `json:"environment_id" binding:"required"`
		StartURL      string        `json:"start_url" binding:"required,url,max=1000"`
		Steps         []engine.Step `json:"steps"`
		Tags          string        `json:"tags" binding:"max=500"`
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
	var environment models.Environment
	if err := database.DB.Where("id = ? AND status = ?", req.EnvironmentID, 1).First(&environment).Error; err != nil {
		response.NotFound(c, "environment not found")
		return
	}

	flow := models.Flow{
		Name:          req.Name,
		Description:   req.Description,
		ProjectID:     req.ProjectID,
		EnvironmentID: req.EnvironmentID,
		StartURL:      req.StartURL,
		Draft:         true,
		Tags:          req.Tags,
		Status:        1,
	}
	if err := flow.SetSteps(req.Steps); err != nil {
		response.BadRequest(c, "invalid steps")
		return
	}
	if err := database.DB.Create(&flow).Error; err != nil {
		response.InternalServerError(c, "failed to create flow")
		return
	}

	response.Success(c, flow)
}

func UpdateFlow(c *gin.Context) {
	id := c.Param("id")

	var flow models.Flow
	if err := database.DB.Where("id = ? AND status = ?", id, 1).First(&flow).Error; err != nil {
		response.NotFound(c, "flow not found")
		return
	}

	var req struct {
		Name        string `json:"name" binding:"required,min=1,max=200"`
		Description string `json:"description" binding:"max=1000"`
		StartURL    string `json:"start_url" binding:"required,url,max=1000"`
		Tags        string `json:"tags" binding:"max=500"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	flow.Name = req.Name
	flow.Description = req.Description
	flow.StartURL = req.StartURL
	flow.Tags = req.Tags
	if err := database.DB.Save(&flow).Error; err != nil {
		response.InternalServerError(c, "failed to update flow")
		return
	}

	response.Success(c, flow)
}

// UpdateFlowSteps replaces the step list of a draft. Finalized flows are
// immutable; their steps can no longer change.
func UpdateFlowSteps(c *gin.Context) {
	id := c.Param("id")

	var flow models.Flow
	if err := database.DB.Where("id = ? AND status = ?", id, 1).First(&flow).Error; err != nil {
		response.NotFound(c, "flow not found")
		return
	}
	if !flow.Draft {
		response.Conflict(c, "flow is finalized; steps are immutable")
		return
	}

	var req struct {
		Steps []engine.Step `json:"steps" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := flow.SetSteps(req.Steps); err != nil {
		response.BadRequest(c, "invalid steps")
		return
	}
	if err := database.DB.Save(&flow).Error; err != nil {
		response.InternalServerError(c, "failed to update steps")
		return
	}

	response.Success(c, flow)
}

// FinalizeFlow freezes a draft for replay.
func FinalizeFlow(c *gin.Context) {
	id := c.Param("id")

	var flow models.Flow
	if err := database.DB.Where("id = ? AND status = ?", id, 1).First(&flow).Error; err != nil {
		response.NotFound(c, "flow not found")
		return
	}
	if !flow.Draft {
		response.Conflict(c, "flow is already finalized")
		return
	}
	steps, err := flow.GetSteps()
	if err != nil || len(steps) == 0 {
		response.BadRequest(c, "flow has no replayable steps")
		return
	}

	flow.Draft = false
	if err := database.DB.Save(&flow).Error; err != nil {
		response.InternalServerError(c, "failed to finalize flow")
		return
	}

	response.SuccessWithMessage(c, "flow finalized", flow)
}

func DeleteFlow(c *gin.Context) {
	id := c.Param("id")

	var flow models.Flow
	if err := database.DB.Where("id = ? AND status = ?", id, 1).First(&flow).Error; err != nil {
		response.NotFound(c, "flow not found")
		return
	}
	if executor.Global != nil && executor.Global.IsRunning(flow.ID) {
		response.Conflict(c, "flow has an active replay")
		return
	}

	flow.Status = 0
	if err := database.DB.Save(&flow).Error; err != nil {
		response.InternalServerError(c, "failed to delete flow")
		return
	}

	response.SuccessWithMessage(c, "flow deleted", nil)
}

// ExecuteFlow creates a pending execution and queues the replay.
func ExecuteFlow(c *gin.Context) {
	id := c.Param("id")

	var flow models.Flow
	if err := database.DB.Where("id = ? AND status = ?", id, 1).First(&flow).Error; err != nil {
		response.NotFound(c, "flow not found")
		return
	}
	if flow.Draft {
		response.Conflict(c, "draft flows cannot be replayed; finalize first")
		return
	}

	steps, err := flow.GetSteps()
	if err != nil {
		response.InternalServerError(c, "flow steps are corrupt")
		return
	}

	exec := &models.FlowExecution{
		FlowID:      &flow.ID,
		TriggerType: "manual",
		StepsTotal:  len(steps),
	}
	if err := store.CreateExecution(c.Request.Context(), exec); err != nil {
		response.InternalServerError(c, "failed to create execution")
		return
	}
	if err := executor.Global.Enqueue(flow.ID, exec.ID); err != nil {
		response.Conflict(c, err.Error())
		return
	}

	response.Success(c, exec)
}

// StopFlow gracefully stops the flow's active replay.
func StopFlow(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid flow id")
		return
	}

	if !executor.Global.Stop(uint(id)) {
		response.NotFound(c, "flow has no active replay")
		return
	}

	response.SuccessWithMessage(c, "stop requested", nil)
}

// ResumeFlow continues an interrupted replay from its checkpoint.
func ResumeFlow(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid flow id")
		return
	}

	state, err := store.LoadRunState(c.Request.Context(), uint(id))
	if err != nil {
		if err == storage.ErrNotFound {
			response.NotFound(c, "flow has no resumable run")
			return
		}
		response.InternalServerError(c, "failed to load checkpoint")
		return
	}

	if err := executor.Global.EnqueueResume(state); err != nil {
		response.Conflict(c, err.Error())
		return
	}

	response.SuccessWithMessage(c, "resume queued", state)
}
