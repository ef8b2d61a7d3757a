package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"

	"flowreplay/internal/models"
	"flowreplay/pkg/database"
	"flowreplay/pkg/response"
)

func GetEnvironments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	envType := c.Query("type")
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}

	var environments []models.Environment
	var total int64

	query := database.DB.Model(&models.Environment{}).Where("status = ?", 1)
	if envType != "" {
		query = query.Where("type = ?", envType)
	}
	query.Count(&total)

	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Find(&environments).Error; err != nil {
		response.InternalServerError(c, "failed to list environments")
		return
	}

	response.Page(c, environments, total, page, pageSize)
}

func GetEnvironment(c *gin.Context) {
	id := c.Param("id")

	var environment models.Environment
	if err := database.DB.Where("id = ? AND status = ?", id, 1).First(&environment).Error; err != nil {
		response.NotFound(c, "environment not found")
		return
	}

	response.Success(c, environment)
}

func CreateEnvironment(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required,min=1,max=100"`
		Description string `json:"description" binding:"max=500"`
		BaseURL     string `json:"base_url" binding:"required,url,max=500"`
		Type        string `json:"type" binding:"required,oneof=test staging product"`
		Variables   string `json:"variables"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Variables != "" && !json.Valid([]byte(req.Variables)) {
		response.BadRequest(c, "variables must be valid JSON")
		return
	}

	environment := models.Environment{
		Name:        req.Name,
		Description: req.Description,
		BaseURL:     req.BaseURL,
		Type:        req.Type,
		Variables:   req.Variables,
		Status:      1,
	}
	if err := database.DB.Create(&environment).Error; err != nil {
		response.InternalServerError(c, "failed to create environment")
		return
	}

	response.Success(c, environment)
}

func UpdateEnvironment(c *gin.Context) {
	id := c.Param("id")

	var environment models.Environment
	if err := database.DB.Where("id = ? AND status = ?", id, 1).First(&environment).Error; err != nil {
		response.NotFound(c, "environment not found")
		return
	}

	var req struct {
		Name        string `json:"name" binding:"required,min=1,max=100"`
		Description string `json:"description" binding:"max=500"`
		BaseURL     string `json:"base_url" binding:"required,url,max=500"`
		Type        string `json:"type" binding:"required,oneof=test staging product"`
		Variables   string `json:"variables"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Variables != "" && !json.Valid([]byte(req.Variables)) {
		response.BadRequest(c, "variables must be valid JSON")
		return
	}

	environment.Name = req.Name
	environment.Description = req.Description
	environment.BaseURL = req.BaseURL
	environment.Type = req.Type
	environment.Variables = req.Variables
	if err := database.DB.Save(&environment).Error; err != nil {
		response.InternalServerError(c, "failed to update environment")
		return
	}

	response.Success(c, environment)
}

func DeleteEnvironment(c *gin.Context) {
	id := c.Param("id")

	var environment models.Environment
	if err := database.DB.Where("id = ? AND status = ?", id, 1).First(&environment).Error; err != nil {
		response.NotFound(c, "environment not found")
		return
	}

	var flowCount int64
	database.DB.Model(&models.Flow{}).
		Where("environment_id = ? AND status = ?", environment.ID, 1).Count(&flowCount)
	if flowCount > 0 {
		response.Conflict(c, "environment still has active flows")
		return
	}

	environment.Status = 0
	if err := database.DB.Save(&environment).Error; err != nil {
		response.InternalServerError(c, "failed to delete environment")
		return
	}

	response.SuccessWithMessage(c, "environment deleted", nil)
}
