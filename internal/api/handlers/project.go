package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"flowreplay/internal/models"
	"flowreplay/pkg/database"
	"flowreplay/pkg/response"
)

func GetProjects(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}

	var projects []models.Project
	var total int64

	query := database.DB.Model(&models.Project{}).Where("status = ?", 1)
	query.Count(&total)

	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Find(&projects).Error; err != nil {
		response.InternalServerError(c, "failed to list projects")
		return
	}

	response.Page(c, projects, total, page, pageSize)
}

func GetProject(c *gin.Context) {
	id := c.Param("id")

	var project models.Project
	if err := database.DB.Where("id = ? AND status = ?", id, 1).First(&project).Error; err != nil {
		response.NotFound(c, "project not found")
		return
	}

	response.Success(c, project)
}

func CreateProject(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required,min=1,max=100"`
		Description string `json:"description" binding:"max=500"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project := models.Project{
		Name:        req.Name,
		Description: req.Description,
		Status:      1,
	}
	if err := database.DB.Create(&project).Error; err != nil {
		response.InternalServerError(c, "failed to create project")
		return
	}

	response.Success(c, project)
}

func UpdateProject(c *gin.Context) {
	id := c.Param("id")

	var project models.Project
	if err := database.DB.Where("id = ? AND status = ?", id, 1).First(&project).Error; err != nil {
		response.NotFound(c, "project not found")
		return
	}

	var req struct {
		Name        string `json:"name" binding:"required,min=1,max=100"`
		Description string `json:"description" binding:"max=500"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project.Name = req.Name
	project.Description = req.Description
	if err := database.DB.Save(&project).Error; err != nil {
		response.InternalServerError(c, "failed to update project")
		return
	}

	response.Success(c, project)
}

func DeleteProject(c *gin.Context) {
	id := c.Param("id")

	var project models.Project
	if err := database.DB.Where("id = ? AND status = ?", id, 1).First(&project).Error; err != nil {
		response.NotFound(c, "project not found")
		return
	}

	var flowCount int64
	database.DB.Model(&models.Flow{}).
		Where("project_id = ? AND status = ?", project.ID, 1).Count(&flowCount)
	if flowCount > 0 {
		response.Conflict(c, "project still has active flows")
		return
	}

	project.Status = 0
	if err := database.DB.Save(&project).Error; err != nil {
		response.InternalServerError(c, "failed to delete project")
		return
	}

	response.SuccessWithMessage(c, "project deleted", nil)
}
