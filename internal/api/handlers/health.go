package handlers

import (
	"github.com/gin-gonic/gin"

	"flowreplay/pkg/response"
)

func HealthCheck(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}
