package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"flowreplay/internal/models"
	"flowreplay/pkg/database"
	"flowreplay/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StartRecording opens a visible browser on the start URL and begins a
// capture session.
func StartRecording(c *gin.Context) {
	var req struct {
		StartURL string `json:"start_url" binding:"required,url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	session, err := recording.Start(c.Request.Context(), req.StartURL)
	if err != nil {
		response.InternalServerError(c, "failed to start recording: "+err.Error())
		return
	}

	response.Success(c, gin.H{
		"session_id": session.ID,
		"start_url":  session.StartURL,
	})
}

// StopRecording ends capturing and returns the recorded draft steps.
func StopRecording(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	steps, err := recording.Stop(req.SessionID)
	if err != nil {
		response.NotFound(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"session_id": req.SessionID,
		"steps":      steps,
	})
}

// GetRecordingStatus reports whether a session is live and its draft so far.
func GetRecordingStatus(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.BadRequest(c, "session_id is required")
		return
	}

	session, ok := recording.Get(sessionID)
	if !ok {
		response.NotFound(c, "recording session not found")
		return
	}

	response.Success(c, gin.H{
		"session_id": session.ID,
		"recording":  session.IsRecording(),
		"steps":      session.Steps(),
	})
}

// SaveRecording persists a session's draft as a new draft flow and releases
// the session.
func SaveRecording(c *gin.Context) {
	var req struct {
		SessionID     string `json:"session_id" binding:"required"`
		Name          string `json:"name" binding:"required,min=1,max=200"`
		Description   string `json:"description" binding:"max=1000"`
		ProjectID     uint   `json:"project_id" binding:"required"`
		EnvironmentID uint   `json:"environment_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	session, ok := recording.Get(req.SessionID)
	if !ok {
		response.NotFound(c, "recording session not found")
		return
	}
	steps := session.Steps()
	if len(steps) == 0 {
		response.BadRequest(c, "session recorded no steps")
		return
	}

	flow := models.Flow{
		Name:          req.Name,
		Description:   req.Description,
		ProjectID:     req.ProjectID,
		EnvironmentID: req.EnvironmentID,
		StartURL:      session.StartURL,
		Draft:         true,
		Status:        1,
	}
	if err := flow.SetSteps(steps); err != nil {
		response.InternalServerError(c, "failed to encode steps")
		return
	}
	if err := database.DB.Create(&flow).Error; err != nil {
		response.InternalServerError(c, "failed to save flow")
		return
	}

	recording.Cleanup(req.SessionID)

	response.Success(c, flow)
}

// RecordingWebSocket streams captured steps to the recording UI as they are
// built.
func RecordingWebSocket(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.BadRequest(c, "session_id is required")
		return
	}

	session, ok := recording.Get(sessionID)
	if !ok {
		response.NotFound(c, "recording session not found")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	session.SetWebSocket(conn)

	// Hold the connection open; the session writes, the client only pings.
	go func() {
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
