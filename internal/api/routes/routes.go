package routes

import (
	"github.com/gin-gonic/gin"

	"flowreplay/internal/api/handlers"
	"flowreplay/internal/api/middleware"
	"flowreplay/internal/config"
)

func SetupRoutes(cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)

		// WebSocket endpoints
		v1.GET("/ws/recording", handlers.RecordingWebSocket)
		v1.GET("/ws/replay", handlers.ReplayEventStream)

		projects := v1.Group("/projects")
		{
			projects.GET("", handlers.GetProjects)
			projects.POST("", handlers.CreateProject)
			projects.GET("/:id", handlers.GetProject)
			projects.PUT("/:id", handlers.UpdateProject)
			projects.DELETE("/:id", handlers.DeleteProject)
		}

		environments := v1.Group("/environments")
		{
			environments.GET("", handlers.GetEnvironments)
			environments.POST("", handlers.CreateEnvironment)
			environments.GET("/:id", handlers.GetEnvironment)
			environments.PUT("/:id", handlers.UpdateEnvironment)
			environments.DELETE("/:id", handlers.DeleteEnvironment)
		}

		flows := v1.Group("/flows")
		{
			flows.GET("", handlers.GetFlows)
			flows.POST("", handlers.CreateFlow)
			flows.GET("/:id", handlers.GetFlow)
			flows.PUT("/:id", handlers.UpdateFlow)
			flows.PUT("/:id/steps", handlers.UpdateFlowSteps)
			flows.POST("/:id/finalize", handlers.FinalizeFlow)
			flows.DELETE("/:id", handlers.DeleteFlow)
			flows.POST("/:id/execute", handlers.ExecuteFlow)
			flows.POST("/:id/stop", handlers.StopFlow)
			flows.POST("/:id/resume", handlers.ResumeFlow)
		}

		suites := v1.Group("/suites")
		{
			suites.GET("", handlers.GetSuites)
			suites.POST("", handlers.CreateSuite)
			suites.GET("/:id", handlers.GetSuite)
			suites.PUT("/:id", handlers.UpdateSuite)
			suites.DELETE("/:id", handlers.DeleteSuite)
			suites.POST("/:id/execute", handlers.ExecuteSuite)
		}

		executions := v1.Group("/executions")
		{
			executions.GET("", handlers.GetExecutions)
			executions.GET("/statistics", handlers.GetExecutionStatistics)
			executions.GET("/:id", handlers.GetExecution)
			executions.GET("/:id/bugs", handlers.GetExecutionBugs)
			executions.GET("/:id/snapshot", handlers.GetExecutionSnapshot)
			executions.DELETE("/:id", handlers.DeleteExecution)
		}

		recording := v1.Group("/recording")
		{
			recording.POST("/start", handlers.StartRecording)
			recording.POST("/stop", handlers.StopRecording)
			recording.GET("/status", handlers.GetRecordingStatus)
			recording.POST("/save", handlers.SaveRecording)
		}
	}

	return router
}
