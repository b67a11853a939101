package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cortex/workspace/internal/handler"
	"cortex/workspace/internal/middleware"
	"cortex/workspace/internal/service"
)

func New(
	authService *service.AuthService,
	authHandler *handler.AuthHandler,
	pomodoroHandler *handler.PomodoroHandler,
	timerHandler *handler.TimerHandler,
	corsOrigins []string,
) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	requireAuth := middleware.Auth(authService)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", requireAuth, authHandler.Me)

	pomodoro := api.Group("/pomodoro")
	pomodoro.Use(requireAuth)
	pomodoro.POST("/sessions", pomodoroHandler.CreateSession)
	pomodoro.GET("/sessions", pomodoroHandler.ListSessions)
	pomodoro.PUT("/sessions/:id", pomodoroHandler.UpdateSession)
	pomodoro.DELETE("/sessions/:id", pomodoroHandler.DeleteSession)
	pomodoro.POST("/sessions/:id/link-task", pomodoroHandler.LinkTask)
	pomodoro.POST("/batch/delete", pomodoroHandler.BatchDelete)
	pomodoro.GET("/task-stats/:taskId", pomodoroHandler.TaskStats)
	pomodoro.GET("/stats", pomodoroHandler.Stats)
	pomodoro.GET("/export", pomodoroHandler.Export)
	pomodoro.GET("/settings", pomodoroHandler.GetSettings)
	pomodoro.PUT("/settings", pomodoroHandler.UpdateSettings)

	timer := api.Group("/timer")
	timer.Use(requireAuth)
	timer.GET("/state", timerHandler.GetState())
	timer.POST("/start", timerHandler.Start())
	timer.POST("/pause", timerHandler.Pause())
	timer.POST("/stop", timerHandler.Stop())
	timer.POST("/reset", timerHandler.Reset())
	timer.POST("/switch", timerHandler.Switch())
	timer.GET("/events", timerHandler.Events)

	return engine
}
