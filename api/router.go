package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nitrodl/nitro-downloader/api/handlers"
	"github.com/nitrodl/nitro-downloader/api/middleware"
	"github.com/nitrodl/nitro-downloader/internal/app"
	"github.com/nitrodl/nitro-downloader/internal/domain"
	"github.com/nitrodl/nitro-downloader/pkg/logger"
)

// Dependencies holds everything the HTTP layer talks to
type Dependencies struct {
	Provisioner *app.Provisioner
	Media       *app.MediaService
	QueueMgr    *app.QueueManager
	DownloadMgr *app.DownloadManager
	Preferences domain.PreferenceRepository
	LogAdapter  *logger.LoggerAdapter
	LogsDir     string

	// RunCtx outlives single requests; background work started over HTTP
	// (tool checks, streams) is bound to it.
	RunCtx context.Context
}

// SetupRouter sets up the HTTP router
func SetupRouter(deps Dependencies) *gin.Engine {
	if deps.RunCtx == nil {
		deps.RunCtx = context.Background()
	}
	if deps.LogAdapter == nil {
		deps.LogAdapter = logger.NewSingleLoggerAdapter(nil)
	}
	general := deps.LogAdapter.General()

	router := gin.New()

	// Middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.LoggerWithAdapter(deps.LogAdapter))
	router.Use(middleware.Recovery(deps.LogAdapter.Error()))
	router.Use(middleware.CORS())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(deps.QueueMgr, deps.Provisioner)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		toolsHandler := handlers.NewToolsHandler(deps.Provisioner, deps.RunCtx, deps.LogAdapter.Provisioning())
		tools := v1.Group("/tools")
		{
			tools.GET("", toolsHandler.GetTools)
			tools.POST("/check", toolsHandler.Check)
			tools.GET("/stream", toolsHandler.Stream)
		}

		mediaHandler := handlers.NewMediaHandler(deps.Media, general)
		media := v1.Group("/media")
		{
			media.POST("/inspect", mediaHandler.Inspect)
			media.POST("/compile", mediaHandler.Compile)
		}

		downloadHandler := handlers.NewDownloadHandler(deps.Media, deps.QueueMgr, deps.DownloadMgr, deps.LogAdapter.Queue())
		downloads := v1.Group("/downloads")
		{
			downloads.POST("", downloadHandler.AddDownload)
			downloads.GET("", downloadHandler.ListDownloads)
			downloads.GET("/stats", downloadHandler.GetStats)
			downloads.GET("/:id", downloadHandler.GetDownload)
			downloads.POST("/:id/cancel", downloadHandler.CancelDownload)
			downloads.POST("/:id/retry", downloadHandler.RetryDownload)
			downloads.DELETE("/:id", downloadHandler.DeleteDownload)
		}

		prefHandler := handlers.NewPreferenceHandler(deps.Preferences, general)
		prefs := v1.Group("/preferences")
		{
			prefs.GET("", prefHandler.ListPreferences)
			prefs.GET("/:key", prefHandler.GetPreference)
			prefs.PUT("/:key", prefHandler.SetPreference)
			prefs.DELETE("/:key", prefHandler.DeletePreference)
		}

		logHandler := handlers.NewLogHandler(deps.LogsDir)
		logWSHandler := handlers.NewLogWebSocketHandler(deps.LogsDir, general)
		logs := v1.Group("/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/:category", logHandler.GetLogs)
			logs.GET("/:category/search", logHandler.SearchLogs)
			logs.GET("/:category/export", logHandler.ExportLogs)
			logs.GET("/:category/stream", logWSHandler.HandleWebSocket)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{Error: "not found", Kind: "not_found"})
	})

	return router
}
