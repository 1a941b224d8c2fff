package api

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"storyweaver/internal/model"
	"storyweaver/internal/store"
	"storyweaver/internal/tools"
)

// Generator 由 service.StoryGenerator 实现
type Generator interface {
	CreateStory(ctx context.Context, settings model.StorySettings) (model.Story, error)
	RegeneratePageImage(ctx context.Context, storyID string, pageIndex int) (model.Story, error)
}

type Deps struct {
	Generator      Generator
	Library        *store.Library
	Tools          *tools.Registry
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	Logger         logrus.FieldLogger
}

// NewRouter 注册所有路由
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(d.Logger), corsMiddleware(d.AllowedOrigins))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))

	stories := router.Group("/stories")
	stories.POST("", handleCreateStory(d.Generator))
	stories.GET("", handleListStories(d.Library))
	stories.GET("/:id", handleGetStory(d.Library))
	stories.PATCH("/:id", handleEditStory(d.Library))
	stories.DELETE("/:id", handleDeleteStory(d.Library))
	stories.POST("/:id/pages/:index/regenerate", handleRegeneratePage(d.Generator))

	router.GET("/active", handleGetActive(d.Library))
	router.PUT("/active", handleOpenStory(d.Library))
	router.DELETE("/active", handleCloseStory(d.Library))

	router.GET("/admin/stats", handleStats(d.Library))
	router.GET("/ws", handleEvents(d.Library, d.Logger))

	if d.Tools != nil {
		router.GET("/tools", handleToolInfos(d.Tools))
		router.POST("/tools/:name", handleToolRun(d.Tools))
	}
	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	return cors.New(cfg)
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		entry := log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request handled")
	}
}
