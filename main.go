package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"storyweaver/internal/agent"
	"storyweaver/internal/api"
	"storyweaver/internal/config"
	"storyweaver/internal/service"
	"storyweaver/internal/store"
	"storyweaver/internal/tools"
	"storyweaver/internal/volc"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("storyweaver exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logCloser, err := config.InitLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	log := logrus.StandardLogger()

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 后台插画任务的上下文，关闭时取消
	baseCtx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	collection, closeStore, err := newCollectionStore(baseCtx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	library := store.NewLibrary(collection, log.WithField("component", "library"))
	if err := library.Load(baseCtx); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics(registry)

	// 初始化ArkClient
	arkClient := volc.NewArkClient(cfg.Ark.BaseURL, cfg.Ark.APIKey, cfg.Ark.Timeout(), cfg.Ark.Mock)
	arkClient.Logger = log.WithField("component", "ark")

	var planner *agent.Planner
	if !cfg.Ark.Mock {
		chatModel, err := agent.NewArkChatModel(baseCtx, cfg.Ark.APIKey, cfg.Ark.Region, cfg.Ark.ChatModel, &http.Client{Timeout: cfg.Ark.Timeout()})
		if err != nil {
			return err
		}
		if planner, err = agent.NewPlanner(baseCtx, chatModel); err != nil {
			return err
		}
	}
	content, err := agent.NewContentAgent(agent.ContentAgentConfig{
		Planner:    planner,
		Images:     arkClient,
		ImageModel: cfg.Ark.ImageModel,
		ImageSize:  cfg.Ark.ImageSize,
		Mock:       cfg.Ark.Mock,
		Logger:     log.WithField("component", "agent"),
	})
	if err != nil {
		return err
	}

	illustrator := service.NewIllustrator(content, service.IllustratorConfig{
		Quality:            cfg.Image.PromptQuality,
		PlaceholderBaseURL: cfg.Image.PlaceholderBaseURL,
	}, metrics, log.WithField("component", "illustrator"))

	generator, err := service.NewStoryGenerator(service.GeneratorConfig{
		Content:     content,
		Illustrator: illustrator,
		Library:     library,
		Metrics:     metrics,
		Logger:      log.WithField("component", "generator"),
		BaseContext: baseCtx,
	})
	if err != nil {
		return err
	}
	generator.ResumePending()

	// 初始化工具
	toolRegistry, err := tools.NewRegistry(baseCtx,
		tools.NewStoryTool(generator),
		tools.NewIllustrationTool(illustrator),
	)
	if err != nil {
		return err
	}

	router := api.NewRouter(api.Deps{
		Generator:      generator,
		Library:        library,
		Tools:          toolRegistry,
		Gatherer:       registry,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Logger:         log.WithField("component", "api"),
	})

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTP.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}

	// 中断后台插画任务，未完成的页面保持加载状态，下次启动时继续
	cancelBackground()
	generator.Wait()
	log.Info("server stopped")
	return nil
}

func newCollectionStore(ctx context.Context, cfg config.StoreConfig) (store.CollectionStore, func(), error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemoryStore(), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return store.NewRedisStore(client, cfg.RedisKey), func() { _ = client.Close() }, nil
	default:
		return store.NewFileStore(cfg.File), func() {}, nil
	}
}
