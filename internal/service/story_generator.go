package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"storyweaver/internal/model"
	"storyweaver/internal/store"
)

// ErrPlanningFailed 规划阶段失败，故事不会被创建
var ErrPlanningFailed = errors.New("planning failed")

type GeneratorConfig struct {
	Content     ContentGenerator
	Illustrator *Illustrator
	Library     *store.Library
	Metrics     *Metrics
	Logger      logrus.FieldLogger
	// BaseContext 后台插画任务使用的上下文，取消后任务停止，剩余页面保持加载状态
	BaseContext context.Context
	Now         func() time.Time
	NewID       func() string
}

// StoryGenerator 故事生成编排：同步规划，随后在后台按顺序生成封面和每页插画
type StoryGenerator struct {
	content     ContentGenerator
	illustrator *Illustrator
	library     *store.Library
	metrics     *Metrics
	log         logrus.FieldLogger
	baseCtx     context.Context
	now         func() time.Time
	newID       func() string

	wg sync.WaitGroup
}

func NewStoryGenerator(cfg GeneratorConfig) (*StoryGenerator, error) {
	if cfg.Content == nil {
		return nil, errors.New("content generator required")
	}
	if cfg.Library == nil {
		return nil, errors.New("library required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Illustrator == nil {
		cfg.Illustrator = NewIllustrator(cfg.Content, IllustratorConfig{}, cfg.Metrics, cfg.Logger)
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &StoryGenerator{
		content:     cfg.Content,
		illustrator: cfg.Illustrator,
		library:     cfg.Library,
		metrics:     cfg.Metrics,
		log:         cfg.Logger,
		baseCtx:     cfg.BaseContext,
		now:         cfg.Now,
		newID:       cfg.NewID,
	}, nil
}

// Plan 校验参数并生成故事结构，不创建故事
func (g *StoryGenerator) Plan(ctx context.Context, settings model.StorySettings) (model.StorySettings, *model.StoryStructure, error) {
	settings.Normalize()
	if err := settings.Validate(); err != nil {
		return settings, nil, err
	}

	structure, err := g.content.PlanStructure(ctx, settings)
	if err == nil {
		if structure == nil {
			err = model.ErrInvalidStructure
		} else {
			structure.Normalize()
			err = structure.Validate(settings.PageCount)
		}
	}
	g.metrics.observePlanning(err == nil)
	if err != nil {
		g.log.WithError(err).WithField("topic", settings.Topic).Error("story planning failed")
		return settings, nil, fmt.Errorf("%w: %w", ErrPlanningFailed, err)
	}
	return settings, structure, nil
}

// CreateStory 规划成功后立即插入故事并返回，插画在后台继续生成
func (g *StoryGenerator) CreateStory(ctx context.Context, settings model.StorySettings) (model.Story, error) {
	settings, structure, err := g.Plan(ctx, settings)
	if err != nil {
		return model.Story{}, err
	}

	story := model.NewStory(g.newID(), settings, *structure, g.now())
	if err := g.library.Insert(context.WithoutCancel(ctx), story); err != nil {
		if !errors.Is(err, store.ErrPersist) {
			return model.Story{}, fmt.Errorf("insert story: %w", err)
		}
		g.log.WithError(err).WithField("story_id", story.ID).Warn("story created but not persisted")
	}
	g.log.WithFields(logrus.Fields{
		"story_id": story.ID,
		"pages":    len(story.Pages),
	}).Info("story planned")

	g.start(story)
	return story, nil
}

// ResumePending 为加载后仍有未完成插画的故事重新启动后台任务
func (g *StoryGenerator) ResumePending() int {
	n := 0
	for _, s := range g.library.List() {
		if s.Pending() > 0 {
			g.start(s)
			n++
		}
	}
	if n > 0 {
		g.log.WithField("stories", n).Info("resumed pending illustrations")
	}
	return n
}

// RegeneratePageImage 重新生成单页插画（pageIndex 从0开始）并保存
func (g *StoryGenerator) RegeneratePageImage(ctx context.Context, storyID string, pageIndex int) (model.Story, error) {
	story, err := g.library.Get(storyID)
	if err != nil {
		return model.Story{}, err
	}
	if pageIndex < 0 || pageIndex >= len(story.Pages) {
		return model.Story{}, fmt.Errorf("%w: %d", store.ErrPageOutOfRange, pageIndex)
	}

	if err := ctx.Err(); err != nil {
		return model.Story{}, err
	}

	page := story.Pages[pageIndex]
	ill := g.illustrator.Illustrate(ctx, KindRegenerate, page.ImagePrompt, story.ArtStyle)
	if interrupted(ctx, ill) {
		// 调用方已取消，保留原插画
		return model.Story{}, fmt.Errorf("regenerate page %d: %w", pageIndex, ctx.Err())
	}
	updated, err := g.library.ProjectPage(context.WithoutCancel(ctx), storyID, pageIndex, ill.URL)
	if err != nil {
		return model.Story{}, fmt.Errorf("regenerate page %d: %w", pageIndex, err)
	}
	return updated, nil
}

// Wait 等待所有后台插画任务结束
func (g *StoryGenerator) Wait() {
	g.wg.Wait()
}

// CoverPrompt 封面提示词：标题加第一页画面
func CoverPrompt(story model.Story) string {
	scene := ""
	if len(story.Pages) > 0 {
		scene = story.Pages[0].ImagePrompt
	}
	if strings.TrimSpace(story.Title) == "" {
		return scene
	}
	return fmt.Sprintf("Cover art for a story titled %q: %s", story.Title, scene)
}

func (g *StoryGenerator) start(story model.Story) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.illustrate(g.baseCtx, story)
	}()
}

// illustrate 严格按顺序：封面，然后按页码逐页生成，同一时刻只有一个调用在进行
func (g *StoryGenerator) illustrate(ctx context.Context, story model.Story) {
	g.metrics.pipelineStarted()
	defer g.metrics.pipelineFinished()

	log := g.log.WithField("story_id", story.ID)
	// 投影和保存不随任务取消，已生成的结果总能写入
	pctx := context.WithoutCancel(ctx)

	if story.CoverImage == "" && len(story.Pages) > 0 && story.Pending() == len(story.Pages) {
		if ctx.Err() != nil {
			log.Info("illustration interrupted")
			return
		}
		cover := g.illustrator.Illustrate(ctx, KindCover, CoverPrompt(story), story.ArtStyle)
		if interrupted(ctx, cover) {
			log.Info("illustration interrupted")
			return
		}
		if cover.Degraded() {
			log.Info("cover left empty")
		} else if _, err := g.library.ProjectCover(pctx, story.ID, cover.URL); err != nil {
			if errors.Is(err, store.ErrStoryNotFound) {
				log.Info("story deleted, illustration stopped")
				return
			}
			log.WithError(err).Warn("cover projection failed")
		}
	}

	for i, page := range story.Pages {
		if !page.IsLoadingImage {
			continue
		}
		if _, err := g.library.Get(story.ID); errors.Is(err, store.ErrStoryNotFound) {
			log.Info("story deleted, illustration stopped")
			return
		}
		if ctx.Err() != nil {
			log.WithField("page", page.PageNumber).Info("illustration interrupted")
			return
		}

		ill := g.illustrator.Illustrate(ctx, KindPage, page.ImagePrompt, story.ArtStyle)
		if interrupted(ctx, ill) {
			// 未完成的页面保持加载状态，重启后由 ResumePending 继续
			log.WithField("page", page.PageNumber).Info("illustration interrupted")
			return
		}
		_, err := g.library.ProjectPage(pctx, story.ID, i, ill.URL)
		switch {
		case errors.Is(err, store.ErrStoryNotFound):
			log.Info("story deleted, illustration stopped")
			return
		case err != nil:
			log.WithError(err).WithField("page", page.PageNumber).Warn("page projection failed")
		}
	}
	log.Info("story illustration finished")
}

// interrupted 插画因上下文取消而失败，此时不应写入占位图
func interrupted(ctx context.Context, ill Illustration) bool {
	return ill.Degraded() && ctx.Err() != nil
}
