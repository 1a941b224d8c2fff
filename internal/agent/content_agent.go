package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"storyweaver/internal/model"
	"storyweaver/internal/volc"
)

// ImageClient 图片生成接口，由 volc.ArkClient 实现
type ImageClient interface {
	GenerateImages(ctx context.Context, p volc.ImageGenParams) ([]string, error)
}

// ContentAgent 内容生成服务适配器：规划故事结构、生成插画
type ContentAgent struct {
	planner    *Planner
	images     ImageClient
	imageModel string
	imageSize  string
	mock       bool
	log        logrus.FieldLogger
}

type ContentAgentConfig struct {
	Planner    *Planner
	Images     ImageClient
	ImageModel string
	ImageSize  string
	// Mock 为 true 时规划阶段不调用模型，直接返回默认结构
	Mock   bool
	Logger logrus.FieldLogger
}

func NewContentAgent(cfg ContentAgentConfig) (*ContentAgent, error) {
	if cfg.Images == nil {
		return nil, errors.New("image client required")
	}
	if cfg.Planner == nil && !cfg.Mock {
		return nil, errors.New("planner required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &ContentAgent{
		planner:    cfg.Planner,
		images:     cfg.Images,
		imageModel: cfg.ImageModel,
		imageSize:  cfg.ImageSize,
		mock:       cfg.Mock,
		log:        cfg.Logger,
	}, nil
}

// PlanStructure 生成故事的标题、简介和分页骨架
func (a *ContentAgent) PlanStructure(ctx context.Context, settings model.StorySettings) (*model.StoryStructure, error) {
	if a.mock {
		structure := DefaultStructure(settings)
		return &structure, nil
	}
	return a.planner.Plan(ctx, settings)
}

// RenderIllustration 按最终提示词生成一张插画
func (a *ContentAgent) RenderIllustration(ctx context.Context, prompt, artStyle string) (string, error) {
	a.log.WithField("art_style", artStyle).Debug("rendering illustration")
	urls, err := a.images.GenerateImages(ctx, volc.ImageGenParams{
		Model:  a.imageModel,
		Prompt: prompt,
		Size:   a.imageSize,
	})
	if err != nil {
		return "", err
	}
	if len(urls) == 0 || urls[0] == "" {
		return "", volc.ErrNoImages
	}
	return urls[0], nil
}

// DefaultStructure 生成默认故事结构，用于 mock 模式
func DefaultStructure(settings model.StorySettings) model.StoryStructure {
	count := settings.PageCount
	if count <= 0 {
		count = model.DefaultPageCount
	}
	beats := []string{
		"Once upon a time, %s began a curious adventure, exploring everything around with wide eyes.",
		"Along the way, %s met new friends, and together they laughed and shared what they found.",
		"Suddenly a small problem appeared, but %s faced it with courage and a clever idea.",
		"When the adventure was over, %s had learned something new and felt braver than ever.",
	}
	pages := make([]model.PlannedPage, count)
	for i := range pages {
		beat := beats[min(i*len(beats)/count, len(beats)-1)]
		pages[i] = model.PlannedPage{
			PageNumber:  i + 1,
			Text:        fmt.Sprintf(beat, settings.Topic),
			ImagePrompt: fmt.Sprintf("%s, scene %d of a %s story for %s readers", settings.Topic, i+1, settings.Genre, settings.AgeGroup),
		}
	}
	return model.StoryStructure{
		Title:       fmt.Sprintf("The Adventure of %s", settings.Topic),
		Description: fmt.Sprintf("A %s story about %s.", settings.Genre, settings.Topic),
		Pages:       pages,
	}
}
