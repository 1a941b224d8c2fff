package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"storyweaver/internal/model"
)

const (
	DefaultPromptQuality      = "High quality, detailed, colorful."
	DefaultPlaceholderBaseURL = "https://picsum.photos/800/600"
)

var errEmptyImage = errors.New("empty image reference")

// ContentGenerator 内容生成服务：规划故事结构、按提示词生成插画
type ContentGenerator interface {
	PlanStructure(ctx context.Context, settings model.StorySettings) (*model.StoryStructure, error)
	RenderIllustration(ctx context.Context, prompt, artStyle string) (string, error)
}

// Kind 插画调用的来源
type Kind string

const (
	KindCover      Kind = "cover"
	KindPage       Kind = "page"
	KindRegenerate Kind = "regenerate"
	KindTool       Kind = "tool"
)

// Illustration 插画结果。Cause 不为空时 URL 为占位图
type Illustration struct {
	URL   string
	Cause error
}

func (i Illustration) Degraded() bool { return i.Cause != nil }

type IllustratorConfig struct {
	Quality            string
	PlaceholderBaseURL string
}

// Illustrator 插画阶段：拼接最终提示词，调用失败时降级为占位图，从不返回错误
type Illustrator struct {
	gen             ContentGenerator
	quality         string
	placeholderBase string
	metrics         *Metrics
	log             logrus.FieldLogger
}

func NewIllustrator(gen ContentGenerator, cfg IllustratorConfig, metrics *Metrics, log logrus.FieldLogger) *Illustrator {
	if cfg.Quality == "" {
		cfg.Quality = DefaultPromptQuality
	}
	if cfg.PlaceholderBaseURL == "" {
		cfg.PlaceholderBaseURL = DefaultPlaceholderBaseURL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Illustrator{
		gen:             gen,
		quality:         cfg.Quality,
		placeholderBase: cfg.PlaceholderBaseURL,
		metrics:         metrics,
		log:             log,
	}
}

// BuildPrompt 把画风和质量描述嵌入场景描述
func (il *Illustrator) BuildPrompt(scene, artStyle string) string {
	scene = strings.TrimRight(strings.TrimSpace(scene), ".")
	return fmt.Sprintf("Create a %s style illustration. %s. %s", artStyle, scene, il.quality)
}

// Placeholder 按提示词哈希选出的通用图片，同一提示词总是得到同一地址
func (il *Illustrator) Placeholder(prompt string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt))
	sep := "?"
	if strings.Contains(il.placeholderBase, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%srandom=%d", il.placeholderBase, sep, h.Sum32()%1000)
}

func (il *Illustrator) Illustrate(ctx context.Context, kind Kind, scene, artStyle string) Illustration {
	prompt := il.BuildPrompt(scene, artStyle)
	start := time.Now()
	url, err := il.gen.RenderIllustration(ctx, prompt, artStyle)
	if err == nil && strings.TrimSpace(url) == "" {
		err = errEmptyImage
	}
	il.metrics.observeIllustration(kind, err != nil, time.Since(start))

	if err != nil {
		il.log.WithError(err).WithFields(logrus.Fields{
			"kind":      kind,
			"art_style": artStyle,
		}).Warn("illustration failed, using placeholder")
		return Illustration{URL: il.Placeholder(prompt), Cause: err}
	}
	return Illustration{URL: url}
}
