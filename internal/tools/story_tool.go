package tools

import (
	"context"
	"encoding/json"
	"fmt"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"storyweaver/internal/model"
)

// StoryPlanner 由 service.StoryGenerator 实现
type StoryPlanner interface {
	Plan(ctx context.Context, settings model.StorySettings) (model.StorySettings, *model.StoryStructure, error)
}

// StoryTool 实现eino框架的故事规划工具，只生成结构，不创建故事
type StoryTool struct {
	planner StoryPlanner
}

// StoryToolArgs 故事规划请求参数
type StoryToolArgs struct {
	Topic     string `json:"topic"`      // 故事主题
	Genre     string `json:"genre"`      // 类型
	AgeGroup  string `json:"age_group"`  // 目标年龄段
	ArtStyle  string `json:"art_style"`  // 画风
	PageCount int    `json:"page_count"` // 页数
}

// StoryToolResp 故事规划响应
type StoryToolResp struct {
	Settings    model.StorySettings `json:"settings"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Pages       []model.PlannedPage `json:"pages"`
	Message     string              `json:"message"`
}

func NewStoryTool(planner StoryPlanner) *StoryTool {
	return &StoryTool{planner: planner}
}

// Info 获取故事规划工具信息
func (t *StoryTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	params := map[string]*schema.ParameterInfo{
		"topic":      {Type: schema.String, Required: true, Desc: "故事主题"},
		"genre":      {Type: schema.String, Required: false, Desc: "故事类型", Enum: model.Genres},
		"age_group":  {Type: schema.String, Required: false, Desc: "目标年龄段", Enum: model.AgeGroups},
		"art_style":  {Type: schema.String, Required: false, Desc: "插画画风", Enum: model.ArtStyles},
		"page_count": {Type: schema.Integer, Required: false, Desc: "页数，1-20"},
	}
	return &schema.ToolInfo{
		Name:        "story_generate",
		Desc:        "为儿童规划一个插画故事：标题、简介以及每页的文字和插画提示词",
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, nil
}

// InvokableRun 执行故事规划
func (t *StoryTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...einotool.Option) (string, error) {
	var args StoryToolArgs
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if args.Topic == "" {
		return "", fmt.Errorf("%w: topic required", ErrInvalidArguments)
	}

	settings, structure, err := t.planner.Plan(ctx, model.StorySettings{
		Topic:     args.Topic,
		Genre:     args.Genre,
		AgeGroup:  args.AgeGroup,
		ArtStyle:  args.ArtStyle,
		PageCount: args.PageCount,
	})
	if err != nil {
		return "", err
	}

	b, err := json.Marshal(StoryToolResp{
		Settings:    settings,
		Title:       structure.Title,
		Description: structure.Description,
		Pages:       structure.Pages,
		Message:     "story planned",
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var _ einotool.InvokableTool = (*StoryTool)(nil)
