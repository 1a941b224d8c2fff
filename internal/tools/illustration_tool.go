package tools

import (
	"context"
	"encoding/json"
	"fmt"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"storyweaver/internal/model"
	"storyweaver/internal/service"
)

// Illustrator 由 service.Illustrator 实现
type Illustrator interface {
	Illustrate(ctx context.Context, kind service.Kind, scene, artStyle string) service.Illustration
}

type IllustrationTool struct {
	illustrator Illustrator
}

type IllustrationToolArgs struct {
	Prompt   string `json:"prompt"`
	ArtStyle string `json:"art_style"`
}

type IllustrationToolResp struct {
	ImageURL string `json:"imageUrl"`
	Degraded bool   `json:"degraded"`
	Cause    string `json:"cause,omitempty"`
}

func NewIllustrationTool(illustrator Illustrator) *IllustrationTool {
	return &IllustrationTool{illustrator: illustrator}
}

func (t *IllustrationTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	params := map[string]*schema.ParameterInfo{
		"prompt":    {Type: schema.String, Required: true, Desc: "画面描述"},
		"art_style": {Type: schema.String, Required: false, Desc: "插画画风", Enum: model.ArtStyles},
	}
	return &schema.ToolInfo{
		Name:        "illustration_generate",
		Desc:        "按画面描述和画风生成一张儿童绘本插画，失败时返回占位图",
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, nil
}

func (t *IllustrationTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...einotool.Option) (string, error) {
	var args IllustrationToolArgs
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if args.Prompt == "" {
		return "", fmt.Errorf("%w: prompt required", ErrInvalidArguments)
	}
	if args.ArtStyle == "" {
		args.ArtStyle = model.DefaultArtStyle
	}

	ill := t.illustrator.Illustrate(ctx, service.KindTool, args.Prompt, args.ArtStyle)
	out := IllustrationToolResp{ImageURL: ill.URL, Degraded: ill.Degraded()}
	if ill.Cause != nil {
		out.Cause = ill.Cause.Error()
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var _ einotool.InvokableTool = (*IllustrationTool)(nil)
