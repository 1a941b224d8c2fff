package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/kaptinlin/jsonrepair"

	"storyweaver/internal/model"
)

const storyPlannerInstruction = `You are a children's story writer and picture book art director.
Respond with a single JSON object only, using the fields title, description and pages.
pages is an array in which every element has pageNumber (an integer starting at 1), text (the story text for that page) and imagePrompt (a detailed visual description of the scene for an AI image generator).`

const storyPlannerRequest = `Create a children's story based on the following settings:
Topic: {topic}
Genre: {genre}
Target Age: {age_group}
Length: {page_count} pages.

The story should be engaging and appropriate for the age group.
For each page, provide the story text and a detailed image generation prompt that describes the scene visually in the style of {art_style}.`

// Planner 通过 eino chain 调用大模型生成故事结构
type Planner struct {
	runnable compose.Runnable[map[string]any, string]
}

// NewPlanner 构建 prompt -> chat model -> 提取内容 的 chain
func NewPlanner(ctx context.Context, chatModel einomodel.BaseChatModel) (*Planner, error) {
	template := prompt.FromMessages(schema.FString,
		schema.SystemMessage(storyPlannerInstruction),
		schema.UserMessage(storyPlannerRequest),
	)

	chain := compose.NewChain[map[string]any, string]()
	chain.
		AppendChatTemplate(template).
		AppendChatModel(chatModel).
		AppendLambda(compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (string, error) {
			if msg == nil {
				return "", nil
			}
			return msg.Content, nil
		}))

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile planner chain: %w", err)
	}
	return &Planner{runnable: runnable}, nil
}

// Plan 生成并校验故事结构
func (p *Planner) Plan(ctx context.Context, settings model.StorySettings) (*model.StoryStructure, error) {
	content, err := p.runnable.Invoke(ctx, map[string]any{
		"topic":      settings.Topic,
		"genre":      settings.Genre,
		"age_group":  settings.AgeGroup,
		"art_style":  settings.ArtStyle,
		"page_count": settings.PageCount,
	})
	if err != nil {
		return nil, fmt.Errorf("chat model invocation failed: %w", err)
	}
	structure, err := ParseStructure(content)
	if err != nil {
		return nil, err
	}
	structure.Normalize()
	if err := structure.Validate(settings.PageCount); err != nil {
		return nil, err
	}
	return structure, nil
}

// ParseStructure 解析模型返回的JSON，容忍代码块包裹和轻微格式错误
func ParseStructure(content string) (*model.StoryStructure, error) {
	cleaned := stripCodeFence(content)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty model response", model.ErrInvalidStructure)
	}

	var structure model.StoryStructure
	if err := json.Unmarshal([]byte(cleaned), &structure); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(cleaned)
		if repairErr != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrInvalidStructure, err)
		}
		if err := json.Unmarshal([]byte(repaired), &structure); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrInvalidStructure, err)
		}
	}
	return &structure, nil
}

func stripCodeFence(content string) string {
	cleaned := strings.TrimSpace(content)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}
	return strings.TrimSpace(cleaned)
}

// NewArkChatModel 创建方舟对话模型
func NewArkChatModel(ctx context.Context, apiKey, region, modelName string, httpClient *http.Client) (einomodel.BaseChatModel, error) {
	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		APIKey:     apiKey,
		Region:     region,
		HTTPClient: httpClient,
		Model:      modelName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return chatModel, nil
}
