package model

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// MaxPageCount 单个故事允许的最大页数
const MaxPageCount = 20

// 向导默认值
const (
	DefaultGenre     = "Fantasy"
	DefaultAgeGroup  = "Preschool (3-5)"
	DefaultArtStyle  = "Watercolor"
	DefaultPageCount = 5
)

var (
	Genres    = []string{"Fantasy", "Sci-Fi", "Adventure", "Fairy Tale", "Mystery", "Educational", "Bedtime Story"}
	AgeGroups = []string{"Toddler (1-3)", "Preschool (3-5)", "Early Reader (5-8)", "Pre-Teen (9-12)", "Young Adult"}
	ArtStyles = []string{"Watercolor", "Cartoon", "Pixel Art", "3D Render", "Oil Painting", "Sketch", "Anime", "Storybook Illustration"}
)

var (
	ErrInvalidSettings  = errors.New("invalid story settings")
	ErrInvalidStructure = errors.New("invalid story structure")
)

// StorySettings 创建故事的请求参数
type StorySettings struct {
	Topic     string `json:"topic"`     // 故事主题
	Genre     string `json:"genre"`     // 类型
	AgeGroup  string `json:"ageGroup"`  // 目标年龄段
	ArtStyle  string `json:"artStyle"`  // 画风
	PageCount int    `json:"pageCount"` // 页数
}

// Normalize 填充向导默认值
func (s *StorySettings) Normalize() {
	s.Topic = strings.TrimSpace(s.Topic)
	if s.Genre == "" {
		s.Genre = DefaultGenre
	}
	if s.AgeGroup == "" {
		s.AgeGroup = DefaultAgeGroup
	}
	if s.ArtStyle == "" {
		s.ArtStyle = DefaultArtStyle
	}
	if s.PageCount == 0 {
		s.PageCount = DefaultPageCount
	}
}

func (s StorySettings) Validate() error {
	switch {
	case strings.TrimSpace(s.Topic) == "":
		return fmt.Errorf("%w: topic required", ErrInvalidSettings)
	case !slices.Contains(Genres, s.Genre):
		return fmt.Errorf("%w: unknown genre %q", ErrInvalidSettings, s.Genre)
	case !slices.Contains(AgeGroups, s.AgeGroup):
		return fmt.Errorf("%w: unknown age group %q", ErrInvalidSettings, s.AgeGroup)
	case !slices.Contains(ArtStyles, s.ArtStyle):
		return fmt.Errorf("%w: unknown art style %q", ErrInvalidSettings, s.ArtStyle)
	case s.PageCount < 1 || s.PageCount > MaxPageCount:
		return fmt.Errorf("%w: page count must be between 1 and %d", ErrInvalidSettings, MaxPageCount)
	}
	return nil
}

// PlannedPage 规划阶段产出的单页骨架
type PlannedPage struct {
	PageNumber  int    `json:"pageNumber"`
	Text        string `json:"text"`
	ImagePrompt string `json:"imagePrompt"`
}

// StoryStructure 规划阶段的完整产出
type StoryStructure struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Pages       []PlannedPage `json:"pages"`
}

// Normalize 按页码排序并从1开始连续重新编号
func (s *StoryStructure) Normalize() {
	s.Title = strings.TrimSpace(s.Title)
	s.Description = strings.TrimSpace(s.Description)
	slices.SortStableFunc(s.Pages, func(a, b PlannedPage) int {
		return cmp.Compare(a.PageNumber, b.PageNumber)
	})
	for i := range s.Pages {
		s.Pages[i].PageNumber = i + 1
	}
}

// Validate 校验结构完整性，pageCount<=0 时不校验页数
func (s *StoryStructure) Validate(pageCount int) error {
	if s == nil {
		return fmt.Errorf("%w: empty result", ErrInvalidStructure)
	}
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidStructure)
	}
	if len(s.Pages) == 0 {
		return fmt.Errorf("%w: missing pages", ErrInvalidStructure)
	}
	if pageCount > 0 && len(s.Pages) != pageCount {
		return fmt.Errorf("%w: got %d pages, want %d", ErrInvalidStructure, len(s.Pages), pageCount)
	}
	for i, p := range s.Pages {
		if strings.TrimSpace(p.Text) == "" {
			return fmt.Errorf("%w: page %d has no text", ErrInvalidStructure, i+1)
		}
		if strings.TrimSpace(p.ImagePrompt) == "" {
			return fmt.Errorf("%w: page %d has no image prompt", ErrInvalidStructure, i+1)
		}
	}
	return nil
}

// Page 故事中的一页
type Page struct {
	PageNumber     int    `json:"pageNumber"`
	Text           string `json:"text"`
	ImagePrompt    string `json:"imagePrompt"`
	ImageURL       string `json:"imageUrl,omitempty"`
	IsLoadingImage bool   `json:"isLoadingImage"`
}

// Story 故事聚合
type Story struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Genre       string    `json:"genre"`
	TargetAge   string    `json:"targetAge"`
	ArtStyle    string    `json:"artStyle"`
	CreatedAt   time.Time `json:"createdAt"`
	CoverImage  string    `json:"coverImage,omitempty"`
	Pages       []Page    `json:"pages"`
	IsPublic    bool      `json:"isPublic"`
}

// NewStory 由规划结果构造故事，所有页处于待生成插画状态
func NewStory(id string, settings StorySettings, structure StoryStructure, createdAt time.Time) Story {
	pages := make([]Page, len(structure.Pages))
	for i, p := range structure.Pages {
		pages[i] = Page{
			PageNumber:     p.PageNumber,
			Text:           p.Text,
			ImagePrompt:    p.ImagePrompt,
			IsLoadingImage: true,
		}
	}
	return Story{
		ID:          id,
		Title:       structure.Title,
		Description: structure.Description,
		Genre:       settings.Genre,
		TargetAge:   settings.AgeGroup,
		ArtStyle:    settings.ArtStyle,
		CreatedAt:   createdAt,
		Pages:       pages,
	}
}

func (s Story) Clone() Story {
	s.Pages = slices.Clone(s.Pages)
	return s
}

// Pending 返回仍在等待插画的页数
func (s Story) Pending() int {
	n := 0
	for _, p := range s.Pages {
		if p.IsLoadingImage {
			n++
		}
	}
	return n
}

func (s Story) Complete() bool {
	return s.Pending() == 0
}
