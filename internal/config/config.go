package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config 应用配置，从环境变量和 .env 文件读取
type Config struct {
	AppEnv string `env:"APP_ENV" env-default:"development"`
	HTTP   HTTPConfig
	Log    LogConfig
	Ark    ArkConfig
	Store  StoreConfig
	Image  ImageConfig
}

type HTTPConfig struct {
	Addr           string   `env:"HTTP_ADDR" env-default:":8080"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"text"` // text 或 json
	File   string `env:"LOG_FILE"`                      // 为空时输出到标准输出
}

type ArkConfig struct {
	APIKey     string `env:"ARK_API_KEY"`
	BaseURL    string `env:"ARK_BASE_URL" env-default:"https://ark.cn-beijing.volces.com"`
	Region     string `env:"ARK_REGION" env-default:"cn-beijing"`
	ChatModel  string `env:"ARK_CHAT_MODEL" env-default:"doubao-seed-1-6-250615"`
	ImageModel string `env:"ARK_IMAGE_MODEL" env-default:"doubao-seedream-4.0"`
	ImageSize  string `env:"ARK_IMAGE_SIZE" env-default:"1024x1024"`
	// TimeoutSec 单次调用超时，0 表示不设超时
	TimeoutSec int  `env:"ARK_TIMEOUT_SEC" env-default:"0"`
	Mock       bool `env:"ARK_MOCK" env-default:"false"`
}

type StoreConfig struct {
	Backend       string `env:"STORE_BACKEND" env-default:"file"` // file, redis 或 memory
	File          string `env:"STORE_FILE" env-default:"data/stories.json"`
	RedisAddr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`
	RedisKey      string `env:"REDIS_KEY" env-default:"storyweaver:stories"`
}

type ImageConfig struct {
	PromptQuality      string `env:"IMAGE_PROMPT_QUALITY" env-default:"High quality, detailed, colorful."`
	PlaceholderBaseURL string `env:"PLACEHOLDER_IMAGE_BASE_URL" env-default:"https://picsum.photos/800/600"`
}

func (a ArkConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSec) * time.Second
}

// Load 读取配置，.env 文件不存在时忽略
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Ark.APIKey == "" && !c.Ark.Mock {
		return fmt.Errorf("ARK_API_KEY required unless ARK_MOCK=true")
	}
	if c.Ark.TimeoutSec < 0 {
		return fmt.Errorf("ARK_TIMEOUT_SEC must not be negative")
	}
	return nil
}
