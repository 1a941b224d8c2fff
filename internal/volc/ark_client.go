package volc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL    = "https://ark.cn-beijing.volces.com"
	DefaultImageModel = "doubao-seedream-4.0"
	DefaultImageSize  = "1024x1024"

	imagesPath = "/api/v3/images/generations"

	// 1x1 PNG pixel base64
	mockPixel = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR4nGNgYAAAAAMAASsJTYQAAAAASUVORK5CYII="
)

// ErrNoImages 接口返回成功但没有任何图片
var ErrNoImages = errors.New("no images returned")

type ArkClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Mock       bool
	Logger     logrus.FieldLogger
}

// NewArkClient timeout 为 0 表示不设置超时
func NewArkClient(baseURL, apiKey string, timeout time.Duration, mock bool) *ArkClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &ArkClient{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
		Mock:       mock,
		Logger:     logrus.StandardLogger(),
	}
}

type ImageGenParams struct {
	Model  string
	Prompt string
	Size   string
}

// GenerateImages 调用图片生成接口，返回图片URL或data URL
func (c *ArkClient) GenerateImages(ctx context.Context, p ImageGenParams) ([]string, error) {
	if c.Mock {
		return []string{"data:image/png;base64," + mockPixel}, nil
	}
	if p.Model == "" {
		p.Model = DefaultImageModel
	}
	if p.Size == "" {
		p.Size = DefaultImageSize
	}
	body := map[string]any{
		"model":           p.Model,
		"prompt":          p.Prompt,
		"size":            p.Size,
		"response_format": "url",
	}

	var resp struct {
		Data []struct {
			URL    string `json:"url"`
			B64    string `json:"b64_json"`
			Format string `json:"format"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, imagesPath, body, &resp); err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.URL != "" {
			urls = append(urls, d.URL)
			continue
		}
		if d.B64 != "" {
			fmtType := d.Format
			if fmtType == "" {
				fmtType = "png"
			}
			urls = append(urls, "data:image/"+fmtType+";base64,"+d.B64)
		}
	}
	if len(urls) == 0 {
		return nil, ErrNoImages
	}
	return urls, nil
}

func (c *ArkClient) postJSON(ctx context.Context, path string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	log := c.logger().WithField("url", req.URL.String())
	log.Debug("ark request")
	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	bodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		log.WithField("status", res.StatusCode).Debug("ark request rejected")
		return fmt.Errorf("http %d: %s", res.StatusCode, string(bodyBytes))
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *ArkClient) logger() logrus.FieldLogger {
	if c.Logger == nil {
		return logrus.StandardLogger()
	}
	return c.Logger
}
