// Package imaging реализует генерацию иллюстраций: OpenAI Images API
// выдаёт изображение по арт-брифу, затем оно загружается на хостинг
// и строка получает публичную ссылку.
package imaging

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/nkoval/scriptum/internal/retry"
)

// Значения по умолчанию генерации.
const (
	DefaultModel   = "gpt-image-1"
	DefaultSize    = "1536x1024"
	DefaultQuality = "high"
)

// TestModeURL — фиксированная ссылка-заглушка тестового режима:
// пайплайн отрабатывает без обращения к внешним сервисам.
const TestModeURL = "https://example.com/test-image.png"

// ErrImage — ошибка стадии генерации или загрузки изображения.
var ErrImage = errors.New("image pipeline failed")

// GeneratorConfig — настройки генератора изображений.
type GeneratorConfig struct {
	// APIKey — ключ OpenAI API (обязательно). Может отличаться от
	// ключа текстовых ассистентов.
	APIKey string

	// OrgID, ProjectID — необязательные организация и проект.
	OrgID     string
	ProjectID string

	// Model, Size, Quality — параметры генерации.
	Model   string
	Size    string
	Quality string

	// Retry — политика повторов.
	Retry retry.Policy

	// Logger
	Logger *slog.Logger
}

// Generator — обёртка над OpenAI Images API.
type Generator struct {
	client  openai.Client
	model   string
	size    string
	quality string
	policy  retry.Policy
	logger  *slog.Logger
}

// NewGenerator создаёт генератор изображений.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required for image generation")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.OrgID != "" {
		opts = append(opts, option.WithOrganization(cfg.OrgID))
	}
	if cfg.ProjectID != "" {
		opts = append(opts, option.WithProject(cfg.ProjectID))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	size := cfg.Size
	if size == "" {
		size = DefaultSize
	}
	quality := cfg.Quality
	if quality == "" {
		quality = DefaultQuality
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	policy := cfg.Retry
	if policy.Name == "" {
		policy.Name = "image-generation"
	}
	if policy.Retryable == nil {
		policy.Retryable = retryableAPIError
	}
	if policy.Logger == nil {
		policy.Logger = logger
	}

	return &Generator{
		client:  openai.NewClient(opts...),
		model:   model,
		size:    size,
		quality: quality,
		policy:  policy,
		logger:  logger,
	}, nil
}

// Generate создаёт изображение по описанию и возвращает бинарные данные.
func (g *Generator) Generate(ctx context.Context, prompt string) ([]byte, error) {
	var data []byte
	err := g.policy.Do(ctx, func() error {
		resp, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
			Model:   openai.ImageModel(g.model),
			Prompt:  prompt,
			Size:    openai.ImageGenerateParamsSize(g.size),
			Quality: openai.ImageGenerateParamsQuality(g.quality),
		})
		if err != nil {
			return fmt.Errorf("generate image: %w", err)
		}
		if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
			return fmt.Errorf("image service returned no payload")
		}
		data, err = base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
		if err != nil {
			return fmt.Errorf("decode image payload: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImage, err)
	}
	return data, nil
}

// ImageGenerator создаёт изображение по текстовому описанию.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// Uploader загружает изображение на хостинг и возвращает публичную ссылку.
type Uploader interface {
	Upload(ctx context.Context, data []byte, title string) (string, error)
}

// Pipeline комбинирует генератор и хостинг.
type Pipeline struct {
	generator ImageGenerator
	uploader  Uploader
	testMode  bool
	logger    *slog.Logger
}

// NewPipeline создаёт пайплайн генерации и публикации изображений.
//
// В тестовом режиме (testMode) пайплайн не трогает внешние сервисы
// и сразу возвращает TestModeURL; generator и uploader могут быть nil.
func NewPipeline(generator ImageGenerator, uploader Uploader, testMode bool, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		generator: generator,
		uploader:  uploader,
		testMode:  testMode,
		logger:    logger,
	}
}

// GenerateAndUpload создаёт изображение по брифу и публикует его.
func (p *Pipeline) GenerateAndUpload(ctx context.Context, brief, title string) (string, error) {
	if p.testMode {
		p.logger.Info("image test mode, returning placeholder URL", "title", title)
		return TestModeURL, nil
	}

	data, err := p.generator.Generate(ctx, brief)
	if err != nil {
		return "", err
	}

	url, err := p.uploader.Upload(ctx, data, title)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrImage, err)
	}

	p.logger.Info("image uploaded", "title", title, "url", url)
	return url, nil
}

// retryableAPIError — предикат повторов для Images API.
func retryableAPIError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return false
}
