package assistants

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/nkoval/scriptum/internal/retry"
)

// Значения по умолчанию.
const (
	// DefaultPollInterval — интервал опроса статуса run.
	DefaultPollInterval = 1 * time.Second
)

// Ошибки клиента.
var (
	// ErrGeneration — не удалось получить ответ ассистента
	// (после исчерпания повторов). Единственный вид ошибки,
	// который видит вызывающий.
	ErrGeneration = errors.New("assistant generation failed")

	// ErrRunFailed — run завершился нештатным статусом.
	ErrRunFailed = errors.New("assistant run failed")

	// ErrRunTimeout — превышен общий дедлайн ожидания run.
	ErrRunTimeout = errors.New("assistant run timed out")

	// ErrNoTextReply — завершённый run не содержит текстового ответа.
	ErrNoTextReply = errors.New("assistant returned no text reply")
)

// Config — параметры клиента.
type Config struct {
	// APIKey — ключ OpenAI API (обязательно).
	APIKey string

	// OrgID, ProjectID — необязательные организация и проект.
	OrgID     string
	ProjectID string

	// PollInterval — интервал опроса статуса run (default: 1s).
	PollInterval time.Duration

	// Timeout — общий дедлайн ожидания одного run.
	// 0 означает «без дедлайна».
	Timeout time.Duration

	// Retry — политика повторов. Нулевая политика получает имя
	// "assistants" и предикат повторяемости клиента.
	Retry retry.Policy

	// Logger
	Logger *slog.Logger
}

// Client — высокоуровневый клиент Assistants API.
type Client struct {
	client       openai.Client
	pollInterval time.Duration
	timeout      time.Duration
	policy       retry.Policy
	logger       *slog.Logger
}

// New создаёт клиента Assistants API.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.OrgID != "" {
		opts = append(opts, option.WithOrganization(cfg.OrgID))
	}
	if cfg.ProjectID != "" {
		opts = append(opts, option.WithProject(cfg.ProjectID))
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	policy := cfg.Retry
	if policy.Name == "" {
		policy.Name = "assistants"
	}
	if policy.Retryable == nil {
		policy.Retryable = Retryable
	}
	if policy.Logger == nil {
		policy.Logger = logger
	}

	return &Client{
		client:       openai.NewClient(opts...),
		pollInterval: pollInterval,
		timeout:      cfg.Timeout,
		policy:       policy,
		logger:       logger,
	}, nil
}

// RunAssistant отправляет сообщение ассистенту и возвращает текст ответа.
//
// Синхронна для вызывающего: тред, run и опрос статуса скрыты внутри.
// После исчерпания повторов любая ошибка оборачивается в ErrGeneration.
func (c *Client) RunAssistant(ctx context.Context, assistantID, message string) (string, error) {
	c.logger.Debug("running assistant", "assistant_id", assistantID)

	var reply string
	err := c.policy.Do(ctx, func() error {
		var err error
		reply, err = c.runOnce(ctx, assistantID, message)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return reply, nil
}

// runOnce выполняет один полный цикл: тред → сообщение → run → ответ.
func (c *Client) runOnce(ctx context.Context, assistantID, message string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	thread, err := c.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}

	_, err = c.client.Beta.Threads.Messages.New(ctx, thread.ID, openai.BetaThreadMessageNewParams{
		Role: "user",
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(message),
		},
	})
	if err != nil {
		return "", fmt.Errorf("post message: %w", err)
	}

	run, err := c.client.Beta.Threads.Runs.New(ctx, thread.ID, openai.BetaThreadRunNewParams{
		AssistantID: assistantID,
	})
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}

	status, err := c.waitForCompletion(ctx, thread.ID, run.ID)
	if err != nil {
		return "", err
	}
	if status != "completed" {
		return "", fmt.Errorf("%w: status %s", ErrRunFailed, status)
	}

	return c.extractText(ctx, thread.ID)
}

// waitForCompletion опрашивает статус run до терминального состояния.
func (c *Client) waitForCompletion(ctx context.Context, threadID, runID string) (string, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		run, err := c.client.Beta.Threads.Runs.Get(ctx, threadID, runID)
		if err != nil {
			return "", fmt.Errorf("poll run: %w", err)
		}

		switch run.Status {
		case "completed", "failed", "cancelled", "expired", "requires_action":
			return string(run.Status), nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", ErrRunTimeout
			}
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// extractText возвращает текст свежайшего ответа ассистента в треде.
func (c *Client) extractText(ctx context.Context, threadID string) (string, error) {
	page, err := c.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		Order: "desc",
		Limit: openai.Int(5),
	})
	if err != nil {
		return "", fmt.Errorf("list messages: %w", err)
	}

	for _, msg := range page.Data {
		if msg.Role != "assistant" {
			continue
		}
		var chunks []string
		for _, block := range msg.Content {
			if block.Type == "text" && block.Text.Value != "" {
				chunks = append(chunks, block.Text.Value)
			}
		}
		if len(chunks) > 0 {
			return strings.TrimSpace(strings.Join(chunks, "\n\n")), nil
		}
	}
	return "", ErrNoTextReply
}

// Retryable — предикат повторяемости для вызовов OpenAI API:
// rate limit, серверные ошибки и нештатно завершившиеся run повторяются,
// остальное пробрасывается сразу.
func Retryable(err error) bool {
	if errors.Is(err, ErrRunFailed) {
		return true
	}
	if errors.Is(err, ErrRunTimeout) || errors.Is(err, ErrNoTextReply) {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return false
}
