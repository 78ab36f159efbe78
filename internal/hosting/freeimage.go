// Package hosting реализует клиента загрузки изображений на
// freeimage.host — публичный хостинг с простым multipart API.
package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultEndpoint — адрес API freeimage.host.
const DefaultEndpoint = "https://freeimage.host/api/1/upload"

const defaultTimeout = 30 * time.Second

var slugPattern = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// FreeImageClient — минимальный клиент freeimage.host.
type FreeImageClient struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// Option настраивает FreeImageClient.
type Option func(*FreeImageClient)

// WithEndpoint переопределяет адрес API (для тестов).
func WithEndpoint(endpoint string) Option {
	return func(c *FreeImageClient) { c.endpoint = endpoint }
}

// WithHTTPClient переопределяет HTTP-клиент.
func WithHTTPClient(client *http.Client) Option {
	return func(c *FreeImageClient) { c.client = client }
}

// NewFreeImageClient создаёт клиента. Пустой apiKey допустим:
// сервис принимает анонимные загрузки.
func NewFreeImageClient(apiKey string, opts ...Option) *FreeImageClient {
	c := &FreeImageClient{
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// uploadResponse — ответ freeimage.host.
type uploadResponse struct {
	StatusCode int  `json:"status_code"`
	Success    bool `json:"success"`
	Image      struct {
		URL        string `json:"url"`
		DisplayURL string `json:"display_url"`
	} `json:"image"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload загружает изображение и возвращает публичную ссылку.
func (c *FreeImageClient) Upload(ctx context.Context, data []byte, title string) (string, error) {
	filename, err := buildFilename(title)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("type", "file"); err != nil {
		return "", fmt.Errorf("write form field: %w", err)
	}
	if c.apiKey != "" {
		if err := mw.WriteField("key", c.apiKey); err != nil {
			return "", fmt.Errorf("write form field: %w", err)
		}
	}

	fw, err := mw.CreateFormFile("source", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return "", fmt.Errorf("write image data: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image host returned HTTP %d", resp.StatusCode)
	}

	var parsed uploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.StatusCode != http.StatusOK || !parsed.Success {
		msg := parsed.Error.Message
		if msg == "" {
			msg = "image host reported failure"
		}
		return "", fmt.Errorf("upload rejected: %s", msg)
	}

	link := parsed.Image.URL
	if link == "" {
		link = parsed.Image.DisplayURL
	}
	if link == "" {
		return "", fmt.Errorf("image host returned no link")
	}
	return link, nil
}

// buildFilename собирает имя файла из заголовка строки: слаг,
// метка времени и короткая соль против коллизий.
func buildFilename(title string) (string, error) {
	slug := strings.Trim(slugPattern.ReplaceAllString(title, "_"), "_")
	if slug == "" {
		slug = "image"
	}

	salt, err := nanoid.Generate("abcdefghijklmnopqrstuvwxyz0123456789", 6)
	if err != nil {
		return "", fmt.Errorf("generate filename salt: %w", err)
	}

	timestamp := time.Now().UTC().Format("20060102-150405")
	return fmt.Sprintf("%s_%s_%s.png", slug, timestamp, salt), nil
}
