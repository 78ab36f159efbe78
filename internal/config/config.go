// Package config загружает настройки воркера из переменных окружения.
//
// Поддерживается файл .env в рабочей директории (удобно для разработки);
// в production переменные задаются окружением процесса. Настройки
// читаются один раз при старте и далее неизменяемы.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Бэкенды табличного хранилища.
const (
	BackendGoogleSheets = "gsheets"
	BackendPostgres     = "postgres"
)

// Значения по умолчанию.
const (
	DefaultPerRunRows     = 1
	DefaultMaxRevisions   = 5
	DefaultLockTTLMinutes = 15
	DefaultSchedulerPort  = 8080
	DefaultImageModel     = "gpt-image-1"
	DefaultImageSize      = "1536x1024"
	DefaultImageQuality   = "high"
)

// TabAssistants — пара ассистентов одной вкладки.
type TabAssistants struct {
	// Tab — название вкладки таблицы.
	Tab string `json:"tab"`

	// WriterAssistantID — ассистент-писатель.
	WriterAssistantID string `json:"writer_assistant_id"`

	// ModeratorAssistantID — ассистент-модератор.
	ModeratorAssistantID string `json:"moderator_assistant_id"`

	// ImageEnabled — генерировать ли изображение для строк вкладки.
	ImageEnabled bool `json:"image_enabled"`
}

// EnsureComplete проверяет, что конфигурация вкладки пригодна к работе.
func (t TabAssistants) EnsureComplete() error {
	if t.Tab == "" {
		return fmt.Errorf("tab name is empty")
	}
	if t.WriterAssistantID == "" {
		return fmt.Errorf("tab %q: writer assistant is not configured", t.Tab)
	}
	if t.ModeratorAssistantID == "" {
		return fmt.Errorf("tab %q: moderator assistant is not configured", t.Tab)
	}
	return nil
}

// ScheduledJob — запись расписания прогонов.
//
// Задаётся либо парой At+Days (время суток и необязательный фильтр
// дней недели), либо cron-выражением.
type ScheduledJob struct {
	Name        string   `json:"name"`
	Tabs        []string `json:"tabs"`
	At          string   `json:"at"`   // "HH:MM", локальное время процесса
	Days        []string `json:"days"` // "mon".."sun"; пусто — ежедневно
	CronExpr    string   `json:"cron"`
	Description string   `json:"description"`
}

// Settings — полный набор настроек воркера.
type Settings struct {
	// OpenAI
	OpenAIAPIKey    string
	OpenAIOrgID     string
	OpenAIProjectID string

	// Google Sheets
	SpreadsheetID      string
	ServiceAccountFile string

	// Вкладки и ассистенты
	Tabs []TabAssistants

	// Обработка
	PerRunRows   int
	MaxRevisions int
	LockTTL      time.Duration

	// Изображения
	ImageEnabled     bool
	ImageTestMode    bool
	BriefAssistantID string
	ImageModel       string
	ImageSize        string
	ImageQuality     string
	ImageAPIKey      string // отдельный ключ OpenAI для изображений
	FreeImageAPIKey  string

	// Хранилище
	StoreBackend string
	DBURL        string

	// События
	RabbitURL string

	// Планировщик
	Schedule      []ScheduledJob
	SchedulerPort int
}

// Load читает настройки из окружения. Файл .env, если есть,
// подхватывается без перекрытия уже установленных переменных.
func Load() (*Settings, error) {
	_ = godotenv.Load()

	s := &Settings{
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIOrgID:        os.Getenv("OPENAI_ORG_ID"),
		OpenAIProjectID:    os.Getenv("OPENAI_PROJECT_ID"),
		SpreadsheetID:      os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID"),
		ServiceAccountFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
		PerRunRows:         getEnvInt("PROCESSING_PER_RUN_ROWS", DefaultPerRunRows),
		LockTTL:            time.Duration(getEnvInt("PROCESSING_LOCK_TTL_MINUTES", DefaultLockTTLMinutes)) * time.Minute,
		ImageEnabled:       getEnvBool("IMAGE_GENERATION_ENABLED", false),
		ImageTestMode:      getEnvBool("IMAGE_TEST_MODE", false),
		BriefAssistantID:   os.Getenv("GLOBAL_IMAGE_BRIEF_ASSISTANT_ID"),
		ImageModel:         getEnv("IMAGE_MODEL", DefaultImageModel),
		ImageSize:          getEnv("IMAGE_SIZE", DefaultImageSize),
		ImageQuality:       getEnv("IMAGE_QUALITY", DefaultImageQuality),
		FreeImageAPIKey:    os.Getenv("FREEIMAGE_API_KEY"),
		StoreBackend:       getEnv("STORE_BACKEND", BackendGoogleSheets),
		DBURL:              os.Getenv("DB_URL"),
		RabbitURL:          os.Getenv("RABBITMQ_URL"),
		SchedulerPort:      getEnvInt("SCHEDULER_PORT", DefaultSchedulerPort),
	}

	// Лимит правок: основное имя MODERATOR_MAX_ITERATIONS,
	// PROCESSING_MAX_REVISIONS — запасное
	s.MaxRevisions = getEnvInt("MODERATOR_MAX_ITERATIONS",
		getEnvInt("PROCESSING_MAX_REVISIONS", DefaultMaxRevisions))

	// Отдельный ключ для изображений не обязателен
	s.ImageAPIKey = getEnv("IMAGE_OPENAI_API_KEY", s.OpenAIAPIKey)

	if s.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	switch s.StoreBackend {
	case BackendGoogleSheets:
		if s.SpreadsheetID == "" {
			return nil, fmt.Errorf("GOOGLE_SHEETS_SPREADSHEET_ID is required for the gsheets backend")
		}
		if s.ServiceAccountFile == "" {
			return nil, fmt.Errorf("GOOGLE_SERVICE_ACCOUNT_FILE is required for the gsheets backend")
		}
	case BackendPostgres:
		if s.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required for the postgres backend")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", s.StoreBackend)
	}

	rawTabs := os.Getenv("SHEETS_CONFIG")
	if rawTabs == "" {
		return nil, fmt.Errorf("SHEETS_CONFIG is required")
	}
	if err := json.Unmarshal([]byte(rawTabs), &s.Tabs); err != nil {
		return nil, fmt.Errorf("parse SHEETS_CONFIG: %w", err)
	}
	if len(s.Tabs) == 0 {
		return nil, fmt.Errorf("SHEETS_CONFIG lists no tabs")
	}

	if rawSchedule := os.Getenv("SCHEDULE_CONFIG"); rawSchedule != "" {
		if err := json.Unmarshal([]byte(rawSchedule), &s.Schedule); err != nil {
			return nil, fmt.Errorf("parse SCHEDULE_CONFIG: %w", err)
		}
	}

	if s.PerRunRows < 1 {
		s.PerRunRows = 1
	}
	if s.MaxRevisions < 0 {
		s.MaxRevisions = 0
	}
	if s.LockTTL <= 0 {
		s.LockTTL = DefaultLockTTLMinutes * time.Minute
	}

	if s.ImageEnabled && s.BriefAssistantID == "" {
		return nil, fmt.Errorf("GLOBAL_IMAGE_BRIEF_ASSISTANT_ID is required when image generation is enabled")
	}

	return s, nil
}

// TabNames возвращает названия вкладок в порядке конфигурации.
func (s *Settings) TabNames() []string {
	names := make([]string, len(s.Tabs))
	for i, t := range s.Tabs {
		names[i] = t.Tab
	}
	return names
}

// TabByName ищет конфигурацию вкладки по названию.
func (s *Settings) TabByName(name string) (TabAssistants, bool) {
	for _, t := range s.Tabs {
		if t.Tab == name {
			return t, true
		}
	}
	return TabAssistants{}, false
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
