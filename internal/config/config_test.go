package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_ID", "sheet-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/etc/creds.json")
	t.Setenv("SHEETS_CONFIG", `[
		{"tab": "Articles", "writer_assistant_id": "asst_w", "moderator_assistant_id": "asst_m", "image_enabled": true},
		{"tab": "News", "writer_assistant_id": "asst_w2", "moderator_assistant_id": "asst_m2"}
	]`)
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	s, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.PerRunRows != 1 {
		t.Errorf("PerRunRows = %d, want 1", s.PerRunRows)
	}
	if s.MaxRevisions != DefaultMaxRevisions {
		t.Errorf("MaxRevisions = %d, want %d", s.MaxRevisions, DefaultMaxRevisions)
	}
	if s.LockTTL != 15*time.Minute {
		t.Errorf("LockTTL = %v, want 15m", s.LockTTL)
	}
	if s.StoreBackend != BackendGoogleSheets {
		t.Errorf("StoreBackend = %q, want %q", s.StoreBackend, BackendGoogleSheets)
	}
	if len(s.Tabs) != 2 {
		t.Fatalf("expected 2 tabs, got %d", len(s.Tabs))
	}
	if !s.Tabs[0].ImageEnabled || s.Tabs[1].ImageEnabled {
		t.Errorf("image flags parsed incorrectly: %+v", s.Tabs)
	}
	// Отдельный ключ для изображений не задан — используется основной
	if s.ImageAPIKey != "sk-test" {
		t.Errorf("ImageAPIKey = %q, want fallback to OPENAI_API_KEY", s.ImageAPIKey)
	}
}

func TestLoad_MissingAPIKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing OPENAI_API_KEY")
	}
}

func TestLoad_MaxRevisionsNames(t *testing.T) {
	setRequiredEnv(t)

	// Запасное имя работает, когда основное не задано
	t.Setenv("PROCESSING_MAX_REVISIONS", "2")
	s, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.MaxRevisions != 2 {
		t.Errorf("MaxRevisions = %d, want 2 from the fallback name", s.MaxRevisions)
	}

	// Основное имя имеет приоритет над запасным
	t.Setenv("MODERATOR_MAX_ITERATIONS", "7")
	s, err = Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.MaxRevisions != 7 {
		t.Errorf("MaxRevisions = %d, want 7 from MODERATOR_MAX_ITERATIONS", s.MaxRevisions)
	}
}

func TestLoad_PostgresBackend(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORE_BACKEND", "postgres")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing DB_URL")
	}

	t.Setenv("DB_URL", "postgres://localhost/scriptum")
	s, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.StoreBackend != BackendPostgres {
		t.Errorf("StoreBackend = %q", s.StoreBackend)
	}
}

func TestLoad_ImageRequiresBriefAssistant(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("IMAGE_GENERATION_ENABLED", "true")

	if _, err := Load(); err == nil {
		t.Fatal("expected error: image generation without brief assistant")
	}

	t.Setenv("GLOBAL_IMAGE_BRIEF_ASSISTANT_ID", "asst_brief")
	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoad_ScheduleConfig(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SCHEDULE_CONFIG", `[
		{"name": "morning", "tabs": ["Articles"], "at": "09:30", "days": ["mon", "wed"]},
		{"name": "hourly", "tabs": ["News"], "cron": "0 * * * *"}
	]`)

	s, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Schedule) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(s.Schedule))
	}
	if s.Schedule[0].At != "09:30" || len(s.Schedule[0].Days) != 2 {
		t.Errorf("job parsed incorrectly: %+v", s.Schedule[0])
	}
	if s.Schedule[1].CronExpr != "0 * * * *" {
		t.Errorf("cron job parsed incorrectly: %+v", s.Schedule[1])
	}
}

func TestEnsureComplete(t *testing.T) {
	complete := TabAssistants{Tab: "A", WriterAssistantID: "w", ModeratorAssistantID: "m"}
	if err := complete.EnsureComplete(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	noWriter := TabAssistants{Tab: "A", ModeratorAssistantID: "m"}
	if err := noWriter.EnsureComplete(); err == nil {
		t.Error("expected error for missing writer")
	}

	noModerator := TabAssistants{Tab: "A", WriterAssistantID: "w"}
	if err := noModerator.EnsureComplete(); err == nil {
		t.Error("expected error for missing moderator")
	}
}
