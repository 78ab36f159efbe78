package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nkoval/scriptum/internal/assistants"
	"github.com/nkoval/scriptum/internal/config"
	"github.com/nkoval/scriptum/internal/events"
	"github.com/nkoval/scriptum/internal/hosting"
	"github.com/nkoval/scriptum/internal/imaging"
	"github.com/nkoval/scriptum/internal/processor"
	"github.com/nkoval/scriptum/internal/repo"
	"github.com/nkoval/scriptum/internal/runner"
	"github.com/nkoval/scriptum/internal/telemetry"
)

func newRunCmd(outputFn func() *Output) *cobra.Command {
	var tabs []string
	var rows int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process rows once, outside the schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := telemetry.SetupLogger()
			out := outputFn()
			ctx := cmd.Context()

			settings, err := config.Load()
			if err != nil {
				return err
			}
			if rows > 0 {
				settings.PerRunRows = rows
			}

			r, err := BuildRunner(ctx, settings, nil, logger)
			if err != nil {
				return err
			}

			var filter []string
			if len(tabs) > 0 {
				filter = tabs
			}

			processed, err := r.RunTabs(ctx, filter)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Processed %d row(s)", processed))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&tabs, "tabs", nil, "Only process the listed tabs")
	cmd.Flags().IntVar(&rows, "rows", 0, "Override the per-run row budget")

	return cmd
}

// BuildRunner собирает полный конвейер обработки по настройкам:
// хранилище, репозиторий, ассистенты, пайплайн изображений, оркестратор.
// Publisher событий опционален.
func BuildRunner(ctx context.Context, settings *config.Settings, publisher *events.Publisher, logger *slog.Logger) (*runner.Runner, error) {
	backend, err := buildBackend(ctx, settings)
	if err != nil {
		return nil, err
	}

	rows := repo.New(repo.Config{
		Backend: backend,
		Logger:  logger,
	})

	ai, err := assistants.New(assistants.Config{
		APIKey:    settings.OpenAIAPIKey,
		OrgID:     settings.OpenAIOrgID,
		ProjectID: settings.OpenAIProjectID,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create assistants client: %w", err)
	}

	var images processor.ImagePipeline
	if settings.ImageEnabled {
		images, err = buildImagePipeline(settings, logger)
		if err != nil {
			return nil, err
		}
	}

	proc := processor.New(processor.Config{
		Assistants:       ai,
		Rows:             rows,
		Images:           images,
		BriefAssistantID: settings.BriefAssistantID,
		MaxRevisions:     settings.MaxRevisions,
		Logger:           logger,
	})

	return runner.New(runner.Config{
		Rows:       rows,
		Processor:  proc,
		Tabs:       settings.Tabs,
		PerRunRows: settings.PerRunRows,
		LockTTL:    settings.LockTTL,
		Events:     publisher,
		Logger:     logger,
	}), nil
}

// buildImagePipeline собирает пайплайн изображений. В тестовом режиме
// внешние клиенты не создаются вовсе.
func buildImagePipeline(settings *config.Settings, logger *slog.Logger) (*imaging.Pipeline, error) {
	if settings.ImageTestMode {
		return imaging.NewPipeline(nil, nil, true, logger), nil
	}

	generator, err := imaging.NewGenerator(imaging.GeneratorConfig{
		APIKey:    settings.ImageAPIKey,
		OrgID:     settings.OpenAIOrgID,
		ProjectID: settings.OpenAIProjectID,
		Model:     settings.ImageModel,
		Size:      settings.ImageSize,
		Quality:   settings.ImageQuality,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create image generator: %w", err)
	}

	uploader := hosting.NewFreeImageClient(settings.FreeImageAPIKey)
	return imaging.NewPipeline(generator, uploader, false, logger), nil
}
