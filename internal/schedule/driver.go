package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/nkoval/scriptum/internal/config"
)

// RunFunc запускает один прогон по указанным вкладкам.
type RunFunc func(ctx context.Context, tabs []string) (int, error)

// Driver спит до ближайшего слота расписания и запускает прогон.
type Driver struct {
	jobs   []config.ScheduledJob
	run    RunFunc
	logger *slog.Logger

	// now подменяется в тестах
	now func() time.Time
}

// NewDriver создаёт Driver. Все записи расписания валидируются заранее.
func NewDriver(jobs []config.ScheduledJob, run RunFunc, logger *slog.Logger) (*Driver, error) {
	for _, job := range jobs {
		if err := Validate(job); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		jobs:   jobs,
		run:    run,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Start крутит цикл расписания до отмены контекста.
//
// Ошибка прогона логируется, но не останавливает цикл: следующий слот
// попробует снова.
func (d *Driver) Start(ctx context.Context) error {
	for {
		job, at, err := Nearest(d.jobs, d.now())
		if err != nil {
			return err
		}

		d.logger.Info("next scheduled run",
			"job", job.Name,
			"at", at.Format(time.RFC3339),
			"tabs", job.Tabs,
		)

		timer := time.NewTimer(time.Until(at))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		d.logger.Info("scheduled run starting", "job", job.Name)
		processed, err := d.run(ctx, job.Tabs)
		if err != nil {
			d.logger.Error("scheduled run failed", "job", job.Name, "error", err)
			continue
		}
		d.logger.Info("scheduled run finished", "job", job.Name, "processed", processed)
	}
}
