// Package schedule вычисляет время запусков прогонов по расписанию.
//
// Временная арифметика вынесена в чистые функции с передаваемым "сейчас",
// чтобы тесты не зависели от реальных часов; Driver — тонкая обёртка,
// которая спит до ближайшего слота и вызывает цикл прогона.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nkoval/scriptum/internal/config"
)

// cronParser — стандартный пятипольный формат.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

var weekdayNames = map[string]time.Weekday{
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
	"sun": time.Sunday,
}

// ParseDays разбирает фильтр дней недели ("mon".."sun", регистр
// не важен, допускаются полные названия).
func ParseDays(names []string) (map[time.Weekday]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}

	days := make(map[time.Weekday]bool, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if len(key) > 3 {
			key = key[:3]
		}
		day, ok := weekdayNames[key]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		days[day] = true
	}
	return days, nil
}

// Validate проверяет корректность записи расписания.
func Validate(job config.ScheduledJob) error {
	if len(job.Tabs) == 0 {
		return fmt.Errorf("job %q: no tabs", job.Name)
	}

	if job.CronExpr != "" {
		if _, err := cronParser.Parse(job.CronExpr); err != nil {
			return fmt.Errorf("job %q: invalid cron expression %q: %w", job.Name, job.CronExpr, err)
		}
		return nil
	}

	if _, _, err := parseAt(job.At); err != nil {
		return fmt.Errorf("job %q: %w", job.Name, err)
	}
	if _, err := ParseDays(job.Days); err != nil {
		return fmt.Errorf("job %q: %w", job.Name, err)
	}
	return nil
}

// NextRun вычисляет следующий запуск задачи строго после from.
func NextRun(job config.ScheduledJob, from time.Time) (time.Time, error) {
	if job.CronExpr != "" {
		sched, err := cronParser.Parse(job.CronExpr)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse cron expression %q: %w", job.CronExpr, err)
		}
		return sched.Next(from), nil
	}

	hour, minute, err := parseAt(job.At)
	if err != nil {
		return time.Time{}, err
	}

	days, err := ParseDays(job.Days)
	if err != nil {
		return time.Time{}, err
	}

	for offset := 0; offset < 8; offset++ {
		day := from.AddDate(0, 0, offset)
		candidate := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, from.Location())
		if !candidate.After(from) {
			continue
		}
		if days != nil && !days[candidate.Weekday()] {
			continue
		}
		return candidate, nil
	}

	// Недостижимо: за 8 дней любой фильтр дней недели даёт слот
	return time.Time{}, fmt.Errorf("no slot within a week for job %q", job.Name)
}

// Nearest возвращает задачу с самым ранним следующим запуском.
func Nearest(jobs []config.ScheduledJob, from time.Time) (config.ScheduledJob, time.Time, error) {
	var (
		best     config.ScheduledJob
		bestTime time.Time
		found    bool
	)

	for _, job := range jobs {
		next, err := NextRun(job, from)
		if err != nil {
			return config.ScheduledJob{}, time.Time{}, err
		}
		if !found || next.Before(bestTime) {
			best = job
			bestTime = next
			found = true
		}
	}

	if !found {
		return config.ScheduledJob{}, time.Time{}, fmt.Errorf("schedule is empty")
	}
	return best, bestTime, nil
}

// parseAt разбирает время суток "HH:MM".
func parseAt(at string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(at, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q, want HH:MM", at)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time of day %q, want HH:MM", at)
	}
	return hour, minute, nil
}
