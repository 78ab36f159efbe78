package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nkoval/scriptum/internal/config"
	"github.com/nkoval/scriptum/internal/domain"
	"github.com/nkoval/scriptum/internal/lease"
)

func newCheckCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that every configured tab has the required columns",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			ctx := cmd.Context()

			settings, err := config.Load()
			if err != nil {
				return err
			}
			backend, err := buildBackend(ctx, settings)
			if err != nil {
				return err
			}

			type tabReport struct {
				Tab     string   `json:"tab"`
				OK      bool     `json:"ok"`
				Missing []string `json:"missing,omitempty"`
			}

			var reports []tabReport
			broken := 0
			for _, tabCfg := range settings.Tabs {
				headers, err := backend.ReadHeader(ctx, tabCfg.Tab)
				if err != nil {
					return fmt.Errorf("read header of tab %q: %w", tabCfg.Tab, err)
				}

				present := make(map[string]bool, len(headers))
				for _, h := range headers {
					present[h] = true
				}

				var missing []string
				for _, name := range domain.RequiredColumns() {
					if !present[name] {
						missing = append(missing, name)
					}
				}
				if len(missing) > 0 {
					broken++
				}
				reports = append(reports, tabReport{Tab: tabCfg.Tab, OK: len(missing) == 0, Missing: missing})
			}

			rows := make([][]string, len(reports))
			for i, r := range reports {
				status := "OK"
				if !r.OK {
					status = "missing: " + strings.Join(r.Missing, ", ")
				}
				rows[i] = []string{r.Tab, status}
			}
			out.Print([]string{"TAB", "SCHEMA"}, rows, reports)

			if broken > 0 {
				return fmt.Errorf("%d tab(s) have schema problems", broken)
			}
			return nil
		},
	}
}

func newStatusCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status [TAB]",
		Short: "Summarize row statuses per tab",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			ctx := cmd.Context()

			settings, err := config.Load()
			if err != nil {
				return err
			}
			backend, err := buildBackend(ctx, settings)
			if err != nil {
				return err
			}

			tabs := settings.TabNames()
			if len(args) == 1 {
				tabs = []string{args[0]}
			}

			type tabSummary struct {
				Tab      string         `json:"tab"`
				Rows     int            `json:"rows"`
				ByStatus map[string]int `json:"by_status"`
				Locked   int            `json:"locked"`
			}

			now := time.Now().UTC()
			var summaries []tabSummary
			for _, tab := range tabs {
				headers, err := backend.ReadHeader(ctx, tab)
				if err != nil {
					return fmt.Errorf("read header of tab %q: %w", tab, err)
				}
				statusCol, lockCol := -1, -1
				for i, h := range headers {
					switch h {
					case domain.ColumnStatus:
						statusCol = i
					case domain.ColumnLock:
						lockCol = i
					}
				}
				if statusCol < 0 || lockCol < 0 {
					return fmt.Errorf("tab %q lacks the Status or Lock column", tab)
				}

				raw, err := backend.ListRows(ctx, tab)
				if err != nil {
					return fmt.Errorf("list rows of tab %q: %w", tab, err)
				}

				summary := tabSummary{Tab: tab, ByStatus: make(map[string]int)}
				for _, row := range raw {
					status, lock := "", ""
					if statusCol < len(row) {
						status = strings.TrimSpace(row[statusCol])
					}
					if lockCol < len(row) {
						lock = strings.TrimSpace(row[lockCol])
					}
					if status == "" && lock == "" {
						continue
					}
					summary.Rows++
					summary.ByStatus[status]++
					if lock != "" && !lease.IsExpired(lock, now) {
						summary.Locked++
					}
				}
				summaries = append(summaries, summary)
			}

			rows := make([][]string, len(summaries))
			for i, s := range summaries {
				rows[i] = []string{
					s.Tab,
					strconv.Itoa(s.Rows),
					strconv.Itoa(s.ByStatus[string(domain.RowStatusPrepared)]),
					strconv.Itoa(s.ByStatus[string(domain.RowStatusWritten)]),
					strconv.Itoa(s.ByStatus[string(domain.RowStatusWrittenNotModerated)]),
					strconv.Itoa(s.ByStatus[string(domain.RowStatusError)]),
					strconv.Itoa(s.Locked),
				}
			}
			out.Print(
				[]string{"TAB", "ROWS", "PREPARED", "WRITTEN", "NOT_MODERATED", "ERROR", "LOCKED"},
				rows, summaries,
			)
			return nil
		},
	}
}

func newReleaseCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "release TAB ROW",
		Short: "Manually clear a row's lock cell",
		Long: "Clears the lock cell of the given row. Intended for rows whose lock\n" +
			"value cannot be parsed and therefore never expires on its own.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			ctx := cmd.Context()

			tab := args[0]
			rowIndex, err := strconv.Atoi(args[1])
			if err != nil || rowIndex < 2 {
				return fmt.Errorf("invalid row number %q, data rows start at 2", args[1])
			}

			settings, err := config.Load()
			if err != nil {
				return err
			}
			backend, err := buildBackend(ctx, settings)
			if err != nil {
				return err
			}

			headers, err := backend.ReadHeader(ctx, tab)
			if err != nil {
				return fmt.Errorf("read header of tab %q: %w", tab, err)
			}

			lockCol := -1
			for i, h := range headers {
				if h == domain.ColumnLock {
					lockCol = i + 1
					break
				}
			}
			if lockCol < 0 {
				return fmt.Errorf("tab %q has no Lock column", tab)
			}

			if err := backend.WriteCell(ctx, tab, rowIndex, lockCol, ""); err != nil {
				return fmt.Errorf("clear lock of row %d in tab %q: %w", rowIndex, tab, err)
			}

			out.Success(fmt.Sprintf("Lock released: %s row %d", tab, rowIndex))
			return nil
		},
	}
}
