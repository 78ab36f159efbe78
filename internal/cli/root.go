package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nkoval/scriptum/internal/config"
	"github.com/nkoval/scriptum/internal/store"
	"github.com/nkoval/scriptum/internal/store/gsheets"
	"github.com/nkoval/scriptum/internal/store/pgstore"
)

// NewRootCmd собирает корневую команду утилиты.
func NewRootCmd() *cobra.Command {
	var jsonMode bool

	root := &cobra.Command{
		Use:           "scriptum",
		Short:         "Content pipeline operator tool",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().BoolVar(&jsonMode, "json", false, "Output data as JSON")

	outputFn := func() *Output { return NewOutput(jsonMode) }

	root.AddCommand(
		newRunCmd(outputFn),
		newCheckCmd(outputFn),
		newStatusCmd(outputFn),
		newReleaseCmd(outputFn),
	)

	return root
}

// buildBackend создаёт табличное хранилище по настройкам.
func buildBackend(ctx context.Context, s *config.Settings) (store.Backend, error) {
	switch s.StoreBackend {
	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, s.DBURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		backend := pgstore.New(pool)
		if err := backend.Bootstrap(ctx); err != nil {
			return nil, err
		}
		return backend, nil
	default:
		backend, err := gsheets.New(ctx, s.SpreadsheetID, s.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("connect to Google Sheets: %w", err)
		}
		return backend, nil
	}
}
