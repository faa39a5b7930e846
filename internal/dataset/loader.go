package dataset

import (
	"context"
	"fmt"
	"sync"

	"cropwise-go/internal/config"
	"cropwise-go/internal/logging"
)

// Loader resolves a DatasetConfig to a Frame. A configured table is read
// from Postgres when a DSN is set; otherwise the CSV path is used.
type Loader struct {
	dsn string

	mu sync.Mutex
	pg *PostgresSource
}

func NewLoader(dsn string) *Loader {
	return &Loader{dsn: dsn}
}

func (l *Loader) Load(ctx context.Context, cfg config.DatasetConfig) (*Frame, error) {
	if cfg.Table != "" && l.dsn != "" {
		pg, err := l.postgres(ctx)
		if err != nil {
			return nil, err
		}
		frame, err := pg.LoadTable(ctx, cfg.Table)
		if err != nil {
			return nil, fmt.Errorf("failed to load table %s: %w", cfg.Table, err)
		}
		logging.Info().Str("table", cfg.Table).Int("rows", frame.Len()).Msg("dataset loaded from postgres")
		return frame, nil
	}

	if cfg.Path == "" {
		return nil, fmt.Errorf("dataset %q has no csv path", cfg.Name())
	}
	frame, err := LoadCSV(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Path, err)
	}
	logging.Info().Str("path", cfg.Path).Int("rows", frame.Len()).Int("columns", len(frame.Headers)).Msg("dataset loaded")
	return frame, nil
}

func (l *Loader) postgres(ctx context.Context) (*PostgresSource, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pg != nil {
		return l.pg, nil
	}
	pg, err := OpenPostgres(ctx, l.dsn)
	if err != nil {
		return nil, err
	}
	l.pg = pg
	return pg, nil
}

func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pg == nil {
		return nil
	}
	err := l.pg.Close()
	l.pg = nil
	return err
}
