package storage

import (
	"context"
	"fmt"

	"otodom-scraper/config"
)

// NewWriter opens the sink selected by output.sink.
func NewWriter(ctx context.Context, cfg *config.Config, runID string) (EstateWriter, error) {
	switch cfg.Output.Sink {
	case "file":
		return asWriter(NewFileWriter(cfg.ResultsFile, cfg.Output.Format))
	case "postgres":
		return asWriter(NewPostgresWriter(ctx, cfg.DSN(), runID))
	case "sqlite":
		return asWriter(NewSQLiteWriter(cfg.SQLite.Path, runID))
	case "s3":
		return asWriter(NewS3Writer(ctx, cfg.S3))
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Output.Sink)
	}
}

// asWriter keeps a failed constructor's typed nil out of the interface.
func asWriter[W EstateWriter](w W, err error) (EstateWriter, error) {
	if err != nil {
		return nil, err
	}
	return w, nil
}
