package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"otodom-scraper/config"
	"otodom-scraper/models"
	"otodom-scraper/scraper/otodom"
	"otodom-scraper/services"
	"otodom-scraper/storage"
	"otodom-scraper/utils"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := utils.NewLogger()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		return 1
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		logger.Warn("Ignoring log_level: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("=== Otodom scraper starting ===")
	logger.Info("Config: %s/%s in %s/%s | page limit: %d | sleep: %.2fs | workers: %d | sink: %s",
		cfg.OfferingType, cfg.EstateType, cfg.City, cfg.District,
		cfg.PageLimit, cfg.SleepTime, cfg.Workers, cfg.Output.Sink)

	client := otodom.NewClient(cfg, logger)
	scraper := otodom.New(cfg, client, logger)
	runID := scraper.RunID().String()

	// Per-page flushing opens the sink up front; batch mode opens it only
	// after a successful crawl so a failed run leaves earlier output alone.
	var writer storage.EstateWriter
	if cfg.Output.FlushPerPage {
		writer, err = storage.NewWriter(ctx, cfg, runID)
		if err != nil {
			logger.Error("Failed to open %s sink: %v", cfg.Output.Sink, err)
			return 1
		}
		scraper.OnPage = func(page int, estates []*models.Estate) error {
			logger.Debug("Flushing %d estates from page %d", len(estates), page)
			return writer.Write(estates)
		}
	}

	result, err := scraper.Scrape(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Scrape interrupted after %d estates", len(result.Estates))
		} else {
			logger.Error("Scrape failed after %d estates: %v", len(result.Estates), err)
		}
		if writer != nil {
			if cerr := writer.Close(); cerr != nil {
				logger.Error("Failed to close %s sink: %v", cfg.Output.Sink, cerr)
			}
		}
		return 1
	}

	logger.Info("Scraped %d estates over %d pages (%d skipped) in %s",
		len(result.Estates), result.Pages, result.Skipped, result.Elapsed.Round(time.Millisecond))

	if writer == nil {
		writer, err = storage.NewWriter(ctx, cfg, runID)
		if err != nil {
			logger.Error("Failed to open %s sink: %v", cfg.Output.Sink, err)
			return 1
		}
		if err := writer.Write(result.Estates); err != nil {
			logger.Error("Write to %s sink failed: %v", cfg.Output.Sink, err)
			writer.Close()
			return 1
		}
	}

	estates := result.Estates
	if reader, ok := writer.(storage.EstateReader); ok && cfg.VerboseLogging {
		stored, err := reader.FetchAll()
		if err != nil {
			logger.Warn("Failed to read estates back for insights: %v", err)
		} else {
			estates = stored
		}
	}

	if err := writer.Close(); err != nil {
		logger.Error("Failed to close %s sink: %v", cfg.Output.Sink, err)
		return 1
	}
	logger.Info("Estates saved to %s sink", cfg.Output.Sink)

	if cfg.VerboseLogging {
		insightSvc := services.NewInsightService(logger)
		insightSvc.Print(insightSvc.Generate(estates))
	}

	return 0
}
