package otodom

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"otodom-scraper/config"
	"otodom-scraper/models"
	"otodom-scraper/utils"
)

// Result is the outcome of one crawl.
type Result struct {
	RunID   uuid.UUID
	Estates []*models.Estate
	Pages   int
	Skipped int
	Elapsed time.Duration
}

// Scraper drives pagination over search results and parses every listing
// it finds.
type Scraper struct {
	cfg    *config.Config
	client Fetcher
	logger *utils.Logger
	seen   *utils.URLSet
	runID  uuid.UUID

	// limiter spaces every request of a concurrent crawl, search pages
	// included, by sleep_time. Nil in sequential mode.
	limiter *rate.Limiter

	// OnPage, when set, receives each finished page's estates before the
	// crawl moves on. A returned error aborts the crawl.
	OnPage func(page int, estates []*models.Estate) error

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Scraper that fetches through client.
func New(cfg *config.Config, client Fetcher, logger *utils.Logger) *Scraper {
	s := &Scraper{
		cfg:    cfg,
		client: client,
		logger: logger,
		runID:  uuid.New(),
		sleep:  utils.Sleep,
	}
	if cfg.Dedupe {
		s.seen = utils.NewURLSet()
	}
	if cfg.Workers > 1 {
		s.limiter = utils.NewLimiter(cfg.SleepDuration())
	}
	return s
}

// RunID identifies this scraper's crawl in logs and stored rows.
func (s *Scraper) RunID() uuid.UUID { return s.runID }

// Scrape crawls from page 1 until a page yields no listings or the page
// limit is reached. On error the returned Result holds everything gathered
// before the failure.
func (s *Scraper) Scrape(ctx context.Context) (*Result, error) {
	res := &Result{RunID: s.runID}
	log := s.logger.WithField("run", res.RunID.String())
	start := time.Now()

	if s.cfg.VerboseLogging {
		log.Info("[otodom] Scraper started")
	}

	for page := 1; ; page++ {
		refs, err := s.listingLinks(ctx, page)
		if err != nil {
			res.Elapsed = time.Since(start)
			return res, err
		}
		if len(refs) == 0 {
			log.Debug("[otodom] Page %d returned 0 listings, stopping", page)
			break
		}
		res.Pages++

		var estates []*models.Estate
		var skipped int
		if s.cfg.Workers > 1 {
			estates, skipped, err = s.scrapeConcurrent(ctx, log, refs)
		} else {
			estates, skipped, err = s.scrapeSequential(ctx, log, refs)
		}
		res.Estates = append(res.Estates, estates...)
		res.Skipped += skipped
		if err != nil {
			res.Elapsed = time.Since(start)
			return res, err
		}

		if s.OnPage != nil {
			if err := s.OnPage(page, estates); err != nil {
				res.Elapsed = time.Since(start)
				return res, fmt.Errorf("page %d: %w", page, err)
			}
		}

		log.Debug("[otodom] Page %d done, %d estates so far", page, len(res.Estates))

		if s.cfg.PageLimit > 0 && page+1 >= s.cfg.PageLimit {
			break
		}
	}

	res.Elapsed = time.Since(start)
	if s.cfg.VerboseLogging {
		log.Info("[otodom] Scraper finished in %.2fs: %d estates, %d skipped",
			res.Elapsed.Seconds(), len(res.Estates), res.Skipped)
		if s.seen != nil {
			log.Info("[otodom] %d unique listing URLs seen", s.seen.Size())
		}
	}
	return res, nil
}

func (s *Scraper) listingLinks(ctx context.Context, page int) ([]models.ListingReference, error) {
	url := SearchURL(s.cfg, page)
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	doc, err := s.client.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("search page %d: %w", page, err)
	}
	refs, err := ExtractListingLinks(doc, s.cfg.ResultBaseURL)
	if err != nil {
		return nil, fmt.Errorf("search page %d: %w", page, err)
	}
	return refs, nil
}

// scrapeListing fetches and parses one listing. Fetch errors are returned
// as-is; parse failures come back as ExtractionError or ValidationError.
func (s *Scraper) scrapeListing(ctx context.Context, url string) (*models.Estate, error) {
	doc, err := s.client.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", url, err)
	}
	raw, err := ExtractDetailFields(doc)
	if err != nil {
		return nil, err
	}
	details, err := models.NewEstateDetails(raw)
	if err != nil {
		return nil, err
	}
	return models.NewEstate(url, details)
}

func (s *Scraper) scrapeSequential(ctx context.Context, log *utils.Logger, refs []models.ListingReference) ([]*models.Estate, int, error) {
	var estates []*models.Estate
	var skipped int

	for _, ref := range s.unseen(log, refs) {
		estate, err := s.scrapeListing(ctx, ref.URL)
		switch {
		case err == nil:
			estates = append(estates, estate)
			s.logParsed(log, estate)
		case skippable(err):
			skipped++
			s.logSkipped(log, ref.URL, err)
		default:
			return estates, skipped, err
		}

		if err := s.sleep(ctx, s.cfg.SleepDuration()); err != nil {
			return estates, skipped, err
		}
	}
	return estates, skipped, nil
}

// scrapeConcurrent fans a page's listings out to a worker pool. The pool
// waits on the crawl-wide limiter, and output keeps page order.
func (s *Scraper) scrapeConcurrent(ctx context.Context, log *utils.Logger, refs []models.ListingReference) ([]*models.Estate, int, error) {
	refs = s.unseen(log, refs)
	found := make([]*models.Estate, len(refs))
	failed := make([]error, len(refs))

	pool := utils.NewWorkerPool(ctx, s.cfg.Workers, s.limiter)
	for i, ref := range refs {
		pool.Submit(func(ctx context.Context) error {
			estate, err := s.scrapeListing(ctx, ref.URL)
			if err != nil {
				if skippable(err) {
					failed[i] = err
					return nil
				}
				return err
			}
			found[i] = estate
			return nil
		})
	}
	err := pool.Wait()

	var estates []*models.Estate
	var skipped int
	for i, ref := range refs {
		switch {
		case found[i] != nil:
			estates = append(estates, found[i])
			s.logParsed(log, found[i])
		case failed[i] != nil:
			skipped++
			s.logSkipped(log, ref.URL, failed[i])
		}
	}
	return estates, skipped, err
}

// unseen drops references already crawled in this run when dedupe is on.
func (s *Scraper) unseen(log *utils.Logger, refs []models.ListingReference) []models.ListingReference {
	if s.seen == nil {
		return refs
	}
	out := refs[:0:0]
	for _, ref := range refs {
		if s.seen.Add(ref.URL) {
			out = append(out, ref)
			continue
		}
		log.Debug("[otodom] Already seen %s", ref.URL)
	}
	return out
}

func (s *Scraper) logParsed(log *utils.Logger, estate *models.Estate) {
	if s.cfg.VerboseLogging {
		log.Info("[otodom] New entry parsed: %s", estate.URL)
	}
}

func (s *Scraper) logSkipped(log *utils.Logger, url string, err error) {
	if s.cfg.VerboseLogging {
		log.Warn("[otodom] Skipping %s: %v", url, err)
	}
}
