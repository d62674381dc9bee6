package otodom

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"

	"otodom-scraper/config"
	"otodom-scraper/utils"
)

const maxRedirects = 10

var errTooManyRedirects = fmt.Errorf("stopped after %d redirects", maxRedirects)

// Failure classes, each with its own retry budget.
const (
	classConnect  = "connect"
	classRead     = "read"
	classRedirect = "redirect"
)

// Fetcher retrieves and parses a single document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// Client is the crawl's only outbound HTTP path. One transport (and so one
// connection pool) is shared by every call.
type Client struct {
	httpClient *http.Client
	userAgent  string
	budgets    config.RetryConfig
	retry      *utils.RetryConfig
	logger     *utils.Logger
}

// attemptError tags a failed attempt with its failure class. An empty class
// marks a failure that retrying cannot fix.
type attemptError struct {
	class string
	err   error
}

func (e *attemptError) Error() string { return e.err.Error() }
func (e *attemptError) Unwrap() error { return e.err }

// NewClient builds the pooled HTTP client from configuration.
func NewClient(cfg *config.Config, logger *utils.Logger) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.RequestTimeoutDuration(),
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errTooManyRedirects
				}
				return nil
			},
		},
		userAgent: cfg.Agent,
		budgets:   cfg.Retry,
		retry: utils.NewRetryConfig(utils.Backoff{
			MinWait:     cfg.Backoff.MinWaitDuration(),
			MaxWait:     cfg.Backoff.MaxWaitDuration(),
			MaxAttempts: cfg.Backoff.MaxAttempts,
		}, logger),
		logger: logger,
	}
}

// Fetch GETs url and parses the body. Transport failures are retried with
// backoff while their class budget lasts; HTTP status codes never are.
func (c *Client) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	remaining := map[string]int{
		classConnect:  c.budgets.Connect,
		classRead:     c.budgets.Read,
		classRedirect: c.budgets.Redirect,
	}
	shouldRetry := func(err error) bool {
		var ae *attemptError
		if !errors.As(err, &ae) || ae.class == "" {
			return false
		}
		if remaining[ae.class] <= 0 {
			return false
		}
		remaining[ae.class]--
		return true
	}

	var body []byte
	err := c.retry.Do(ctx, "GET "+url, shouldRetry, func() error {
		b, err := c.get(ctx, url)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var ae *attemptError
		if errors.As(err, &ae) && ae.class != "" {
			return nil, &TransportError{URL: url, Class: ae.class, Err: err}
		}
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ExtractionError{Path: "document", Err: err}
	}
	return doc, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &attemptError{err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &attemptError{class: classify(err), err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("[fetch] %s returned HTTP %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &attemptError{class: classRead, err: err}
	}
	return body, nil
}

// classify maps a transport error onto a retry budget.
func classify(err error) string {
	if errors.Is(err, errTooManyRedirects) {
		return classRedirect
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return classConnect
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return classConnect
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return classConnect
	}

	// Timeouts, resets and truncated responses all surface while reading.
	return classRead
}
