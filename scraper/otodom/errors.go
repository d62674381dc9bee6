package otodom

import (
	"errors"
	"fmt"

	"otodom-scraper/models"
)

// TransportError is returned by the fetch client once the retry budget for
// a connection, read or redirect failure is spent.
type TransportError struct {
	URL   string
	Class string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %s failure: %v", e.URL, e.Class, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ExtractionError means the page-state blob, or a path inside it, is absent.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("extract %s: missing", e.Path)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// skippable reports whether a listing-level failure should drop only that
// listing instead of aborting the crawl.
func skippable(err error) bool {
	var extractErr *ExtractionError
	var validationErr *models.ValidationError
	return errors.As(err, &extractErr) || errors.As(err, &validationErr)
}
