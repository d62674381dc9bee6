package storage

import "otodom-scraper/models"

// EstateWriter is the interface any storage backend must satisfy. Write may
// be called once with the whole crawl or once per page.
type EstateWriter interface {
	Write(estates []*models.Estate) error
	Close() error
}

// EstateReader is implemented by backends that can read stored estates back.
type EstateReader interface {
	FetchAll() ([]*models.Estate, error)
}
