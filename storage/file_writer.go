package storage

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"otodom-scraper/models"
)

// Output formats understood by FileWriter.
const (
	FormatText  = "text"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

var csvHeader = []string{"url", "price", "size", "location", "description"}

// FileWriter writes estates to a local file, one per line.
// It is safe for concurrent use.
type FileWriter struct {
	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	csv    *csv.Writer
	format string
}

// NewFileWriter creates (or truncates) the file at path. Intermediate
// directories are created automatically. The csv format writes a header row.
func NewFileWriter(path, format string) (*FileWriter, error) {
	switch format {
	case FormatText, FormatJSONL, FormatCSV:
	default:
		return nil, fmt.Errorf("file: unknown format %q", format)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("file: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("file: create %q: %w", path, err)
	}

	fw := &FileWriter{file: f, buf: bufio.NewWriter(f), format: format}
	if format == FormatCSV {
		fw.csv = csv.NewWriter(fw.buf)
		if err := fw.csv.Write(csvHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("file: write header: %w", err)
		}
		if err := fw.flush(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	return fw, nil
}

// Write appends estates and flushes them to disk before returning.
func (fw *FileWriter) Write(estates []*models.Estate) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	var err error
	switch fw.format {
	case FormatText:
		err = writeText(fw.buf, estates)
	case FormatJSONL:
		err = writeJSONL(fw.buf, estates)
	case FormatCSV:
		for _, e := range estates {
			if err = fw.csv.Write(csvRow(e)); err != nil {
				break
			}
		}
	}
	if err != nil {
		return fmt.Errorf("file: write: %w", err)
	}
	return fw.flush()
}

func (fw *FileWriter) flush() error {
	if fw.csv != nil {
		fw.csv.Flush()
		if err := fw.csv.Error(); err != nil {
			return fmt.Errorf("file: flush: %w", err)
		}
	}
	if err := fw.buf.Flush(); err != nil {
		return fmt.Errorf("file: flush: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (fw *FileWriter) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if err := fw.flush(); err != nil {
		_ = fw.file.Close()
		return err
	}
	return fw.file.Close()
}

func writeText(w io.Writer, estates []*models.Estate) error {
	for _, e := range estates {
		if _, err := io.WriteString(w, e.String()+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func writeJSONL(w io.Writer, estates []*models.Estate) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, e := range estates {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func csvRow(e *models.Estate) []string {
	return []string{e.URL, e.Details.Price, e.Details.Size, e.Details.Location, e.Details.Description}
}
