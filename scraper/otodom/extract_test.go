package otodom

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const testResultBase = "https://www.otodom.pl/pl/oferta/"

func loadFixture(t *testing.T, name string) *goquery.Document {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

// stateDoc wraps a JSON page-state blob in a minimal HTML page.
func stateDoc(t *testing.T, state string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(statePage(state)))
	if err != nil {
		t.Fatalf("parse document: %v", err)
	}
	return doc
}

func statePage(state string) string {
	return `<html><body><script id="__NEXT_DATA__" type="application/json">` + state + `</script></body></html>`
}

func TestExtractListingLinks(t *testing.T) {
	refs, err := ExtractListingLinks(loadFixture(t, "search_page.html"), testResultBase)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		testResultBase + "mieszkanie-gdansk-oliwa-ID1",
		testResultBase + "mieszkanie-gdansk-zaspa-ID2",
		testResultBase + "kawalerka-gdansk-wrzeszcz-ID3",
	}
	if len(refs) != len(want) {
		t.Fatalf("got %d links, want %d", len(refs), len(want))
	}
	for i, ref := range refs {
		if ref.URL != want[i] {
			t.Errorf("link %d: got %q, want %q", i, ref.URL, want[i])
		}
	}
}

func TestExtractListingLinksEmptyPage(t *testing.T) {
	refs, err := ExtractListingLinks(loadFixture(t, "empty_search_page.html"), testResultBase)
	if err != nil {
		t.Fatalf("empty item list is not an error: %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("expected no links, got %d", len(refs))
	}
}

func TestExtractListingLinksErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  func(t *testing.T) *goquery.Document
		path string
	}{
		{"no page state", func(t *testing.T) *goquery.Document { return loadFixture(t, "no_state_page.html") }, pageStateSelector},
		{"broken json", func(t *testing.T) *goquery.Document { return stateDoc(t, `{"props":`) }, pageStateSelector},
		{"missing searchAds", func(t *testing.T) *goquery.Document { return stateDoc(t, `{"props":{"pageProps":{"data":{}}}}`) }, "props.pageProps.data.searchAds"},
		{"item without slug", func(t *testing.T) *goquery.Document {
			return stateDoc(t, `{"props":{"pageProps":{"data":{"searchAds":{"items":[{"id":1}]}}}}}`)
		}, "[0].slug"},
	}

	for _, tt := range tests {
		_, err := ExtractListingLinks(tt.doc(t), testResultBase)
		var extractErr *ExtractionError
		if !errors.As(err, &extractErr) {
			t.Errorf("%s: expected ExtractionError, got %v", tt.name, err)
			continue
		}
		if extractErr.Path != tt.path {
			t.Errorf("%s: path %q, want %q", tt.name, extractErr.Path, tt.path)
		}
	}
}

func TestExtractDetailFields(t *testing.T) {
	raw, err := ExtractDetailFields(loadFixture(t, "listing_page.html"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if raw.Price != "545000" {
		t.Errorf("Price: got %v, want 545000", raw.Price)
	}
	if raw.Size != "52.7" {
		t.Errorf("Size: got %v, want 52.7", raw.Size)
	}
	if raw.Location != "gdansk" {
		t.Errorf("Location: got %v, want gdansk", raw.Location)
	}
	if want := "<p>Jasne mieszkanie</p>\r\n<p>Oferta pochodzi z serwisu obido</p>"; raw.Description != want {
		t.Errorf("Description should be raw, got %q", raw.Description)
	}
}

func TestExtractDetailFieldsIsPositional(t *testing.T) {
	doc := stateDoc(t, `{"props":{"pageProps":{"ad":{
		"description":"d","target":{"City":"c"},
		"characteristics":[{"value":"1"},{"value":"2"},{"value":"3"}]}}}}`)

	raw, err := ExtractDetailFields(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw.Price != "1" || raw.Size != "2" {
		t.Errorf("got price %v size %v, want 1 and 2", raw.Price, raw.Size)
	}
}

func TestExtractDetailFieldsNullLeafIsNotAnExtractionError(t *testing.T) {
	doc := stateDoc(t, `{"props":{"pageProps":{"ad":{
		"description":null,"target":{"City":null},
		"characteristics":[{"value":"1"},{"value":"2"}]}}}}`)

	raw, err := ExtractDetailFields(doc)
	if err != nil {
		t.Fatalf("null values are left to validation: %v", err)
	}
	if raw.Location != nil || raw.Description != nil {
		t.Errorf("expected nil location and description, got %v and %v", raw.Location, raw.Description)
	}
}

func TestExtractDetailFieldsErrors(t *testing.T) {
	tests := []struct {
		name  string
		state string
		path  string
	}{
		{"no ad", `{"props":{"pageProps":{}}}`, "props.pageProps.ad"},
		{"one characteristic", `{"props":{"pageProps":{"ad":{"description":"d","target":{"City":"c"},"characteristics":[{"value":"1"}]}}}}`, "characteristics[1]"},
		{"no target", `{"props":{"pageProps":{"ad":{"description":"d","characteristics":[{"value":"1"},{"value":"2"}]}}}}`, "target"},
		{"no description", `{"props":{"pageProps":{"ad":{"target":{"City":"c"},"characteristics":[{"value":"1"},{"value":"2"}]}}}}`, "description"},
		{"swapped keys", `{"props":{"pageProps":{"ad":{"description":"d","target":{"City":"c"},"characteristics":[{"key":"m","value":"52"},{"key":"price","value":"1"}]}}}}`, "characteristics[0].key"},
	}

	for _, tt := range tests {
		_, err := ExtractDetailFields(stateDoc(t, tt.state))
		var extractErr *ExtractionError
		if !errors.As(err, &extractErr) {
			t.Errorf("%s: expected ExtractionError, got %v", tt.name, err)
			continue
		}
		if extractErr.Path != tt.path {
			t.Errorf("%s: path %q, want %q", tt.name, extractErr.Path, tt.path)
		}
	}
}
