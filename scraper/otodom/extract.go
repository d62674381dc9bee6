package otodom

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"otodom-scraper/models"
)

const pageStateSelector = "#__NEXT_DATA__"

var (
	listingItemsPath = []any{"props", "pageProps", "data", "searchAds", "items"}
	listingAdPath    = []any{"props", "pageProps", "ad"}
)

// pageState decodes the embedded Next.js JSON blob.
func pageState(doc *goquery.Document) (any, error) {
	sel := doc.Find(pageStateSelector)
	if sel.Length() == 0 {
		return nil, &ExtractionError{Path: pageStateSelector}
	}

	var state any
	if err := json.Unmarshal([]byte(sel.First().Text()), &state); err != nil {
		return nil, &ExtractionError{Path: pageStateSelector, Err: err}
	}
	return state, nil
}

// lookup walks node along path, where string segments index objects and int
// segments index arrays. A null leaf is returned as nil without error.
func lookup(node any, path ...any) (any, error) {
	for i, seg := range path {
		switch key := seg.(type) {
		case string:
			obj, ok := node.(map[string]any)
			if !ok {
				return nil, &ExtractionError{Path: formatPath(path[:i+1]), Err: errors.New("not an object")}
			}
			next, ok := obj[key]
			if !ok {
				return nil, &ExtractionError{Path: formatPath(path[:i+1])}
			}
			node = next
		case int:
			arr, ok := node.([]any)
			if !ok {
				return nil, &ExtractionError{Path: formatPath(path[:i+1]), Err: errors.New("not an array")}
			}
			if key < 0 || key >= len(arr) {
				return nil, &ExtractionError{Path: formatPath(path[:i+1])}
			}
			node = arr[key]
		}
	}
	return node, nil
}

func formatPath(path []any) string {
	var b strings.Builder
	for _, seg := range path {
		switch key := seg.(type) {
		case string:
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(key)
		case int:
			b.WriteString("[" + strconv.Itoa(key) + "]")
		}
	}
	return b.String()
}

// ExtractListingLinks returns the listing references of a search-results
// page in page order. An empty slice means the page had no listings.
func ExtractListingLinks(doc *goquery.Document, resultBaseURL string) ([]models.ListingReference, error) {
	state, err := pageState(doc)
	if err != nil {
		return nil, err
	}
	node, err := lookup(state, listingItemsPath...)
	if err != nil {
		return nil, err
	}
	items, ok := node.([]any)
	if !ok {
		return nil, &ExtractionError{Path: formatPath(listingItemsPath), Err: errors.New("not an array")}
	}

	refs := make([]models.ListingReference, 0, len(items))
	for i := range items {
		slug, err := lookup(items, i, "slug")
		if err != nil {
			return nil, err
		}
		s, ok := slug.(string)
		if !ok {
			return nil, &ExtractionError{Path: fmt.Sprintf("items[%d].slug", i), Err: errors.New("not a string")}
		}
		refs = append(refs, models.ListingReference{URL: resultBaseURL + s})
	}
	return refs, nil
}

// ExtractDetailFields pulls the raw price, size, location and description
// from a listing detail page. Values are not validated here.
func ExtractDetailFields(doc *goquery.Document) (models.RawDetails, error) {
	state, err := pageState(doc)
	if err != nil {
		return models.RawDetails{}, err
	}
	ad, err := lookup(state, listingAdPath...)
	if err != nil {
		return models.RawDetails{}, err
	}

	price, err := priceCharacteristic(ad)
	if err != nil {
		return models.RawDetails{}, err
	}
	size, err := sizeCharacteristic(ad)
	if err != nil {
		return models.RawDetails{}, err
	}
	location, err := lookup(ad, "target", "City")
	if err != nil {
		return models.RawDetails{}, err
	}
	description, err := lookup(ad, "description")
	if err != nil {
		return models.RawDetails{}, err
	}

	return models.RawDetails{
		Price:       price,
		Size:        size,
		Location:    location,
		Description: description,
	}, nil
}

func priceCharacteristic(ad any) (any, error) { return characteristic(ad, 0, "price") }
func sizeCharacteristic(ad any) (any, error)  { return characteristic(ad, 1, "m") }

// characteristic reads the value of characteristics[idx]. When the
// entry carries a key it must match want; a mismatch means the site
// reordered the list.
func characteristic(ad any, idx int, want string) (any, error) {
	entry, err := lookup(ad, "characteristics", idx)
	if err != nil {
		return nil, err
	}
	if key, err := lookup(entry, "key"); err == nil {
		if k, ok := key.(string); ok && k != want {
			return nil, &ExtractionError{
				Path: fmt.Sprintf("characteristics[%d].key", idx),
				Err:  fmt.Errorf("got %q, want %q", k, want),
			}
		}
	}
	return lookup(entry, "value")
}
