package models

import (
	"errors"
	"fmt"
)

// ListingReference points at a single listing detail page.
type ListingReference struct {
	URL string
}

// RawDetails holds the four values exactly as decoded from a listing's
// page-state JSON. A nil value means the JSON held null.
type RawDetails struct {
	Price       any
	Size        any
	Location    any
	Description any
}

// EstateDetails is the normalized, validated form of RawDetails.
type EstateDetails struct {
	Price       string `json:"price"`
	Size        string `json:"size"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// Estate is the persisted unit of output. It is never modified once built.
type Estate struct {
	URL     string        `json:"url"`
	Details EstateDetails `json:"details"`
}

// InsightReport holds the computed analytics over a crawl's estates.
type InsightReport struct {
	TotalEstates       int
	PricedEstates      int
	AveragePrice       float64
	MinPrice           float64
	MaxPrice           float64
	AverageSize        float64
	AveragePricePerSqM float64
	MostExpensive      *Estate
	EstatesByLocation  map[string]int
}

type ValidationKind int

const (
	// KindInvalidField: the value is absent or not a string.
	KindInvalidField ValidationKind = iota
	// KindRequired: a required primitive field is absent.
	KindRequired
)

// ErrMissingLocation matches (via errors.Is) the validation error raised
// when an estate has no location.
var ErrMissingLocation = errors.New("location is required")

// ValidationError names the field that failed construction.
type ValidationError struct {
	Field string
	Kind  ValidationKind
}

func (e *ValidationError) Error() string {
	if e.Kind == KindRequired {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("%s value not provided or not string", e.Field)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrMissingLocation && e.Kind == KindRequired && e.Field == "location"
}

// NewEstateDetails validates raw and applies the field normalization rules.
// Every field must be present and a string; an explicitly empty string is
// accepted as a value.
func NewEstateDetails(raw RawDetails) (EstateDetails, error) {
	price, ok := raw.Price.(string)
	if !ok {
		return EstateDetails{}, &ValidationError{Field: "price", Kind: KindInvalidField}
	}
	size, ok := raw.Size.(string)
	if !ok {
		return EstateDetails{}, &ValidationError{Field: "size", Kind: KindInvalidField}
	}
	location, ok := raw.Location.(string)
	if !ok {
		return EstateDetails{}, &ValidationError{Field: "location", Kind: KindRequired}
	}
	description, ok := raw.Description.(string)
	if !ok {
		return EstateDetails{}, &ValidationError{Field: "description", Kind: KindInvalidField}
	}

	return EstateDetails{
		Price:       NormalizePrice(price),
		Size:        NormalizeSize(size),
		Location:    location,
		Description: NormalizeDescription(description),
	}, nil
}

// NewEstate pairs a listing URL with its details.
func NewEstate(url string, details EstateDetails) (*Estate, error) {
	if url == "" {
		return nil, &ValidationError{Field: "url", Kind: KindRequired}
	}
	return &Estate{URL: url, Details: details}, nil
}

func (d EstateDetails) String() string {
	return fmt.Sprintf("EstateDetails(price=%s size=%s location=%s description=%s)",
		quote(d.Price), quote(d.Size), quote(d.Location), quote(d.Description))
}

// String renders the estate on a single line.
func (e *Estate) String() string {
	return fmt.Sprintf("url=%s details=%s", quote(e.URL), e.Details)
}
