package otodom

import (
	"strconv"
	"strings"

	"otodom-scraper/config"
)

// SearchURL builds the search-results URL for a page. Segment order matters
// to the site's router and must not change.
func SearchURL(cfg *config.Config, page int) string {
	var b strings.Builder
	b.WriteString(cfg.SearchBaseURL)
	b.WriteString(cfg.OfferingType + "/")
	b.WriteString(cfg.EstateType + "/")
	b.WriteString(cfg.City + "/")
	b.WriteString(cfg.District + "?")
	b.WriteString(cfg.Radius + "=" + cfg.RadiusValue + "&")
	b.WriteString(cfg.Pagination + "=" + strconv.Itoa(page) + "&")
	b.WriteString("limit=" + cfg.MaxListingLinks + "&")
	b.WriteString(cfg.PriceMin + "=" + cfg.PriceMinValue + "&")
	b.WriteString(cfg.PriceMax + "=" + cfg.PriceMaxValue + "&")
	b.WriteString(cfg.AreaMin + "=" + cfg.AreaMinValue + "&")
	b.WriteString(cfg.AreaMax + "=" + cfg.AreaMaxValue + "&")
	b.WriteString(cfg.SuffixURL)
	return b.String()
}
