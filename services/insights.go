package services

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"otodom-scraper/models"
	"otodom-scraper/utils"
)

type InsightService struct {
	logger *utils.Logger
	out    io.Writer
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger, out: os.Stdout}
}

func (s *InsightService) Generate(estates []*models.Estate) *models.InsightReport {
	report := &models.InsightReport{
		EstatesByLocation: make(map[string]int),
	}

	if len(estates) == 0 {
		return report
	}

	report.TotalEstates = len(estates)

	var totalPrice, totalSize, totalPerSqM float64
	var sized, perSqM int

	for _, e := range estates {
		if e.Details.Location != "" {
			report.EstatesByLocation[e.Details.Location]++
		}

		price, priceOK := ParsePrice(e.Details.Price)
		size, sizeOK := ParseSize(e.Details.Size)

		if priceOK {
			if report.PricedEstates == 0 || price < report.MinPrice {
				report.MinPrice = price
			}
			if report.PricedEstates == 0 || price > report.MaxPrice {
				report.MaxPrice = price
				report.MostExpensive = e
			}
			report.PricedEstates++
			totalPrice += price
		}
		if sizeOK {
			sized++
			totalSize += size
		}
		if priceOK && sizeOK {
			perSqM++
			totalPerSqM += price / size
		}
	}

	if report.PricedEstates > 0 {
		report.AveragePrice = round2(totalPrice / float64(report.PricedEstates))
	}
	if sized > 0 {
		report.AverageSize = round2(totalSize / float64(sized))
	}
	if perSqM > 0 {
		report.AveragePricePerSqM = round2(totalPerSqM / float64(perSqM))
	}

	s.logger.Debug("[insights] %d estates, %d priced, %d sized", report.TotalEstates, report.PricedEstates, sized)
	return report
}

// ParsePrice reads a normalized price such as "545 000". Non-positive,
// non-finite or unparseable values report false.
func ParsePrice(price string) (float64, bool) {
	return parsePositive(strings.Map(dropSpace, price))
}

// ParseSize reads a normalized area such as "52,70" or "52.7".
func ParseSize(size string) (float64, bool) {
	return parsePositive(strings.ReplaceAll(strings.Map(dropSpace, size), ",", "."))
}

func parsePositive(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

func dropSpace(r rune) rune {
	if unicode.IsSpace(r) {
		return -1
	}
	return r
}

func (s *InsightService) Print(r *models.InsightReport) {
	w := s.out
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 OTODOM SCRAPE INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total estates scraped : \033[1m%d\033[0m\n", r.TotalEstates)
	fmt.Fprintf(w, "  With a usable price   : \033[1m%d\033[0m\n", r.PricedEstates)
	fmt.Fprintln(w)

	// Price Stats
	fmt.Fprintf(w, "\033[1;33m  Price Statistics (PLN)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.PricedEstates > 0 {
		fmt.Fprintf(w, "  Average price : \033[1;32m%.2f\033[0m\n", r.AveragePrice)
		fmt.Fprintf(w, "  Minimum price : \033[1;32m%.2f\033[0m\n", r.MinPrice)
		fmt.Fprintf(w, "  Maximum price : \033[1;32m%.2f\033[0m\n", r.MaxPrice)
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	if r.AverageSize > 0 {
		fmt.Fprintf(w, "  Average size  : \033[1;32m%.2f m²\033[0m\n", r.AverageSize)
	}
	if r.AveragePricePerSqM > 0 {
		fmt.Fprintf(w, "  Average / m²  : \033[1;32m%.2f\033[0m\n", r.AveragePricePerSqM)
	}
	fmt.Fprintln(w)

	// Most Expensive
	if r.MostExpensive != nil {
		fmt.Fprintf(w, "\033[1;33m  Most Expensive Estate\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.MostExpensive.URL, 50))
		fmt.Fprintf(w, "  Location : %s\n", r.MostExpensive.Details.Location)
		fmt.Fprintf(w, "  Price    : \033[1;31m%s\033[0m\n", r.MostExpensive.Details.Price)
		fmt.Fprintln(w)
	}

	// Estates by Location
	fmt.Fprintf(w, "\033[1;33m  Estates by Location\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.EstatesByLocation) == 0 {
		fmt.Fprintf(w, "  No location data\n")
	} else {
		type locCount struct {
			loc   string
			count int
		}
		var locs []locCount
		for loc, cnt := range r.EstatesByLocation {
			locs = append(locs, locCount{loc, cnt})
		}
		sort.Slice(locs, func(i, j int) bool {
			if locs[i].count != locs[j].count {
				return locs[i].count > locs[j].count
			}
			return locs[i].loc < locs[j].loc
		})
		for _, lc := range locs {
			bar := strings.Repeat("█", lc.count)
			fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(lc.loc, 28), bar, lc.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
