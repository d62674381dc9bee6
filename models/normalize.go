package models

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// tagRegexp matches any <...> markup, shortest first.
	tagRegexp = regexp.MustCompile(`<.*?>`)

	priceSuffixes = []string{" zł", "\u00a0zł"}
	sizeSuffixes  = []string{" m²", "\u00a0m²"}

	// Agency software footers appended to many descriptions.
	boilerplate = []string{
		"Oferta wysłana z programu dla biur nieruchomości ASARI CRM ()",
		"Oferta pochodzi z serwisu obido",
	}

	lineBreaks = strings.NewReplacer("\n", " ", "\r", "")

	reprEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)
)

// NormalizePrice strips the currency token, e.g. "545 000 zł" -> "545 000".
func NormalizePrice(price string) string {
	return removeAll(price, priceSuffixes)
}

// NormalizeSize strips the area unit token, e.g. "52,70 m²" -> "52,70".
func NormalizeSize(size string) string {
	return removeAll(size, sizeSuffixes)
}

// removeAll deletes every token until none is left, so a removal that
// joins the pieces of another token is handled too.
func removeAll(s string, tokens []string) string {
	for {
		next := s
		for _, t := range tokens {
			next = strings.ReplaceAll(next, t, "")
		}
		if next == s {
			return s
		}
		s = next
	}
}

// NormalizeDescription removes agency boilerplate and markup, flattens line
// breaks and returns the NFKD form of the text. Removal is repeated until
// nothing changes, since stripping a tag can expose a boilerplate phrase and
// NFKD can turn compatibility characters into '<' or '>'.
func NormalizeDescription(description string) string {
	for {
		next := norm.NFKD.String(stripDescription(description))
		if next == description {
			return next
		}
		description = next
	}
}

func stripDescription(s string) string {
	for {
		next := s
		for _, phrase := range boilerplate {
			next = strings.ReplaceAll(next, phrase, "")
		}
		next = lineBreaks.Replace(next)
		next = tagRegexp.ReplaceAllString(next, "")
		if next == s {
			return s
		}
		s = next
	}
}

func quote(s string) string {
	return "'" + reprEscaper.Replace(s) + "'"
}
