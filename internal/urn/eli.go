package urn

import (
	"fmt"
	"strings"

	"normafetch/internal/norm"
)

// ELI type slugs used in the EUR-Lex URI path.
var eliSlugs = map[string]string{
	norm.TokenRegolamentoUE: "reg",
	norm.TokenDirettivaUE:   "dir",
	norm.TokenDecisioneUE:   "dec",
}

const eurLexBase = "https://eur-lex.europa.eu"

// Treaty consolidated texts have fixed CELEX-addressed URLs.
var treatyURLs = map[string]string{
	norm.TokenTUE:   eurLexBase + "/legal-content/IT/TXT/HTML/?uri=CELEX:12016M/TXT",
	norm.TokenTFUE:  eurLexBase + "/legal-content/IT/TXT/HTML/?uri=CELEX:12016E/TXT",
	norm.TokenCDFUE: eurLexBase + "/legal-content/IT/TXT/HTML/?uri=CELEX:12012P/TXT",
}

// TreatyURL returns the fixed URL for a treaty token, or "" if unknown.
func TreatyURL(token string) string {
	return treatyURLs[token]
}

// ELIURL builds the Italian-locale ELI URL for an EU act. Dates are
// truncated to the year prefix; numbers are used unpadded.
func ELIURL(token, date, number string) (string, error) {
	slug, ok := eliSlugs[token]
	if !ok {
		return "", fmt.Errorf("no ELI slug for act kind %q", token)
	}
	year := strings.TrimSpace(date)
	if len(year) > 4 {
		year = year[:4]
	}
	if len(year) != 4 {
		return "", fmt.Errorf("EU act needs a year, got %q", date)
	}
	if strings.TrimSpace(number) == "" {
		return "", fmt.Errorf("EU act needs a number")
	}
	return fmt.Sprintf("%s/eli/%s/%s/%s/oj/ita", eurLexBase, slug, year, strings.TrimSpace(number)), nil
}

// ELIArticleURL addresses a single article within an EU act.
func ELIArticleURL(token, date, number, article string) (string, error) {
	base, err := ELIURL(token, date, number)
	if err != nil {
		return "", err
	}
	base = strings.TrimSuffix(base, "/oj/ita")
	return fmt.Sprintf("%s/art_%s/oj", base, strings.TrimSpace(article)), nil
}
