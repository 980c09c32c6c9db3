package urn

import (
	"fmt"
	"regexp"
	"strings"
)

// Components is the decomposed form of an Italian-act URN.
type Components struct {
	Token       string
	Date        string
	Number      string
	Annex       string
	ArticleBase string
	ArticleExt  string
	Version     string // "", "originale" or "vigente"
	VersionDate string
}

var urnPattern = regexp.MustCompile(
	`^urn:nir:stato:` +
		`([a-z][a-z.]*)` + // act type token
		`(?::(\d{4}-\d{2}-\d{2});([0-9]+))?` + // date;number
		`(?::(\d+))?` + // annex
		`(?:~art(\d+)([a-z]*))?` + // article
		`(?:(@originale)|!vig=(\d{4}-\d{2}-\d{2}))?$`) // version

// Parse decomposes an Italian-act URN. EU URLs are not URNs and are
// rejected here.
func Parse(u string) (Components, error) {
	m := urnPattern.FindStringSubmatch(strings.TrimSpace(u))
	if m == nil {
		return Components{}, fmt.Errorf("not a well-formed nir urn: %q", u)
	}
	c := Components{
		Token:       m[1],
		Date:        m[2],
		Number:      m[3],
		Annex:       m[4],
		ArticleBase: m[5],
		ArticleExt:  m[6],
		VersionDate: m[8],
	}
	if m[7] != "" {
		c.Version = VersionOriginal
	} else if m[8] != "" {
		c.Version = VersionVigente
	}
	return c, nil
}

// String recomposes the URN. Parse followed by String is the identity on
// well-formed input.
func (c Components) String() string {
	var b strings.Builder
	b.WriteString(Prefix)
	b.WriteString(c.Token)
	if c.Date != "" {
		b.WriteString(":")
		b.WriteString(c.Date)
		b.WriteString(";")
		b.WriteString(c.Number)
	}
	if c.Annex != "" {
		b.WriteString(":")
		b.WriteString(c.Annex)
	}
	if c.ArticleBase != "" {
		b.WriteString("~art")
		b.WriteString(c.ArticleBase)
		b.WriteString(c.ArticleExt)
	}
	switch c.Version {
	case VersionOriginal:
		b.WriteString("@originale")
	case VersionVigente:
		if c.VersionDate != "" {
			b.WriteString("!vig=")
			b.WriteString(c.VersionDate)
		}
	}
	return b.String()
}

// Article returns the article in display form ("2-bis"), or "".
func (c Components) Article() string {
	if c.ArticleBase == "" {
		return ""
	}
	if c.ArticleExt == "" {
		return c.ArticleBase
	}
	return c.ArticleBase + "-" + c.ArticleExt
}
