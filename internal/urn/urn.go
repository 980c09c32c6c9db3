// Package urn composes and decomposes canonical identifiers for Italian
// acts (urn:nir:stato:...) and EU acts (EUR-Lex ELI URLs).
//
// Grammar for the Italian form:
//
//	urn:nir:stato:TYPE:DATE;NUMBER[:ANNEX][~artN[ext]][@originale|!vig=YYYY-MM-DD]
package urn

import (
	"fmt"
	"regexp"
	"strings"

	"normafetch/internal/norm"
)

// Prefix is the scheme prefix of every Normattiva URN.
const Prefix = "urn:nir:stato:"

// Version values accepted on a reference.
const (
	VersionOriginal = "originale"
	VersionVigente  = "vigente"
)

// Reference is a structured pointer to a legal act, as received from the
// service layer. Immutable once validated.
type Reference struct {
	ActType     string `json:"act_type" validate:"required"`
	Date        string `json:"date,omitempty"`
	ActNumber   string `json:"act_number,omitempty"`
	Article     string `json:"article,omitempty"`
	Annex       string `json:"annex,omitempty"`
	Version     string `json:"version,omitempty" validate:"omitempty,oneof=originale vigente"`
	VersionDate string `json:"version_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// CleanAnnex coalesces the null-ish annex spellings to absent.
func CleanAnnex(annex string) string {
	switch strings.TrimSpace(strings.ToLower(annex)) {
	case "", "null", "undefined", "none":
		return ""
	}
	return strings.TrimSpace(annex)
}

// Built is the output of the builder: the canonical identifier plus the
// facts later stages need (EU dispatch, stripped code default, whether the
// embedded date is the YYYY-01-01 fallback).
type Built struct {
	URN           string
	Token         string
	IsEU          bool
	DefaultAnnex  string // annex the codes map would apply, stripped by the builder
	Approximate   bool   // date came from the YYYY-01-01 fallback
}

// DateCompleter resolves a year-only date to a full YYYY-MM-DD by searching
// the upstream. Implemented by the normattiva date resolver.
type DateCompleter interface {
	CompleteDate(token, year, actNumber string) (string, error)
}

var yearOnly = regexp.MustCompile(`^\d{4}$`)
var fullDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// trailing ":N" annex on a codes-map stem, e.g. "regio.decreto:1942-03-16;262:2".
var stemDefaultAnnex = regexp.MustCompile(`;(\d+):(\d+)$`)

var articlePrefix = regexp.MustCompile(`(?i)^\s*(?:art\.?|articolo)\s*`)

// Build composes the canonical URN for a reference. completer may be nil,
// in which case year-only dates fall straight to YYYY-01-01.
func Build(ref Reference, completer DateCompleter) (Built, error) {
	token := norm.Normalize(ref.ActType)

	if norm.IsTreaty(token) {
		return Built{URN: TreatyURL(token), Token: token, IsEU: true}, nil
	}
	if norm.IsEU(token) {
		u, err := ELIURL(token, ref.Date, ref.ActNumber)
		if err != nil {
			return Built{}, err
		}
		return Built{URN: u, Token: token, IsEU: true}, nil
	}

	out := Built{Token: token}
	var stem string
	// The codes map carries both raw aliases ("c.c.") and canonical tokens
	// ("costituzione"); spellings like "cost." only hit after normalization.
	s, ok := norm.CodiceStem(ref.ActType)
	if !ok {
		s, ok = norm.CodiceStem(token)
	}
	if ok {
		// The stem may embed the code's historical default annex; strip it
		// so callers can request the dispositivo explicitly. The service
		// layer re-injects the default when no annex was given.
		if m := stemDefaultAnnex.FindStringSubmatch(s); m != nil {
			out.DefaultAnnex = m[2]
			s = strings.TrimSuffix(s, ":"+m[2])
		}
		stem = s
	} else {
		date := strings.TrimSpace(ref.Date)
		switch {
		case fullDate.MatchString(date):
			// already complete
		case yearOnly.MatchString(date) && ref.ActNumber != "":
			full := ""
			if completer != nil {
				if d, err := completer.CompleteDate(token, date, ref.ActNumber); err == nil && fullDate.MatchString(d) {
					full = d
				}
			}
			if full == "" {
				full = date + "-01-01"
				out.Approximate = true
			}
			date = full
		case date == "":
			return Built{}, fmt.Errorf("act type %q requires a date", ref.ActType)
		default:
			return Built{}, fmt.Errorf("malformed date %q (want YYYY or YYYY-MM-DD)", ref.Date)
		}
		if ref.ActNumber == "" {
			return Built{}, fmt.Errorf("act type %q requires an act number", ref.ActType)
		}
		stem = fmt.Sprintf("%s:%s;%s", token, date, strings.TrimSpace(ref.ActNumber))
	}

	var b strings.Builder
	b.WriteString(Prefix)
	b.WriteString(stem)

	if annex := CleanAnnex(ref.Annex); annex != "" {
		b.WriteString(":")
		b.WriteString(annex)
	}

	if art := strings.TrimSpace(ref.Article); art != "" {
		base, ext := SplitArticle(art)
		if base == "" {
			return Built{}, fmt.Errorf("malformed article %q", ref.Article)
		}
		b.WriteString("~art")
		b.WriteString(base)
		b.WriteString(ext)
	}

	switch ref.Version {
	case VersionOriginal:
		b.WriteString("@originale")
	case VersionVigente:
		if ref.VersionDate != "" {
			if !fullDate.MatchString(ref.VersionDate) {
				return Built{}, fmt.Errorf("malformed version date %q", ref.VersionDate)
			}
			b.WriteString("!vig=")
			b.WriteString(ref.VersionDate)
		}
	}

	out.URN = b.String()
	return out, nil
}

// SplitArticle separates an article token into its numeric base and Latin
// extension ("2-bis" -> "2", "bis"). Prefixes "art"/"articolo" are dropped.
func SplitArticle(article string) (base, ext string) {
	s := articlePrefix.ReplaceAllString(strings.TrimSpace(article), "")
	base, ext, found := strings.Cut(s, "-")
	base = strings.TrimSpace(base)
	if !found {
		return base, ""
	}
	ext = strings.ToLower(strings.TrimSpace(ext))
	return base, ext
}

// ResolverURL wraps a bare URN in the Normattiva resolution endpoint.
func ResolverURL(u string) string {
	return "https://www.normattiva.it/uri-res/N2Ls?" + u
}

// StripVersion removes any version/original suffix from a URN.
func StripVersion(u string) string {
	if i := strings.IndexAny(u, "@!"); i >= 0 {
		return u[:i]
	}
	return u
}

// WithVigenza returns the URN pinned to the vigente text at the given date,
// replacing any existing version suffix.
func WithVigenza(u, date string) string {
	return StripVersion(u) + "!vig=" + date
}

// WithOriginal returns the URN pinned to the original text.
func WithOriginal(u string) string {
	return StripVersion(u) + "@originale"
}

// SpliceArticle inserts an annex and/or article suffix into a base URN at
// the correct position: after the act stem, replacing any article suffix
// and any existing annex, keeping any version suffix. An empty annex
// leaves the base's own annex in place.
func SpliceArticle(base string, annex, article string) string {
	head := base
	var version string
	if i := strings.IndexAny(head, "@!"); i >= 0 {
		version = head[i:]
		head = head[:i]
	}
	if i := strings.Index(head, "~"); i >= 0 {
		head = head[:i]
	}
	var b strings.Builder
	if annex != "" {
		// The grammar has a single annex slot; drop the one already there.
		head = stemDefaultAnnex.ReplaceAllString(head, ";$1")
		b.WriteString(head)
		b.WriteString(":")
		b.WriteString(annex)
	} else {
		b.WriteString(head)
	}
	if article != "" {
		ab, ae := SplitArticle(article)
		b.WriteString("~art")
		b.WriteString(ab)
		b.WriteString(ae)
	}
	b.WriteString(version)
	return b.String()
}
