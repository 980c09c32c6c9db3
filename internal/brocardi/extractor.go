package brocardi

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"normafetch/internal/cache"
	"normafetch/internal/fetch"
	"normafetch/internal/model"
)

// contentRoot is the container wrapping the whole commentary body.
const contentRoot = "div.panes-condensed.panes-w-ads.content-ext-guide.content-mark"

// Extractor decodes one article's commentary page into an Enrichment.
type Extractor struct {
	fetcher Fetcher
	disk    *cache.Disk
	log     *zap.Logger
}

// NewExtractor wires the extractor. disk may be nil.
func NewExtractor(fetcher Fetcher, disk *cache.Disk, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{fetcher: fetcher, disk: disk, log: log}
}

// The nine judicial authorities a maxim header can open with.
var maximAuthorities = []string{
	`Corte\s+cost(?:ituzionale)?\.?`,
	`Cass(?:azione)?\.?\s*(?:civ\.|pen\.)?\s*(?:[Ss]ez\.\s*(?:[Uu]n\.|lav\.|[IVXL]+|\d+)\s*,?\s*)?`,
	`Cons(?:iglio)?\.?\s*(?:di\s+)?Stato`,
	`T\.?A\.?R\.?(?:\s+(?:Lazio|Lombardia|Campania|Sicilia|Veneto|Piemonte|Toscana|Puglia|Calabria|Sardegna|Liguria|Abruzzo|Molise|Umbria|Marche|Basilicata|Emilia[- ]Romagna|Friuli[- ]Venezia\s+Giulia|Trentino[- ]Alto\s+Adige|Valle\s+d'Aosta))?`,
	`Corte\s+dei\s+[Cc]onti`,
	`Corte\s+(?:d['i]\s*)?[Aa]pp(?:ello)?\.?(?:\s+\p{Lu}\p{L}+)?`,
	`Trib(?:unale)?\.?(?:\s+\p{Lu}\p{L}+)?`,
	`Corte\s+di\s+[Gg]iustizia(?:\s+(?:UE|CE))?`,
	`Corte\s+EDU`,
}

var maximHeaderPattern = regexp.MustCompile(
	`^\s*(` + strings.Join(maximAuthorities, "|") + `)\s*,?\s*n\.\s*(\d+)\s*/\s*(\d{4})`)

var maximNumberPattern = regexp.MustCompile(`n\.\s*(\d+)\s*/\s*(\d{4})`)

var citedArticlePattern = regexp.MustCompile(`/art(\d+[a-z]*)\.html`)

var footnoteAnchorPattern = regexp.MustCompile(`#nota(\d+)$`)

// FetchEnrichment fetches the article page at articleURL and extracts
// every commentary section. Sections fail independently: a broken one is
// logged and the rest of the record is still returned.
func (e *Extractor) FetchEnrichment(ctx context.Context, articleURL string) (*model.Enrichment, error) {
	body, err := fetchPage(ctx, e.fetcher, e.disk, e.log, articleURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fetch.NewParsingError(body)
	}

	root := doc.Find(contentRoot)
	if root.Length() == 0 {
		root = doc.Selection
	}

	enr := &model.Enrichment{BrocardiURL: articleURL}

	var wg sync.WaitGroup
	run := func(section string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					e.log.Warn("enrichment section failed",
						zap.String("url", articleURL),
						zap.String("section", section),
						zap.Any("cause", rec))
				}
			}()
			fn()
		}()
	}

	run("position", func() { enr.Position = extractPosition(doc) })
	run("brocardi", func() { enr.Brocardi = extractBrocardi(root) })
	run("ratio", func() { enr.Ratio = extractRatio(root) })
	run("spiegazione", func() { enr.Explanation = extractExplanation(root) })
	run("massime", func() { enr.Maxims = extractMaxims(root) })
	run("dizionario", func() { enr.GlossaryEntries = extractGlossary(root) })
	run("relazioni", func() { enr.HistoricalRelations = extractRelations(root) })
	run("footnotes", func() { enr.Footnotes = extractFootnotes(doc) })
	run("related", func() {
		enr.Related.Previous, enr.Related.Next = extractRelated(doc, articleURL)
	})
	wg.Wait()

	enr.CrossReferences = extractCrossReferences(root, articleURL)

	// The AJAX hierarchy endpoint carries the Guardasigilli relations the
	// page itself sometimes omits.
	if len(enr.HistoricalRelations) == 0 {
		if id := objectID(body); id != "" {
			rels, err := e.fetchHierarchy(ctx, id)
			if err != nil {
				e.log.Warn("hierarchy fetch failed", zap.String("url", articleURL), zap.Error(err))
			} else {
				enr.HistoricalRelations = rels
			}
		}
	}
	return enr, nil
}

// extractPosition reads the breadcrumb, dropping the site-name prefix.
func extractPosition(doc *goquery.Document) string {
	text := collapse(doc.Find("#breadcrumb").First().Text())
	text = strings.TrimPrefix(text, "Brocardi.it")
	return strings.TrimLeft(text, " ›>")
}

// extractGlossary collects the legal-dictionary terms the commentary
// links to.
func extractGlossary(root *goquery.Selection) []string {
	var out []string
	seen := make(map[string]bool)
	root.Find(`a[href*="/dizionario/"]`).Each(func(_ int, a *goquery.Selection) {
		term := collapse(a.Text())
		if term == "" || seen[strings.ToLower(term)] {
			return
		}
		seen[strings.ToLower(term)] = true
		out = append(out, term)
	})
	return out
}

func extractBrocardi(root *goquery.Selection) []string {
	var out []string
	root.Find("div.brocardi-content").Each(func(_ int, s *goquery.Selection) {
		if t := collapse(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

func extractRatio(root *goquery.Selection) string {
	return collapse(root.Find("div.container-ratio div.corpoDelTesto").First().Text())
}

// extractExplanation takes the first div.text after the "Spiegazione
// dell'art" heading.
func extractExplanation(root *goquery.Selection) string {
	var out string
	root.Find("h2, h3").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if !strings.Contains(h.Text(), "Spiegazione dell'art") {
			return true
		}
		out = collapse(h.NextAllFiltered("div.text").First().Text())
		return false
	})
	return out
}

// extractMaxims parses each div.sentenza into a structured maxim. Header
// match is three-stage: full authority regex, bare n. NUM/YEAR, raw text.
func extractMaxims(root *goquery.Selection) []model.Maxim {
	var out []model.Maxim
	root.Find("div.sentenza").Each(func(_ int, s *goquery.Selection) {
		full := collapse(s.Text())
		if full == "" {
			return
		}
		header := collapse(s.Find("strong").First().Text())

		if m := maximHeaderPattern.FindStringSubmatch(header); m != nil {
			out = append(out, model.Maxim{
				Authority: collapse(m[1]),
				Number:    m[2],
				Year:      m[3],
				Text:      collapse(strings.Replace(full, header, "", 1)),
			})
			return
		}
		if m := maximNumberPattern.FindStringSubmatchIndex(full); m != nil {
			authority := strings.Trim(collapse(full[:m[0]]), " ,;")
			out = append(out, model.Maxim{
				Authority: authority,
				Number:    full[m[2]:m[3]],
				Year:      full[m[4]:m[5]],
				Text:      collapse(full[m[1]:]),
			})
			return
		}
		out = append(out, model.Maxim{Text: full})
	})
	return out
}

// extractRelations reads the in-page historical relations: the report on
// the constitutional project and the two Guardasigilli variants.
func extractRelations(root *goquery.Selection) []model.HistoricalRelation {
	var out []model.HistoricalRelation
	root.Find("h2, h3").Each(func(_ int, h *goquery.Selection) {
		title := collapse(h.Text())
		var kind string
		switch {
		case strings.Contains(title, "Relazione al Progetto della Costituzione"):
			kind = "relazione-costituzione"
		case strings.Contains(title, "Relazione") && strings.Contains(title, "Libro delle Obbligazioni"):
			kind = "relazione-libro-obbligazioni"
		case strings.Contains(title, "Relazione") && strings.Contains(title, "Codice Civile"):
			kind = "relazione-codice-civile"
		default:
			return
		}

		block := h.NextFilteredUntil("div, p", "h2, h3")
		text := collapse(block.Text())
		if text == "" {
			return
		}
		var cited []string
		seen := make(map[string]bool)
		block.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			if m := citedArticlePattern.FindStringSubmatch(href); m != nil && !seen[m[1]] {
				seen[m[1]] = true
				cited = append(cited, m[1])
			}
		})
		out = append(out, model.HistoricalRelation{
			Kind:          kind,
			Title:         title,
			Text:          text,
			CitedArticles: cited,
		})
	})
	return out
}

// extractFootnotes tries the four footnote layouts the portal has used,
// newest first; the first layout that yields anything wins.
func extractFootnotes(doc *goquery.Document) []model.Footnote {
	collect := func(fn func(add func(num, text string))) []model.Footnote {
		byNum := make(map[string]string)
		fn(func(num, text string) {
			num, text = strings.TrimSpace(num), collapse(text)
			if num == "" || text == "" {
				return
			}
			if _, dup := byNum[num]; !dup {
				byNum[num] = text
			}
		})
		if len(byNum) == 0 {
			return nil
		}
		out := make([]model.Footnote, 0, len(byNum))
		for num, text := range byNum {
			out = append(out, model.Footnote{Number: num, Text: text})
		}
		sortFootnotes(out)
		return out
	}

	// 1. Current layout: a.nota-ref pointing at a named anchor.
	if notes := collect(func(add func(num, text string)) {
		doc.Find("a.nota-ref").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			m := footnoteAnchorPattern.FindStringSubmatch(href)
			if m == nil {
				return
			}
			add(m[1], doc.Find("#nota"+m[1]+", [name='nota"+m[1]+"']").First().Text())
		})
	}); notes != nil {
		return notes
	}

	// 2. Directly rendered note blocks.
	if notes := collect(func(add func(num, text string)) {
		leading := regexp.MustCompile(`^\s*\(?(\d+)\)?\s*`)
		doc.Find("div.corpoDelTesto.nota").Each(func(_ int, d *goquery.Selection) {
			text := d.Text()
			if m := leading.FindStringSubmatch(text); m != nil {
				add(m[1], leading.ReplaceAllString(text, ""))
			}
		})
	}); notes != nil {
		return notes
	}

	// 3. Legacy superscript markers with sibling note divs.
	if notes := collect(func(add func(num, text string)) {
		doc.Find("sup").Each(func(_ int, s *goquery.Selection) {
			num := strings.TrimSpace(s.Text())
			if _, err := strconv.Atoi(num); err != nil {
				return
			}
			add(num, s.NextAllFiltered("div.nota").First().Text())
		})
	}); notes != nil {
		return notes
	}

	// 4. Legacy in-text anchors to #notaN targets.
	return collect(func(add func(num, text string)) {
		doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			m := footnoteAnchorPattern.FindStringSubmatch(href)
			if m == nil || strings.TrimSpace(a.Text()) != m[1] {
				return
			}
			add(m[1], doc.Find("#nota"+m[1]).First().Text())
		})
	})
}

func sortFootnotes(notes []model.Footnote) {
	sort.Slice(notes, func(i, j int) bool {
		a, _ := strconv.Atoi(notes[i].Number)
		b, _ := strconv.Atoi(notes[j].Number)
		return a < b
	})
}

// extractRelated finds the previous/next article navigation anchors.
func extractRelated(doc *goquery.Document, articleURL string) (prev, next *model.RelatedArticle) {
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		label := strings.ToLower(a.Text())
		href, _ := a.Attr("href")
		m := citedArticlePattern.FindStringSubmatch(href)
		if m == nil {
			return
		}
		rel := &model.RelatedArticle{
			Number: m[1],
			URL:    resolveRef(articleURL, href),
			Title:  strings.TrimSpace(a.AttrOr("title", "")),
		}
		switch {
		case strings.Contains(label, "precedente") && prev == nil:
			prev = rel
		case strings.Contains(label, "successivo") && next == nil:
			next = rel
		}
	})
	return prev, next
}

// crossRefActTypes classifies a cited article by its URL path.
var crossRefActTypes = []struct {
	prefix  string
	actType string
}{
	{"/codice-civile/", "codice civile"},
	{"/codice-penale/", "codice penale"},
	{"/codice-di-procedura-civile/", "codice di procedura civile"},
	{"/codice-di-procedura-penale/", "codice di procedura penale"},
	{"/costituzione/", "costituzione"},
	{"/preleggi/", "preleggi"},
}

// extractCrossReferences collects every in-commentary article link,
// tagged with the sub-section it appeared in.
func extractCrossReferences(root *goquery.Selection, articleURL string) []model.CrossReference {
	sections := []struct {
		name string
		sel  string
	}{
		{"brocardi", "div.brocardi-content"},
		{"ratio", "div.container-ratio"},
		{"spiegazione", "div.text"},
		{"massime", "div.sentenza"},
	}

	var out []model.CrossReference
	seen := make(map[string]bool)
	for _, sec := range sections {
		root.Find(sec.sel + " a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			m := citedArticlePattern.FindStringSubmatch(href)
			if m == nil {
				return
			}
			u := resolveRef(articleURL, href)
			if u == "" || seen[u] {
				return
			}
			seen[u] = true
			actType := ""
			for _, c := range crossRefActTypes {
				if strings.Contains(u, c.prefix) {
					actType = c.actType
					break
				}
			}
			out = append(out, model.CrossReference{
				Article: m[1],
				ActType: actType,
				URL:     u,
				Section: sec.name,
			})
		})
	}
	return out
}

var multiSpace = regexp.MustCompile(`\s+`)

func collapse(s string) string {
	return strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))
}
