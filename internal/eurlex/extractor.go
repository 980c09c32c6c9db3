// Package eurlex extracts article text and document trees from the
// EUR-Lex portal. The upstream WAF blocks plain HTTP clients, so every
// page is fetched through the shared headless browser.
package eurlex

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"normafetch/internal/cache"
	"normafetch/internal/fetch"
	"normafetch/internal/model"
)

// HTMLFetcher is the slice of the browser pool this package needs.
type HTMLFetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}

// Extractor locates and renders single articles inside EUR-Lex documents.
type Extractor struct {
	fetcher HTMLFetcher
	disk    *cache.Disk
	log     *zap.Logger
}

// NewExtractor wires the extractor. disk may be nil (no persistent cache).
func NewExtractor(fetcher HTMLFetcher, disk *cache.Disk, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{fetcher: fetcher, disk: disk, log: log}
}

// page fetches a rendered EUR-Lex page, going through the persistent
// cache first.
func (e *Extractor) page(ctx context.Context, url string) (string, error) {
	var body string
	if e.disk != nil && e.disk.Get(cache.NamespaceEurlex, url, &body) {
		return body, nil
	}
	body, err := e.fetcher.FetchHTML(ctx, url)
	if err != nil {
		return "", err
	}
	if e.disk != nil {
		if err := e.disk.Set(cache.NamespaceEurlex, url, body); err != nil {
			e.log.Warn("cache write failed", zap.String("url", url), zap.Error(err))
		}
	}
	return body, nil
}

// genericArticleHeader recognizes the start of any article, used to stop
// the sibling walk.
var genericArticleHeader = regexp.MustCompile(`(?i)^(?:articolo|article|art\.)\s+\d`)

// articleHeaderPattern builds the matcher for one specific article
// number. An extension separator matches hyphenated, spaced and fused
// spellings ("2-bis", "2 bis", "2bis").
func articleHeaderPattern(article string) *regexp.Regexp {
	base, ext, found := strings.Cut(article, "-")
	num := regexp.QuoteMeta(strings.TrimSpace(base))
	if found {
		num += `[\s-]*` + regexp.QuoteMeta(strings.TrimSpace(ext))
	}
	return regexp.MustCompile(`(?i)^(?:articolo|article|art\.)\s+` + num + `\b`)
}

// FetchDocument returns the full text of a document (used for treaties
// and whole-act requests).
func (e *Extractor) FetchDocument(ctx context.Context, url string) (*model.ArticleText, error) {
	body, err := e.page(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fetch.NewParsingError(body)
	}
	text := cleanText(doc.Find("body").Text())
	if text == "" {
		return nil, fetch.NewParsingError(body)
	}
	return &model.ArticleText{Text: text, URN: url, Source: model.SourceEurlex}, nil
}

// FetchArticle fetches url and extracts the text of one article.
func (e *Extractor) FetchArticle(ctx context.Context, url, article string) (*model.ArticleText, error) {
	body, err := e.page(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fetch.NewParsingError(body)
	}
	text, err := e.extractArticle(doc, url, article)
	if err != nil {
		return nil, err
	}
	return &model.ArticleText{Text: text, URN: url, Source: model.SourceEurlex}, nil
}

// extractArticle tries the locator strategies in order and renders the
// first hit.
func (e *Extractor) extractArticle(doc *goquery.Document, url, article string) (string, error) {
	header := articleHeaderPattern(article)

	// 1. The canonical markup: p.ti-art headers.
	if sel := findByHeader(doc.Find("p.ti-art"), header); sel != nil {
		return renderFromHeader(sel), nil
	}

	// 2. Any element whose class hints at an article or title block.
	var hit *goquery.Selection
	doc.Find("[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		lc := strings.ToLower(class)
		if !strings.Contains(lc, "art") && !strings.Contains(lc, "title") {
			return true
		}
		if header.MatchString(strings.TrimSpace(s.Text())) {
			hit = s
			return false
		}
		return true
	})
	if hit != nil {
		return renderFromHeader(hit), nil
	}

	// 3. Bare paragraph-level tags.
	if sel := findByHeader(doc.Find("p, div, span, h1, h2, h3, h4, h5, h6"), header); sel != nil {
		return renderFromHeader(sel), nil
	}

	// 4. ELI subdivisions wrapping the whole article.
	var subdivision *goquery.Selection
	doc.Find("div.eli-subdivision").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		found := false
		s.Children().EachWithBreak(func(_ int, c *goquery.Selection) bool {
			if header.MatchString(strings.TrimSpace(c.Text())) {
				found = true
				return false
			}
			return true
		})
		if found {
			subdivision = s
			return false
		}
		return true
	})
	if subdivision != nil {
		return cleanText(renderNode(subdivision)), nil
	}

	e.log.Debug("article not located", zap.String("url", url), zap.String("article", article))
	return "", &fetch.DocumentNotFoundError{URN: fmt.Sprintf("%s (art. %s)", url, article)}
}

// findByHeader returns the first element of sel whose trimmed text opens
// with the wanted article header.
func findByHeader(sel *goquery.Selection, header *regexp.Regexp) *goquery.Selection {
	var hit *goquery.Selection
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if header.MatchString(strings.TrimSpace(s.Text())) {
			hit = s
			return false
		}
		return true
	})
	return hit
}

// renderFromHeader walks the siblings after the article header, stopping
// at the next article.
func renderFromHeader(header *goquery.Selection) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(header.Text()))
	sb.WriteString("\n\n")

	for s := header.Next(); s.Length() > 0; s = s.Next() {
		class, _ := s.Attr("class")
		if strings.Contains(class, "ti-art") {
			break
		}
		if genericArticleHeader.MatchString(strings.TrimSpace(s.Text())) && len(strings.TrimSpace(s.Text())) < 40 {
			break
		}
		sb.WriteString(renderNode(s))
		sb.WriteString("\n")
	}
	return cleanText(sb.String())
}

// renderNode flattens one element to text. Tables come out row-wise with
// space-joined cells.
func renderNode(s *goquery.Selection) string {
	if goquery.NodeName(s) == "table" || s.Find("table").Length() > 0 {
		var rows []string
		s.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			tr.Find("td, th").Each(func(_ int, td *goquery.Selection) {
				if t := strings.TrimSpace(td.Text()); t != "" {
					cells = append(cells, collapseSpace(t))
				}
			})
			if len(cells) > 0 {
				rows = append(rows, strings.Join(cells, " "))
			}
		})
		if len(rows) > 0 {
			return strings.Join(rows, "\n")
		}
	}
	return collapseSpace(s.Text())
}

var multiSpace = regexp.MustCompile(`[ \t\x{00a0}]+`)
var multiNewline = regexp.MustCompile(`\n{3,}`)

func collapseSpace(s string) string {
	return strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))
}

func cleanText(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = collapseSpace(l)
	}
	return strings.TrimSpace(multiNewline.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}
