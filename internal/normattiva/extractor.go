package normattiva

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"normafetch/internal/cache"
	"normafetch/internal/fetch"
	"normafetch/internal/model"
	"normafetch/internal/urn"
)

// Tag is the upstream tag this package uses with the fetch layer.
const Tag = "normattiva"

const abrogatedPlaceholder = "[Articolo senza contenuto o abrogato]"

// sessionExpired is the marker Normattiva serves when its session cookie
// has lapsed; the page is syntactically valid HTML but carries no act.
const sessionExpired = "Sessione Scaduta"

// Fetcher is the slice of the fetch client the extractor needs.
type Fetcher interface {
	Fetch(ctx context.Context, url, tag string) (fetch.Response, error)
}

// Extractor decodes Normattiva article pages. The same instance is shared
// by the amendment parser and the tree extractor.
type Extractor struct {
	fetcher Fetcher
	disk    *cache.Disk
	log     *zap.Logger
}

// NewExtractor wires the extractor. disk may be nil (no persistent cache).
func NewExtractor(fetcher Fetcher, disk *cache.Disk, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{fetcher: fetcher, disk: disk, log: log}
}

// page fetches the rendered page for a URN, going through the persistent
// cache first.
func (e *Extractor) page(ctx context.Context, u string) (string, error) {
	var body string
	if e.disk != nil && e.disk.Get(cache.NamespaceNormattiva, u, &body) {
		return body, nil
	}
	resp, err := e.fetcher.Fetch(ctx, urn.ResolverURL(u), Tag)
	if err != nil {
		return "", err
	}
	if strings.Contains(resp.Body, sessionExpired) {
		// One fresh attempt: the expired session is server-side state,
		// not a property of the URN.
		e.log.Warn("normattiva session expired, refetching", zap.String("urn", u))
		resp, err = e.fetcher.Fetch(ctx, urn.ResolverURL(u), Tag)
		if err != nil {
			return "", err
		}
	}
	if e.disk != nil {
		if err := e.disk.Set(cache.NamespaceNormattiva, u, resp.Body); err != nil {
			e.log.Warn("cache write failed", zap.String("urn", u), zap.Error(err))
		}
	}
	return resp.Body, nil
}

// FetchArticle resolves a URN and extracts the requested article text.
// withLinks additionally collects the anchor-text -> href map.
func (e *Extractor) FetchArticle(ctx context.Context, u string, withLinks bool) (*model.ArticleText, error) {
	body, err := e.page(ctx, u)
	if err != nil {
		return nil, err
	}
	return e.Extract(body, u, withLinks)
}

// FetchVersionAt fetches the text in force at the given date.
func (e *Extractor) FetchVersionAt(ctx context.Context, u, date string) (*model.ArticleText, error) {
	return e.FetchArticle(ctx, urn.WithVigenza(u, date), false)
}

// FetchOriginal fetches the text as originally enacted.
func (e *Extractor) FetchOriginal(ctx context.Context, u string) (*model.ArticleText, error) {
	return e.FetchArticle(ctx, urn.WithOriginal(u), false)
}

// Extract runs the layout state machine over a fetched page. Four
// scenarios, keyed on the CSS classes present inside div.bodyTesto:
// detailed AKN commas, simple AKN span, attachment span, and a recursive
// fallback over everything visible.
func (e *Extractor) Extract(pageHTML, u string, withLinks bool) (*model.ArticleText, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fetch.NewParsingError(pageHTML)
	}

	body := doc.Find("div.bodyTesto")
	if body.Length() == 0 {
		return nil, fetch.NewParsingError(pageHTML)
	}

	var linkMap map[string]string
	if withLinks {
		linkMap = make(map[string]string)
	}

	var text string
	switch {
	case body.Find(".art-comma-div-akn").Length() > 0:
		text = e.extractDetailed(body, linkMap)
	case body.Find(".art-just-text-akn").Length() > 0:
		text = e.extractSimple(body, linkMap)
	case body.Find(".attachment-just-text").Length() > 0:
		text = e.extractAttachment(body, linkMap)
	default:
		text = ExtractText(body.Nodes, linkMap)
		if text == "" {
			text = abrogatedPlaceholder
		}
	}

	return &model.ArticleText{
		Text:    text,
		URN:     u,
		LinkMap: linkMap,
		Source:  model.SourceNormattiva,
	}, nil
}

// extractDetailed handles the comma-structured AKN layout.
func (e *Extractor) extractDetailed(body *goquery.Selection, linkMap map[string]string) string {
	var sb strings.Builder
	writeHeading(&sb, body)
	body.Find(".art-comma-div-akn").Each(func(_ int, comma *goquery.Selection) {
		sb.WriteString(ExtractText(comma.Nodes, linkMap))
		sb.WriteString("\n\n")
	})
	return CleanText(sb.String())
}

// extractSimple handles the single-span AKN layout.
func (e *Extractor) extractSimple(body *goquery.Selection, linkMap map[string]string) string {
	var sb strings.Builder
	writeHeading(&sb, body)
	sb.WriteString(ExtractText(body.Find("span.art-just-text-akn").Nodes, linkMap))
	return CleanText(sb.String())
}

// extractAttachment handles attachment pages, appending any update blocks.
func (e *Extractor) extractAttachment(body *goquery.Selection, linkMap map[string]string) string {
	var sb strings.Builder
	sb.WriteString(ExtractText(body.Find(".attachment-just-text").Nodes, linkMap))
	body.Find("div.art_aggiornamento-akn").Each(func(_ int, agg *goquery.Selection) {
		sb.WriteString("\n\n")
		sb.WriteString(ExtractText(agg.Nodes, linkMap))
	})
	return CleanText(sb.String())
}

func writeHeading(sb *strings.Builder, body *goquery.Selection) {
	if num := strings.TrimSpace(body.Find("h2.article-num-akn").First().Text()); num != "" {
		sb.WriteString(num)
		sb.WriteString("\n")
	}
	if title := strings.TrimSpace(body.Find("div.article-heading-akn").First().Text()); title != "" {
		sb.WriteString(fmt.Sprintf("(%s)\n", strings.Trim(title, "()")))
	}
	sb.WriteString("\n")
}
