package brocardi

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"normafetch/internal/model"
)

// Relation types of the hierarchy-paragraphs AJAX endpoint.
const (
	relationCivilCode   = 1
	relationObligations = 3
)

var relationKinds = []struct {
	typ   int
	kind  string
	title string
}{
	{relationCivilCode, "relazione-codice-civile", "Relazione al Codice Civile"},
	{relationObligations, "relazione-libro-obbligazioni", "Relazione al Libro delle Obbligazioni"},
}

// The object id sits on the PDF-download button, or embedded in an
// inline hierarchy-paragraphs reference.
var (
	objectIDAttrPattern     = regexp.MustCompile(`data-object-id="(\d+)"`)
	objectIDEmbeddedPattern = regexp.MustCompile(`hierarchy-paragraphs:(\d+):`)
)

// objectID digs the article's internal object id out of the page markup,
// or "" when absent.
func objectID(pageHTML string) string {
	if m := objectIDAttrPattern.FindStringSubmatch(pageHTML); m != nil {
		return m[1]
	}
	if m := objectIDEmbeddedPattern.FindStringSubmatch(pageHTML); m != nil {
		return m[1]
	}
	return ""
}

func hierarchyURL(objectID string, typ int) string {
	return fmt.Sprintf("%s/ws.php?action=articolo:hierarchy-paragraphs:%s:%d", baseURL, objectID, typ)
}

// fetchHierarchy pulls the Guardasigilli relation paragraphs for both
// relation types. A type that returns nothing is simply skipped.
func (e *Extractor) fetchHierarchy(ctx context.Context, objectID string) ([]model.HistoricalRelation, error) {
	var out []model.HistoricalRelation
	for _, rk := range relationKinds {
		body, err := fetchPage(ctx, e.fetcher, e.disk, e.log, hierarchyURL(objectID, rk.typ))
		if err != nil {
			e.log.Debug("hierarchy type unavailable",
				zap.String("object_id", objectID),
				zap.Int("type", rk.typ),
				zap.Error(err))
			continue
		}
		out = append(out, parseHierarchy(body, rk.kind, rk.title)...)
	}
	return out, nil
}

// parseHierarchy splits the endpoint's HTML fragment into numbered
// paragraphs.
func parseHierarchy(fragment, kind, title string) []model.HistoricalRelation {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil
	}
	var out []model.HistoricalRelation
	paragraphs := doc.Find("p")
	if paragraphs.Length() == 0 {
		// Plain-text fragment without markup.
		if text := collapse(doc.Text()); text != "" {
			out = append(out, model.HistoricalRelation{Kind: kind, Title: title, Text: text})
		}
		return out
	}
	n := 0
	paragraphs.Each(func(_ int, p *goquery.Selection) {
		text := collapse(p.Text())
		if text == "" {
			return
		}
		n++
		var cited []string
		seen := make(map[string]bool)
		p.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			if m := citedArticlePattern.FindStringSubmatch(href); m != nil && !seen[m[1]] {
				seen[m[1]] = true
				cited = append(cited, m[1])
			}
		})
		out = append(out, model.HistoricalRelation{
			Kind:          kind,
			Title:         title,
			Paragraph:     strconv.Itoa(n),
			Text:          text,
			CitedArticles: cited,
		})
	})
	return out
}
