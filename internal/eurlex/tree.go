package eurlex

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"normafetch/internal/cache"
	"normafetch/internal/fetch"
	"normafetch/internal/model"
	"normafetch/internal/norm"
)

// sectionHeaderPattern keeps only the structural headings EU acts use.
var sectionHeaderPattern = regexp.MustCompile(`(?i)^(TITOLO|CAPO|SEZIONE|TITLE|CHAPTER|SECTION)\b`)

// treeArticlePattern pulls the number (and optional Latin extension) out
// of an article heading.
var treeArticlePattern = regexp.MustCompile(`(?i)^(?:articolo|article|art\.)\s+(\d+)(?:\s*[- ]\s*([a-z]+))?`)

// TreeExtractor enumerates the articles of an EU act from its document
// markup.
type TreeExtractor struct {
	ex  *Extractor
	mem *cache.Memory
	log *zap.Logger
}

// NewTreeExtractor wires the tree extractor on top of an article
// extractor (they share the fetch path and persistent cache).
func NewTreeExtractor(ex *Extractor, log *zap.Logger) *TreeExtractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &TreeExtractor{
		ex:  ex,
		mem: cache.NewMemory(256, time.Hour),
		log: log,
	}
}

// FetchTree enumerates the act's articles in document order, deduplicated
// by number. EU acts have no Normattiva-style annex segmentation; every
// article lands in the dispositivo bucket.
func (t *TreeExtractor) FetchTree(ctx context.Context, url string, opts model.TreeOptions) (*model.TreeResult, error) {
	key := fmt.Sprintf("%s|%t|%t|%t", url, opts.WithLinks, opts.WithDetails, opts.WithMetadata)

	if v, ok := t.mem.Get(key); ok {
		return v.(*model.TreeResult), nil
	}
	var cached model.TreeResult
	if t.ex.disk != nil && t.ex.disk.Get(cache.NamespaceTree, key, &cached) {
		t.mem.Set(key, &cached)
		return &cached, nil
	}

	body, err := t.ex.page(ctx, url)
	if err != nil {
		return nil, err
	}
	result, err := t.parse(body, url, opts)
	if err != nil {
		return nil, err
	}

	t.mem.Set(key, result)
	if t.ex.disk != nil {
		if err := t.ex.disk.Set(cache.NamespaceTree, key, result); err != nil {
			t.log.Warn("tree cache write failed", zap.String("url", url), zap.Error(err))
		}
	}
	return result, nil
}

func (t *TreeExtractor) parse(pageHTML, baseURL string, opts model.TreeOptions) (*model.TreeResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fetch.NewParsingError(pageHTML)
	}

	structural := doc.Find("[class*='ti-section'], [class*='ti-art']")
	var entries []model.TreeEntry
	seen := make(map[string]bool)
	var numbers []string

	record := func(heading string, isSection bool) {
		heading = collapseSpace(heading)
		if isSection {
			if opts.WithDetails && sectionHeaderPattern.MatchString(heading) {
				entries = append(entries, model.TreeEntry{Header: heading})
			}
			return
		}
		numero := articleNumber(heading)
		if numero == "" || seen[numero] {
			return
		}
		seen[numero] = true
		entry := model.TreeEntry{Numero: numero}
		if opts.WithLinks {
			entry.URL = ArticleURL(baseURL, numero)
		}
		entries = append(entries, entry)
		numbers = append(numbers, numero)
	}

	if structural.Length() > 0 {
		structural.Each(func(_ int, s *goquery.Selection) {
			class, _ := s.Attr("class")
			record(s.Text(), strings.Contains(class, "ti-section"))
		})
	} else {
		// No structural classes at all: scan every paragraph-level tag
		// for article headings.
		doc.Find("p, div, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
			text := collapseSpace(s.Text())
			if sectionHeaderPattern.MatchString(text) && len(text) < 80 {
				record(text, true)
				return
			}
			if treeArticlePattern.MatchString(text) {
				record(text, false)
			}
		})
	}

	result := &model.TreeResult{Entries: entries, Count: len(numbers)}
	if opts.WithMetadata {
		result.Metadata = &model.TreeMetadata{Annexes: map[string]model.TreeAnnex{
			"Dispositivo": {Label: "Dispositivo", ArticleCount: len(numbers), ArticleNumbers: numbers},
		}}
	}
	return result, nil
}

// articleNumber extracts "7" or "7-bis" from an article heading, keeping
// only recognized Latin extensions.
func articleNumber(heading string) string {
	m := treeArticlePattern.FindStringSubmatch(heading)
	if m == nil {
		return ""
	}
	ext := strings.ToLower(m[2])
	if ext != "" && norm.IsExtension(ext) {
		return m[1] + "-" + ext
	}
	return m[1]
}

// ArticleURL addresses one article of the act at baseURL. ELI-shaped
// URLs get the /art_N/oj segment; anything else falls back to a fragment.
func ArticleURL(baseURL, numero string) string {
	slug := strings.ReplaceAll(numero, "-", "")
	if strings.Contains(baseURL, "/eli/") {
		trimmed := strings.TrimSuffix(strings.TrimSuffix(baseURL, "/ita"), "/oj")
		return fmt.Sprintf("%s/art_%s/oj", trimmed, slug)
	}
	return baseURL + "#art_" + slug
}
