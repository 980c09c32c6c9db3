package normattiva

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"normafetch/internal/cache"
	"normafetch/internal/fetch"
	"normafetch/internal/model"
	"normafetch/internal/urn"
)

const dispositivoKey = "Dispositivo"

// TreeExtractor walks the act's navigation tree (div#albero) with a
// stateful pass that segments the dispositivo from its annexes.
type TreeExtractor struct {
	fetcher Fetcher
	disk    *cache.Disk
	mem     *cache.Memory
	log     *zap.Logger
}

// NewTreeExtractor wires the tree extractor. Memory results live 1 hour,
// persistent ones for the disk cache's TTL.
func NewTreeExtractor(fetcher Fetcher, disk *cache.Disk, log *zap.Logger) *TreeExtractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &TreeExtractor{
		fetcher: fetcher,
		disk:    disk,
		mem:     cache.NewMemory(256, time.Hour),
		log:     log,
	}
}

var allegatoNumberPattern = regexp.MustCompile(`(?i)allegato\s+([0-9]+|[a-z])\b`)

var romanArticlePattern = regexp.MustCompile(`^[IVXLCDM]+`)

// FetchTree enumerates the articles of the act identified by u, in DOM
// order, deduplicated by (number, annex).
func (t *TreeExtractor) FetchTree(ctx context.Context, u string, opts model.TreeOptions) (*model.TreeResult, error) {
	base := urn.StripVersion(u)
	if i := strings.Index(base, "~"); i >= 0 {
		base = base[:i]
	}
	key := fmt.Sprintf("%s|%t|%t|%t", base, opts.WithLinks, opts.WithDetails, opts.WithMetadata)

	if v, ok := t.mem.Get(key); ok {
		return v.(*model.TreeResult), nil
	}
	var cached model.TreeResult
	if t.disk != nil && t.disk.Get(cache.NamespaceTree, key, &cached) {
		t.mem.Set(key, &cached)
		return &cached, nil
	}

	resp, err := t.fetcher.Fetch(ctx, urn.ResolverURL(base), Tag)
	if err != nil {
		return nil, err
	}
	result, err := t.parse(resp.Body, base, opts)
	if err != nil {
		return nil, err
	}

	t.mem.Set(key, result)
	if t.disk != nil {
		if err := t.disk.Set(cache.NamespaceTree, key, result); err != nil {
			t.log.Warn("tree cache write failed", zap.String("urn", base), zap.Error(err))
		}
	}
	return result, nil
}

// parse runs the automaton over the tree markup. State: the current
// attachment (nil = dispositivo), a monotonically increasing annex
// counter, and the in-allegati-section flag flipped by the box_articoli
// marker.
func (t *TreeExtractor) parse(pageHTML, baseURN string, opts model.TreeOptions) (*model.TreeResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fetch.NewParsingError(pageHTML)
	}
	tree := doc.Find("div#albero")
	if tree.Length() == 0 {
		return nil, fetch.NewParsingError(pageHTML)
	}

	var (
		entries           []model.TreeEntry
		currentAttachment *int
		annexCounter      int
		inAllegati        bool
		seen              = make(map[string]bool)
		labels            = map[string]*model.TreeAnnex{}
		labelOf           = func(annex *int) string {
			if annex == nil {
				return dispositivoKey
			}
			return strconv.Itoa(*annex)
		}
	)

	setAttachment := func(n int, label string) {
		v := n
		currentAttachment = &v
		key := strconv.Itoa(n)
		if _, ok := labels[key]; !ok {
			labels[key] = &model.TreeAnnex{Label: label}
		} else if label != "" && labels[key].Label == "" {
			labels[key].Label = label
		}
	}

	tree.Find("li, a.link_allegato, a.numero_articolo").Each(func(_ int, sel *goquery.Selection) {
		node := goquery.NodeName(sel)
		class, _ := sel.Attr("class")

		if node == "li" {
			switch {
			case strings.Contains(class, "box_articoli"):
				if strings.Contains(strings.ToLower(sel.Text()), "allegat") {
					inAllegati = true
				}
			case strings.Contains(class, "box_allegati_small"):
				annexCounter++
				setAttachment(annexCounter, strings.TrimSpace(sel.Find("span").First().Text()))
			case strings.Contains(class, "box_allegati"):
				if inAllegati {
					annexCounter++
					setAttachment(annexCounter, strings.TrimSpace(sel.Find("span").First().Text()))
				}
			case strings.Contains(class, "singolo_risultato_collapse"):
				if opts.WithDetails {
					if header := CleanText(sel.Text()); header != "" {
						entries = append(entries, model.TreeEntry{Header: header})
					}
				}
			}
			return
		}

		if strings.Contains(class, "link_allegato") {
			if m := allegatoNumberPattern.FindStringSubmatch(sel.Text()); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil {
					setAttachment(n, strings.TrimSpace(sel.Text()))
				} else {
					// Letter-named annex: A -> 1, B -> 2, ...
					c := strings.ToUpper(m[1])[0]
					setAttachment(int(c-'A')+1, strings.TrimSpace(sel.Text()))
				}
			}
			return
		}

		// a.numero_articolo
		numero := cleanArticleNumber(sel.Text())
		if numero == "" {
			return
		}
		dedupeKey := labelOf(currentAttachment) + "|" + numero
		if seen[dedupeKey] {
			return
		}
		seen[dedupeKey] = true

		entry := model.TreeEntry{Numero: numero, Allegato: copyInt(currentAttachment)}
		if opts.WithLinks {
			annexStr := ""
			if currentAttachment != nil {
				annexStr = strconv.Itoa(*currentAttachment)
			}
			entry.URL = urn.ResolverURL(urn.SpliceArticle(baseURN, annexStr, numero))
		}
		entries = append(entries, entry)

		if currentAttachment == nil {
			if _, ok := labels[dispositivoKey]; !ok {
				labels[dispositivoKey] = &model.TreeAnnex{Label: dispositivoKey}
			}
		}
		annex := labels[labelOf(currentAttachment)]
		annex.ArticleCount++
		annex.ArticleNumbers = append(annex.ArticleNumbers, numero)
	})

	result := &model.TreeResult{Entries: entries}
	for _, e := range entries {
		if !e.IsHeader() {
			result.Count++
		}
	}
	if opts.WithMetadata {
		md := &model.TreeMetadata{Annexes: make(map[string]model.TreeAnnex, len(labels))}
		for k, v := range labels {
			md.Annexes[k] = *v
		}
		result.Metadata = md
	}
	return result, nil
}

// cleanArticleNumber strips the "art." prefix and trailing dot, rejecting
// anything that is neither digit-led nor a Roman numeral.
func cleanArticleNumber(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(strings.ToLower(s), "art.")
	s = strings.TrimPrefix(s, "art ")
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if s[0] >= '0' && s[0] <= '9' {
		return s
	}
	if romanArticlePattern.MatchString(strings.ToUpper(s)) {
		return strings.ToUpper(s)
	}
	return ""
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
