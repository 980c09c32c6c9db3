package brocardi

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"normafetch/internal/cache"
	"normafetch/internal/fetch"
)

const (
	probeCap      = 10
	probeBatch    = 3
	probeBudget   = 30 * time.Second
	probeInterval = 500 * time.Millisecond
)

// Fetcher is the slice of the fetch client this package needs.
type Fetcher interface {
	Fetch(ctx context.Context, url, tag string) (fetch.Response, error)
}

// Resolver finds the portal URL of a single article inside a section.
type Resolver struct {
	fetcher Fetcher
	disk    *cache.Disk
	log     *zap.Logger
}

// NewResolver wires the resolver. disk may be nil.
func NewResolver(fetcher Fetcher, disk *cache.Disk, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{fetcher: fetcher, disk: disk, log: log}
}

func (r *Resolver) page(ctx context.Context, u string) (string, error) {
	return fetchPage(ctx, r.fetcher, r.disk, r.log, u)
}

// fetchPage fetches a portal page through the persistent cache.
func fetchPage(ctx context.Context, f Fetcher, disk *cache.Disk, log *zap.Logger, u string) (string, error) {
	var body string
	if disk != nil && disk.Get(cache.NamespaceBrocardi, u, &body) {
		return body, nil
	}
	resp, err := f.Fetch(ctx, u, Tag)
	if err != nil {
		return "", err
	}
	if disk != nil {
		if err := disk.Set(cache.NamespaceBrocardi, u, resp.Body); err != nil {
			log.Warn("cache write failed", zap.String("url", u), zap.Error(err))
		}
	}
	return resp.Body, nil
}

// articleHrefPattern matches hrefs pointing at one specific article page.
func articleHrefPattern(article string) *regexp.Regexp {
	slug := strings.ReplaceAll(strings.ToLower(article), "-", "")
	return regexp.MustCompile(`href="([^"]*art` + regexp.QuoteMeta(slug) + `\.html)"`)
}

// ArticleURL locates the page of one article under sectionURL. A covered
// section that simply lacks the article yields ("", nil), not an error.
func (r *Resolver) ArticleURL(ctx context.Context, sectionURL, article string) (string, error) {
	body, err := r.page(ctx, sectionURL)
	if err != nil {
		return "", err
	}
	pattern := articleHrefPattern(article)
	if m := pattern.FindStringSubmatch(body); m != nil {
		return resolveRef(sectionURL, m[1]), nil
	}

	// The section index did not link the article directly; probe its
	// sub-section pages in small batches.
	subs := subsectionLinks(sectionURL, body)
	if len(subs) == 0 {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, probeBudget)
	defer cancel()

	for start := 0; start < len(subs); start += probeBatch {
		end := start + probeBatch
		if end > len(subs) {
			end = len(subs)
		}
		batch := subs[start:end]

		found := make([]string, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, sub := range batch {
			g.Go(func() error {
				page, err := r.page(gctx, sub)
				if err != nil {
					// A failed probe only narrows the search space.
					r.log.Debug("section probe failed", zap.String("url", sub), zap.Error(err))
					return nil
				}
				if m := pattern.FindStringSubmatch(page); m != nil {
					found[i] = resolveRef(sub, m[1])
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return "", err
		}
		for _, u := range found {
			if u != "" {
				return u, nil
			}
		}

		if end < len(subs) {
			select {
			case <-ctx.Done():
				return "", nil
			case <-time.After(probeInterval):
			}
		}
	}
	return "", nil
}

// subsectionLinks collects the anchors inside div.section-title blocks,
// capped to keep the probe bounded.
func subsectionLinks(sectionURL, body string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}
	var links []string
	seen := make(map[string]bool)
	doc.Find("div.section-title a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		u := resolveRef(sectionURL, href)
		if u == "" || seen[u] {
			return true
		}
		seen[u] = true
		links = append(links, u)
		return len(links) < probeCap
	})
	return links
}

// resolveRef makes href absolute against base.
func resolveRef(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	h, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return b.ResolveReference(h).String()
}
