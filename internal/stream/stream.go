// Package stream fans a multi-article request out over the extractors
// and emits per-article results as newline-delimited JSON, in input
// order, without letting one failed article abort the rest.
package stream

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"normafetch/internal/fetch"
	"normafetch/internal/model"
	"normafetch/internal/service"
	"normafetch/internal/urn"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// emitYield gives the transport a chance to flush between records.
const emitYield = 50 * time.Millisecond

// Request describes one aggregated fetch.
type Request struct {
	Reference         urn.Reference
	Articles          string // comma-separated list, ranges allowed; empty = whole act
	IncludeEnrichment bool
	WithLinks         bool
}

// NormaData identifies the act an item belongs to.
type NormaData struct {
	ActType   string `json:"act_type"`
	Date      string `json:"date,omitempty"`
	ActNumber string `json:"act_number,omitempty"`
	Article   string `json:"article"`
	URN       string `json:"urn,omitempty"`
}

// Item is one emitted record: either a text payload or an error.
type Item struct {
	ArticleText  string            `json:"article_text,omitempty"`
	NormaData    NormaData         `json:"norma_data"`
	URL          string            `json:"url,omitempty"`
	BrocardiInfo *model.Enrichment `json:"brocardi_info,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// Facade is the slice of the service layer the streamer drives.
// *service.Service satisfies it.
type Facade interface {
	ResolveReference(ctx context.Context, ref urn.Reference) (*service.Resolved, error)
	FetchArticleText(ctx context.Context, r *service.Resolved, withLinks bool) (*model.ArticleText, error)
	FetchTree(ctx context.Context, r *service.Resolved, opts model.TreeOptions) (*model.TreeResult, error)
	FetchEnrichment(ctx context.Context, r *service.Resolved) (*model.Enrichment, error)
}

// Streamer drives the fan-out on top of the service facade.
type Streamer struct {
	svc Facade
	log *zap.Logger
}

// NewStreamer wires the streamer.
func NewStreamer(svc Facade, log *zap.Logger) *Streamer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Streamer{svc: svc, log: log}
}

var rangePattern = regexp.MustCompile(`^(\d+)\s*-\s*(\d+)$`)
var singlePattern = regexp.MustCompile(`(?i)^(\d+)(?:\s*-\s*([a-z]+))?$`)

// ExpandArticles materializes an article specification against the
// act's tree. Ranges expand by numeric base and keep extension-bearing
// articles whose base falls inside; an empty spec selects the whole act.
func ExpandArticles(spec string, tree *model.TreeResult) ([]string, error) {
	var treeNumbers []string
	seenTree := make(map[string]bool)
	if tree != nil {
		for _, e := range tree.Entries {
			if e.IsHeader() || seenTree[e.Numero] {
				continue
			}
			seenTree[e.Numero] = true
			treeNumbers = append(treeNumbers, e.Numero)
		}
	}

	spec = strings.TrimSpace(spec)
	if spec == "" {
		return treeNumbers, nil
	}

	var out []string
	seen := make(map[string]bool)
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}

	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		if m := rangePattern.FindStringSubmatch(token); m != nil {
			lo, _ := strconv.Atoi(m[1])
			hi, _ := strconv.Atoi(m[2])
			if lo > hi {
				return nil, &fetch.ValidationError{Field: "articles", Msg: fmt.Sprintf("intervallo invertito: %q", token)}
			}
			for _, n := range treeNumbers {
				if base := articleBase(n); base >= lo && base <= hi {
					add(n)
				}
			}
			continue
		}

		if m := singlePattern.FindStringSubmatch(token); m != nil {
			n := m[1]
			if m[2] != "" {
				n += "-" + strings.ToLower(m[2])
			}
			add(n)
			continue
		}

		return nil, &fetch.ValidationError{Field: "articles", Msg: fmt.Sprintf("specifica articolo non valida: %q", token)}
	}
	return out, nil
}

func articleBase(numero string) int {
	digits := numero
	if i := strings.IndexFunc(numero, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		digits = numero[:i]
	}
	n, _ := strconv.Atoi(digits)
	return n
}

// Stream writes one NDJSON record per concrete article to w, in input
// order. Per-article failures become error records; only a dead context
// or a broken writer aborts the stream.
func (st *Streamer) Stream(ctx context.Context, req Request, w io.Writer) error {
	items, err := st.schedule(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	for i, ch := range items {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item := <-ch:
			if err := enc.Encode(item); err != nil {
				return fmt.Errorf("encode record %d: %w", i, err)
			}
		}
		if i < len(items)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(emitYield):
			}
		}
	}
	return nil
}

// FetchAll runs the same fan-out but collects the records into a slice
// (the single-JSON-array response mode).
func (st *Streamer) FetchAll(ctx context.Context, req Request) ([]Item, error) {
	chans, err := st.schedule(ctx, req)
	if err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(chans))
	for _, ch := range chans {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case item := <-ch:
			out = append(out, item)
		}
	}
	return out, nil
}

// schedule expands the request and launches one fetch per article. The
// returned channels deliver exactly one item each, in input order.
func (st *Streamer) schedule(ctx context.Context, req Request) ([]chan Item, error) {
	baseRef := req.Reference
	baseRef.Article = ""
	base, err := st.svc.ResolveReference(ctx, baseRef)
	if err != nil {
		return nil, err
	}

	tree, err := st.svc.FetchTree(ctx, base, model.TreeOptions{})
	if err != nil {
		return nil, err
	}
	numbers, err := ExpandArticles(req.Articles, tree)
	if err != nil {
		return nil, err
	}
	st.log.Debug("stream scheduled",
		zap.String("urn", base.URN),
		zap.Int("articles", len(numbers)))

	g, gctx := errgroup.WithContext(ctx)
	chans := make([]chan Item, len(numbers))
	for i, numero := range numbers {
		ch := make(chan Item, 1)
		chans[i] = ch
		g.Go(func() error {
			ch <- st.fetchOne(gctx, req, numero)
			return nil
		})
	}
	go func() { _ = g.Wait() }()
	return chans, nil
}

// fetchOne resolves and fetches one article; enrichment (when asked and
// applicable) runs in parallel with the text fetch. Failures collapse
// to an error item.
func (st *Streamer) fetchOne(ctx context.Context, req Request, numero string) Item {
	ref := req.Reference
	ref.Article = numero
	data := NormaData{
		ActType:   ref.ActType,
		Date:      ref.Date,
		ActNumber: ref.ActNumber,
		Article:   numero,
	}

	resolved, err := st.svc.ResolveReference(ctx, ref)
	if err != nil {
		return Item{NormaData: data, Error: err.Error()}
	}
	data.URN = resolved.URN

	var (
		text *model.ArticleText
		enr  *model.Enrichment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		text, err = st.svc.FetchArticleText(gctx, resolved, req.WithLinks)
		return err
	})
	if req.IncludeEnrichment && !resolved.IsEU {
		g.Go(func() error {
			e, err := st.svc.FetchEnrichment(gctx, resolved)
			if err != nil {
				// Partial result: commentary failures never sink the article.
				st.log.Warn("enrichment failed",
					zap.String("urn", resolved.URN),
					zap.Error(err))
				return nil
			}
			enr = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Item{NormaData: data, Error: err.Error()}
	}

	item := Item{
		ArticleText:  text.Text,
		NormaData:    data,
		URL:          urn.ResolverURL(resolved.URN),
		BrocardiInfo: enr,
	}
	if resolved.IsEU {
		item.URL = resolved.URN
	}
	return item
}
