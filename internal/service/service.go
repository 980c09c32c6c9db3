// Package service is the facade over the resolver, the extractors and
// the enrichment pipeline. The CLI and the streamer only ever talk to
// this package.
package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"normafetch/internal/brocardi"
	"normafetch/internal/browser"
	"normafetch/internal/cache"
	"normafetch/internal/config"
	"normafetch/internal/eurlex"
	"normafetch/internal/fetch"
	"normafetch/internal/llmparse"
	"normafetch/internal/model"
	"normafetch/internal/normattiva"
	"normafetch/internal/urn"
)

// Resolved is a validated reference plus its canonical identifier.
type Resolved struct {
	Reference   urn.Reference `json:"reference"`
	URN         string        `json:"urn"`
	IsEU        bool          `json:"is_eu"`
	Approximate bool          `json:"approximate,omitempty"`
}

// Service wires every component behind the public operations.
type Service struct {
	cfg config.Config
	log *zap.Logger

	validate *validator.Validate
	client   *fetch.Client
	disk     *cache.Disk
	pool     *browser.Pool

	articles  *normattiva.Extractor
	actTree   *normattiva.TreeExtractor
	euArts    *eurlex.Extractor
	euTree    *eurlex.TreeExtractor
	commentRe *brocardi.Resolver
	commentEx *brocardi.Extractor

	dates urn.DateCompleter
	llm   normattiva.DestinationResolver

	refs *cache.Memory // reference key -> *Resolved
}

// New builds the service from configuration. The LLM fallback is wired
// only when an API key is configured.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}

	disk, err := cache.NewDisk(cfg.CacheDir, cfg.PersistentCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("open persistent cache: %w", err)
	}

	client := fetch.NewClient(fetch.Options{
		MaxConcurrency: cfg.HTTPMaxConcurrency,
		MinInterval:    cfg.HTTPMinInterval,
		MaxRetries:     cfg.HTTPMaxRetries,
		InitialBackoff: cfg.HTTPInitialBackoff,
		BackoffFactor:  cfg.HTTPBackoffFactor,
		Jitter:         cfg.HTTPJitter,
		Timeout:        cfg.HTTPTimeout,
		Breaker: fetch.BreakerConfig{
			FailureThreshold: cfg.BreakerFailureThreshold,
			SuccessThreshold: cfg.BreakerSuccessThreshold,
			Timeout:          cfg.BreakerTimeout,
		},
	}, log.Named("fetch"))

	pool := browser.NewPool(browser.Config{
		Bin:               cfg.BrowserBin,
		Headless:          cfg.BrowserHeadless,
		NavigationTimeout: cfg.HTTPTimeout,
	}, log.Named("browser"))

	euArts := eurlex.NewExtractor(pool, disk, log.Named("eurlex"))

	s := &Service{
		cfg:       cfg,
		log:       log,
		validate:  validator.New(),
		client:    client,
		disk:      disk,
		pool:      pool,
		articles:  normattiva.NewExtractor(client, disk, log.Named("normattiva")),
		actTree:   normattiva.NewTreeExtractor(client, disk, log.Named("normattiva")),
		euArts:    euArts,
		euTree:    eurlex.NewTreeExtractor(euArts, log.Named("eurlex")),
		commentRe: brocardi.NewResolver(client, disk, log.Named("brocardi")),
		commentEx: brocardi.NewExtractor(client, disk, log.Named("brocardi")),
		dates:     normattiva.NewDateResolver(pool, log.Named("dates")),
		refs:      cache.NewMemory(cfg.MaxCacheSize, time.Hour),
	}

	if cfg.LLMAPIKey != "" {
		llm, err := llmparse.New(ctx, cfg.LLMAPIKey, cfg.LLMParsingModel, cfg.LLMTimeout, log.Named("llm"))
		if err != nil {
			return nil, fmt.Errorf("init llm parser: %w", err)
		}
		s.llm = llm
	} else {
		log.Info("no LLM API key configured, amendment fallback disabled")
	}
	return s, nil
}

// Shutdown releases the headless browser.
func (s *Service) Shutdown() error {
	return s.pool.Shutdown()
}

// CacheStats exposes the persistent cache counters for health reporting.
func (s *Service) CacheStats() cache.Stats {
	return s.disk.Stats()
}

var articleSpecPattern = regexp.MustCompile(`(?i)^(?:art(?:\.|icolo)?\s*)?\d+(?:\s*-\s*[a-z]+)?$`)

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ResolveReference validates a reference and builds its canonical URN.
// The result is cached; date completion runs at most once per reference.
func (s *Service) ResolveReference(ctx context.Context, ref urn.Reference) (*Resolved, error) {
	ref.ActType = strings.TrimSpace(ref.ActType)
	ref.Annex = urn.CleanAnnex(ref.Annex)

	if err := s.validate.Struct(ref); err != nil {
		return nil, &fetch.ValidationError{Field: "reference", Msg: err.Error()}
	}
	if art := strings.TrimSpace(ref.Article); art != "" && !articleSpecPattern.MatchString(art) {
		return nil, &fetch.ValidationError{Field: "article", Msg: fmt.Sprintf("formato articolo non valido: %q", art)}
	}

	key := refKey(ref)
	if v, ok := s.refs.Get(key); ok {
		return v.(*Resolved), nil
	}

	built, err := urn.Build(ref, s.dates)
	if err != nil {
		return nil, &fetch.ValidationError{Field: "reference", Msg: err.Error()}
	}

	out := &Resolved{
		Reference:   ref,
		URN:         built.URN,
		IsEU:        built.IsEU,
		Approximate: built.Approximate,
	}
	// The codes map carries a historical default annex that the builder
	// strips; re-inject it when the caller did not pick one explicitly.
	if built.DefaultAnnex != "" && ref.Annex == "" && !built.IsEU {
		out.URN = urn.SpliceArticle(built.URN, built.DefaultAnnex, ref.Article)
	}

	s.refs.Set(key, out)
	return out, nil
}

func refKey(ref urn.Reference) string {
	return strings.Join([]string{
		strings.ToLower(ref.ActType), ref.Date, ref.ActNumber,
		ref.Article, ref.Annex, ref.Version, ref.VersionDate,
	}, "|")
}

// FetchArticleText fetches the text the resolved reference points at,
// dispatching between the Normattiva and EUR-Lex extractors.
func (s *Service) FetchArticleText(ctx context.Context, r *Resolved, withLinks bool) (*model.ArticleText, error) {
	if r.IsEU {
		if art := strings.TrimSpace(r.Reference.Article); art != "" {
			base, ext := urn.SplitArticle(art)
			num := base
			if ext != "" {
				num = base + "-" + ext
			}
			return s.euArts.FetchArticle(ctx, r.URN, num)
		}
		return s.euArts.FetchDocument(ctx, r.URN)
	}
	return s.articles.FetchArticle(ctx, r.URN, withLinks)
}

// FetchTree enumerates the articles of the resolved act.
func (s *Service) FetchTree(ctx context.Context, r *Resolved, opts model.TreeOptions) (*model.TreeResult, error) {
	if r.IsEU {
		return s.euTree.FetchTree(ctx, r.URN, opts)
	}
	return s.actTree.FetchTree(ctx, r.URN, opts)
}

// FetchEnrichment returns the doctrinal commentary for the reference, or
// (nil, nil) when the act has no coverage. EU acts are never enriched.
func (s *Service) FetchEnrichment(ctx context.Context, r *Resolved) (*model.Enrichment, error) {
	if r.IsEU {
		return nil, nil
	}
	art := strings.TrimSpace(r.Reference.Article)
	if art == "" {
		return nil, nil
	}
	section := brocardi.SectionURL(r.Reference.ActType, r.Reference.Date, r.Reference.ActNumber)
	if section == "" {
		return nil, nil
	}
	base, ext := urn.SplitArticle(art)
	slug := base
	if ext != "" {
		slug = base + "-" + ext
	}
	articleURL, err := s.commentRe.ArticleURL(ctx, section, slug)
	if err != nil {
		return nil, err
	}
	if articleURL == "" {
		return nil, nil
	}
	return s.commentEx.FetchEnrichment(ctx, articleURL)
}

// FetchAmendmentHistory lists the modifications recorded against the
// act, optionally filtered to one article.
func (s *Service) FetchAmendmentHistory(ctx context.Context, r *Resolved, filterArticle string) ([]model.Amendment, error) {
	if r.IsEU {
		return nil, &fetch.ValidationError{Field: "act_type", Msg: "storico modifiche non disponibile per atti UE"}
	}
	if r.Approximate {
		return nil, &fetch.ValidationError{Field: "date", Msg: "data approssimata (fallback 01-01), storico modifiche non affidabile"}
	}
	return s.articles.FetchAmendmentHistory(ctx, r.URN, filterArticle, s.llm)
}

// FetchVersionAt fetches the text in force at the given date.
func (s *Service) FetchVersionAt(ctx context.Context, r *Resolved, date string) (*model.ArticleText, error) {
	if r.IsEU {
		return nil, &fetch.ValidationError{Field: "act_type", Msg: "versioni storiche non disponibili per atti UE"}
	}
	if r.Approximate {
		return nil, &fetch.ValidationError{Field: "date", Msg: "data approssimata (fallback 01-01), versione storica non affidabile"}
	}
	if !isoDatePattern.MatchString(date) {
		return nil, &fetch.ValidationError{Field: "version_date", Msg: fmt.Sprintf("data non valida: %q", date)}
	}
	return s.articles.FetchVersionAt(ctx, r.URN, date)
}

// FetchOriginal fetches the text as originally enacted.
func (s *Service) FetchOriginal(ctx context.Context, r *Resolved) (*model.ArticleText, error) {
	if r.IsEU {
		return nil, &fetch.ValidationError{Field: "act_type", Msg: "versione originale non disponibile per atti UE"}
	}
	return s.articles.FetchOriginal(ctx, r.URN)
}
