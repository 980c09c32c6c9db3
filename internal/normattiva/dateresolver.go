package normattiva

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"go.uber.org/zap"

	"normafetch/internal/browser"
	"normafetch/internal/cache"
	"normafetch/internal/norm"
)

// Selector chains: the portal has rotated its markup over the years, so
// each step tries the known selectors in order.
var (
	consentSelectors = []string{
		"#onetrust-accept-btn-handler",
		"button.cookie-accept",
		"a.cookiebar-close",
	}
	searchBoxSelectors = []string{
		"input#testoRicerca",
		"input[name='testoRicerca']",
		"input.search-query",
	}
	searchButtonSelectors = []string{
		"button#buttonRicercaSubmit",
		"button[type='submit'].btn-primary",
		"input[type='submit']",
	}
	resultSelectors = []string{
		"#elenco_risultati a",
		"div.risultato a",
		"a.risultato_ricerca",
		"#corpo_risultati a",
	}
)

const resultWait = 10 * time.Second

// DateResolver completes year-only act dates by driving the portal's
// search form in a headless browser. Results are cached per
// (token, year, number).
type DateResolver struct {
	pool *browser.Pool
	mem  *cache.Memory
	log  *zap.Logger
}

// NewDateResolver wires the resolver.
func NewDateResolver(pool *browser.Pool, log *zap.Logger) *DateResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &DateResolver{
		pool: pool,
		mem:  cache.NewMemory(512, 24*time.Hour),
		log:  log,
	}
}

// CompleteDate searches "{label} {number} {year}" and extracts the full
// date from the first result's display text. Any failure returns an
// error; the urn builder then falls back to YYYY-01-01.
func (r *DateResolver) CompleteDate(token, year, actNumber string) (string, error) {
	key := token + "|" + year + "|" + actNumber
	if v, ok := r.mem.Get(key); ok {
		return v.(string), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	query := fmt.Sprintf("%s %s %s", norm.SearchLabel(token), actNumber, year)
	var resolved string

	err := r.pool.WithPage(ctx, func(page *rod.Page) error {
		if err := page.Navigate(normattivaBase + "/"); err != nil {
			return fmt.Errorf("open homepage: %w", err)
		}
		if err := page.WaitLoad(); err != nil {
			return fmt.Errorf("homepage load: %w", err)
		}

		dismissConsent(page)

		box, err := firstElement(page, searchBoxSelectors)
		if err != nil {
			return fmt.Errorf("search box: %w", err)
		}
		if err := box.Input(query); err != nil {
			return fmt.Errorf("type query: %w", err)
		}

		btn, err := firstElement(page, searchButtonSelectors)
		if err != nil {
			return fmt.Errorf("search button: %w", err)
		}
		if err := btn.Click("left", 1); err != nil {
			return fmt.Errorf("click search: %w", err)
		}

		result, err := waitFirstElement(page, resultSelectors, resultWait)
		if err != nil {
			return fmt.Errorf("no search result: %w", err)
		}
		text, err := result.Text()
		if err != nil {
			return fmt.Errorf("result text: %w", err)
		}

		iso, ok := norm.ParseLongDate(text)
		if !ok {
			return fmt.Errorf("no date in result %q", strings.TrimSpace(text))
		}
		resolved = iso
		return nil
	})
	if err != nil {
		r.log.Warn("date completion failed",
			zap.String("token", token),
			zap.String("year", year),
			zap.String("number", actNumber),
			zap.Error(err))
		return "", err
	}

	r.mem.Set(key, resolved)
	r.log.Debug("date completed",
		zap.String("token", token),
		zap.String("year", year),
		zap.String("date", resolved))
	return resolved, nil
}

// dismissConsent clicks the cookie banner if one is present. Best-effort:
// a missing banner or a timeout is not an error.
func dismissConsent(page *rod.Page) {
	for _, sel := range consentSelectors {
		el, err := page.Timeout(2 * time.Second).Element(sel)
		if err != nil {
			continue
		}
		_ = el.Click("left", 1)
		return
	}
}

// firstElement tries each selector immediately, returning the first hit.
func firstElement(page *rod.Page, selectors []string) (*rod.Element, error) {
	for _, sel := range selectors {
		if el, err := page.Timeout(2 * time.Second).Element(sel); err == nil {
			return el, nil
		}
	}
	return nil, fmt.Errorf("none of %v matched", selectors)
}

// waitFirstElement polls the selector chain until one matches or the
// budget runs out.
func waitFirstElement(page *rod.Page, selectors []string, budget time.Duration) (*rod.Element, error) {
	deadline := time.Now().Add(budget)
	for time.Now().Before(deadline) {
		for _, sel := range selectors {
			if el, err := page.Timeout(time.Second).Element(sel); err == nil {
				return el, nil
			}
		}
	}
	return nil, fmt.Errorf("none of %v appeared within %s", selectors, budget)
}
