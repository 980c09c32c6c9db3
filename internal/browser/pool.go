// Package browser owns the shared headless Chromium instance used for the
// upstreams that plain HTTP cannot reach: the Normattiva search box (date
// completion) and the WAF-guarded EUR-Lex portal. One browser per process;
// one page context per fetch, closed on exit from its scope.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Spoofed UA: EUR-Lex's WAF rejects obvious automation.
const pageUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// Config holds browser pool configuration.
type Config struct {
	Bin               string
	Headless          bool
	NavigationTimeout time.Duration
}

// Pool lazily launches one Chromium and hands out per-call pages.
type Pool struct {
	cfg Config
	log *zap.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

// NewPool creates a pool; the browser launches on first use.
func NewPool(cfg Config, log *zap.Logger) *Pool {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{cfg: cfg, log: log}
}

func (p *Pool) ensureStarted() (*rod.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.browser != nil {
		if _, err := p.browser.Version(); err == nil {
			return p.browser, nil
		}
		p.log.Warn("stale browser connection, relaunching")
		_ = p.browser.Close()
		p.browser = nil
	}

	launch := launcher.New().Headless(p.cfg.Headless)
	if p.cfg.Bin != "" {
		launch = launch.Bin(p.cfg.Bin)
	}
	controlURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chromium: %w", err)
	}
	p.browser = browser
	p.log.Debug("browser started", zap.String("control_url", controlURL))
	return browser, nil
}

// Shutdown closes the shared browser if it was ever started.
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.browser == nil {
		return nil
	}
	err := p.browser.Close()
	p.browser = nil
	return err
}

// WithPage runs fn on a fresh page bound to ctx. The page always closes
// when fn returns, so a caller cancellation cannot leak a tab.
func (p *Pool) WithPage(ctx context.Context, fn func(page *rod.Page) error) error {
	browser, err := p.ensureStarted()
	if err != nil {
		return err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	id := uuid.NewString()[:8]
	p.log.Debug("page opened", zap.String("page", id))
	defer func() {
		_ = page.Close()
		p.log.Debug("page closed", zap.String("page", id))
	}()

	page = page.Context(ctx).Timeout(p.cfg.NavigationTimeout)
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      pageUserAgent,
		AcceptLanguage: "it-IT,it;q=0.9",
	}); err != nil {
		return fmt.Errorf("set user agent: %w", err)
	}

	return fn(page)
}

// FetchHTML navigates to url, waits for the network to go idle and returns
// the rendered document HTML.
func (p *Pool) FetchHTML(ctx context.Context, url string) (string, error) {
	var html string
	err := p.WithPage(ctx, func(page *rod.Page) error {
		if err := page.Navigate(url); err != nil {
			return fmt.Errorf("navigate %s: %w", url, err)
		}
		waitIdle := page.WaitRequestIdle(2*time.Second, nil, nil, nil)
		waitIdle()
		out, err := page.HTML()
		if err != nil {
			return fmt.Errorf("read page html: %w", err)
		}
		html = out
		return nil
	})
	return html, err
}
