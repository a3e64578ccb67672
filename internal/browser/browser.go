package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/playwright-community/playwright-go"
)

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Locale         string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		Locale:         "en-US",
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		},
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o *Options) withDefaults() *Options {
	d := DefaultOptions()
	out := *o
	if out.Timeout == 0 {
		out.Timeout = d.Timeout
	}
	if out.UserAgent == "" {
		out.UserAgent = d.UserAgent
	}
	if out.ViewportWidth == 0 || out.ViewportHeight == 0 {
		out.ViewportWidth, out.ViewportHeight = d.ViewportWidth, d.ViewportHeight
	}
	if out.Locale == "" {
		out.Locale = d.Locale
	}
	if out.ExtraHeaders == nil {
		out.ExtraHeaders = d.ExtraHeaders
	}
	return &out
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	opts = opts.withDefaults()

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: opts.ExtraHeaders,
	}

	browserCtx, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: browserCtx,
		opts:    opts,
		logger:  slog.Default().With("component", "browser"),
	}, nil
}

func (b *Browser) NewPage() (playwright.Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))

	return page, nil
}

// NewRenderer opens a dedicated page. Each renderer is reused for every
// navigation of one kind (listing or detail).
func (b *Browser) NewRenderer(name string) (*PageRenderer, error) {
	page, err := b.NewPage()
	if err != nil {
		return nil, err
	}

	return &PageRenderer{
		page:    page,
		timeout: b.opts.Timeout,
		logger:  b.logger.With("page", name),
	}, nil
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

// RenderedPage is a navigated page: the response status and the DOM after rendering.
type RenderedPage struct {
	URL    string
	Status int
	HTML   string
}

func (p *RenderedPage) NotFound() bool {
	return p.Status == http.StatusNotFound
}

type PageRenderer struct {
	page    playwright.Page
	timeout time.Duration
	logger  *slog.Logger
}

// Render navigates to url and waits for the network to go idle. On a 404 it
// returns immediately without waiting for waitSelector or reading content.
func (r *PageRenderer) Render(ctx context.Context, url, waitSelector string) (*RenderedPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := playwright.Float(float64(r.timeout.Milliseconds()))

	resp, err := r.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	rendered := &RenderedPage{URL: url}
	if resp != nil {
		rendered.Status = resp.Status()
	}

	r.logger.Debug("page loaded", "url", url, "status", rendered.Status)

	if rendered.NotFound() {
		return rendered, nil
	}

	if waitSelector != "" {
		if _, err := r.page.WaitForSelector(waitSelector, playwright.PageWaitForSelectorOptions{
			Timeout: timeout,
		}); err != nil {
			return nil, fmt.Errorf("waiting for %s on %s: %w", waitSelector, url, err)
		}
	}

	html, err := r.page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to get page content: %w", err)
	}
	rendered.HTML = html

	return rendered, nil
}

func (r *PageRenderer) Close() error {
	return r.page.Close()
}
