package scraper

import (
	"context"
	"strings"

	"github.com/maltedev/catalog-sync/internal/browser"
)

// Renderer loads a URL in a browser page and returns the rendered result.
type Renderer interface {
	Render(ctx context.Context, url, waitSelector string) (*browser.RenderedPage, error)
}

// absoluteURL joins a site-relative link onto domain. Absolute links pass through.
func absoluteURL(domain, link string) string {
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	return domain + link
}
