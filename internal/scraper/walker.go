package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maltedev/catalog-sync/internal/config"
	"github.com/maltedev/catalog-sync/internal/models"
	"github.com/maltedev/catalog-sync/internal/parser"
)

// BatchFunc receives the items of one listing page. Returning an error stops the walk.
type BatchFunc func(ctx context.Context, page int, items []models.ListingItem) error

// ListingWalker pages through a category listing until the site answers 404.
type ListingWalker struct {
	renderer    Renderer
	parser      *parser.ListingParser
	domain      string
	listingPath string
	selector    string
	maxPages    int
	logger      *slog.Logger
}

func NewListingWalker(renderer Renderer, site config.SiteConfig, maxPages int, logger *slog.Logger) *ListingWalker {
	return &ListingWalker{
		renderer:    renderer,
		parser:      parser.NewListingParser(site),
		domain:      site.Domain,
		listingPath: site.ListingPath,
		selector:    site.ListingSelector,
		maxPages:    maxPages,
		logger:      logger.With("component", "listing_walker"),
	}
}

func (w *ListingWalker) PageURL(page int) string {
	return fmt.Sprintf("%s%s?page=%d", w.domain, w.listingPath, page)
}

// Walk requests page 1, 2, ... and hands each page's items to fn. A not-found
// response ends the walk without error. Every other status is treated as a
// listing page; missing markup is returned as an error.
func (w *ListingWalker) Walk(ctx context.Context, fn BatchFunc) error {
	for page := 1; w.maxPages <= 0 || page <= w.maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		url := w.PageURL(page)
		w.logger.Info("crawling page", "url", url, "page", page)

		rendered, err := w.renderer.Render(ctx, url, w.selector)
		if err != nil {
			return fmt.Errorf("failed to render listing page %d: %w", page, err)
		}

		if rendered.NotFound() {
			w.logger.Info("reached end of catalog", "page", page)
			return nil
		}

		items, err := w.parser.Parse(rendered.HTML)
		if err != nil {
			return fmt.Errorf("failed to extract listing page %d: %w", page, err)
		}

		w.logger.Info("extracted items", "page", page, "count", len(items))

		if err := fn(ctx, page, items); err != nil {
			return err
		}
	}

	w.logger.Info("page limit reached", "max_pages", w.maxPages)
	return nil
}
