package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maltedev/catalog-sync/internal/config"
	"github.com/maltedev/catalog-sync/internal/models"
	"github.com/maltedev/catalog-sync/internal/parser"
)

// ProductExtractor renders a product detail page and parses it.
type ProductExtractor struct {
	renderer Renderer
	parser   *parser.DetailParser
	domain   string
	logger   *slog.Logger
}

func NewProductExtractor(renderer Renderer, site config.SiteConfig, logger *slog.Logger) *ProductExtractor {
	return &ProductExtractor{
		renderer: renderer,
		parser:   parser.NewDetailParser(site),
		domain:   site.Domain,
		logger:   logger.With("component", "product_extractor"),
	}
}

func (e *ProductExtractor) Extract(ctx context.Context, link string) (*models.ProductDetail, error) {
	url := absoluteURL(e.domain, link)
	e.logger.Debug("extracting product", "url", url)

	rendered, err := e.renderer.Render(ctx, url, "")
	if err != nil {
		return nil, fmt.Errorf("failed to render product page: %w", err)
	}

	detail, err := e.parser.Parse(rendered.HTML)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", url, err)
	}

	e.logger.Debug("extracted product",
		"url", url,
		"images", len(detail.Images),
	)

	return detail, nil
}
