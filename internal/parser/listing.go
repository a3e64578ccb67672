package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/catalog-sync/internal/config"
	"github.com/maltedev/catalog-sync/internal/models"
)

// ListingParser reads item summaries from the attributes of listing elements.
type ListingParser struct {
	selector string
	attrs    config.AttributeNames
}

func NewListingParser(site config.SiteConfig) *ListingParser {
	return &ListingParser{
		selector: site.ListingSelector,
		attrs:    site.Attributes,
	}
}

// Parse returns the items of one rendered listing page in document order.
// Elements without an identifier are skipped.
func (p *ListingParser) Parse(html string) ([]models.ListingItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	elements := doc.Find(p.selector)
	if elements.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrListingMissing, p.selector)
	}

	var (
		items    []models.ListingItem
		parseErr error
	)
	elements.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		sku := strings.TrimSpace(s.AttrOr(p.attrs.SKU, ""))
		if sku == "" {
			return true
		}

		price, err := parsePriceMinor(s.AttrOr(p.attrs.Price, ""))
		if err != nil {
			parseErr = fmt.Errorf("item %s: %w", sku, err)
			return false
		}

		items = append(items, models.ListingItem{
			SKU:        sku,
			Link:       s.AttrOr(p.attrs.Link, ""),
			Name:       s.AttrOr(p.attrs.Name, ""),
			PriceMinor: price,
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return items, nil
}

// parsePriceMinor reads a price expressed in minor currency units (cents).
func parsePriceMinor(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidPrice)
	}
	price, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
	}
	return price, nil
}
