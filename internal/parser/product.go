package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/catalog-sync/internal/config"
	"github.com/maltedev/catalog-sync/internal/models"
)

// DetailParser extracts images, highlights and description from a rendered
// product page. The image list comes from the embedded structured-data block.
type DetailParser struct {
	scriptSelector      string
	marker              string
	highlightsSelector  string
	descriptionSelector string
}

func NewDetailParser(site config.SiteConfig) *DetailParser {
	return &DetailParser{
		scriptSelector:      site.StructuredDataSelector,
		marker:              stripSpace(site.StructuredDataMarker),
		highlightsSelector:  site.HighlightsSelector,
		descriptionSelector: site.DescriptionSelector,
	}
}

func (p *DetailParser) Parse(html string) (*models.ProductDetail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	images, err := p.extractImages(doc)
	if err != nil {
		return nil, err
	}

	highlights, err := innerHTML(doc, p.highlightsSelector)
	if err != nil {
		return nil, err
	}

	description, err := innerHTML(doc, p.descriptionSelector)
	if err != nil {
		return nil, err
	}

	return &models.ProductDetail{
		Images:          images,
		HighlightsHTML:  highlights,
		DescriptionHTML: description,
	}, nil
}

func (p *DetailParser) extractImages(doc *goquery.Document) ([]string, error) {
	// The last matching script wins. Whitespace is ignored on both sides so
	// pretty-printed JSON matches a compact marker.
	var payload string
	doc.Find(p.scriptSelector).Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		if strings.Contains(stripSpace(text), p.marker) {
			payload = text
		}
	})
	if payload == "" {
		return nil, fmt.Errorf("%w: marker %s", ErrStructuredDataMissing, p.marker)
	}

	var data any
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, fmt.Errorf("failed to parse structured data: %w", err)
	}

	image, ok := findImageField(data)
	if !ok {
		return nil, ErrImagesMissing
	}

	return imageURLs(image), nil
}

// findImageField returns the "image" value of the structured data object, or
// of the first object carrying one when the block is an array or @graph.
func findImageField(data any) (any, bool) {
	switch v := data.(type) {
	case map[string]any:
		if image, ok := v["image"]; ok {
			return image, true
		}
		if graph, ok := v["@graph"]; ok {
			return findImageField(graph)
		}
	case []any:
		for _, entry := range v {
			if image, ok := findImageField(entry); ok {
				return image, true
			}
		}
	}
	return nil, false
}

func imageURLs(image any) []string {
	switch v := image.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		var urls []string
		for _, entry := range v {
			urls = append(urls, imageURLs(entry)...)
		}
		return urls
	case map[string]any:
		for _, key := range []string{"url", "contentUrl"} {
			if u, ok := v[key].(string); ok && u != "" {
				return []string{u}
			}
		}
	}
	return nil
}

func innerHTML(doc *goquery.Document, selector string) (string, error) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s", ErrMarkupMissing, selector)
	}
	html, err := sel.Html()
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", selector, err)
	}
	return html, nil
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
