package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/maltedev/catalog-sync/internal/config"
	"github.com/maltedev/catalog-sync/internal/media"
	"github.com/maltedev/catalog-sync/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	productType = "simple"
	stockStatus = "instock"
	originalKey = "original"
)

type ImageStore interface {
	Download(ctx context.Context, imageURL, name string) (*models.DownloadedImage, error)
	Remove(img *models.DownloadedImage) error
}

type CMS interface {
	UploadMedia(ctx context.Context, path string) (map[string]any, error)
	CreateProduct(ctx context.Context, product *models.PublishedProduct) (int64, error)
}

type Translator interface {
	Translate(ctx context.Context, instruction, text string) (string, error)
}

// Publisher turns one extracted product into a CMS product: images are
// downloaded and uploaded, text is translated, and the record is submitted.
type Publisher struct {
	images      ImageStore
	cms         CMS
	translator  Translator
	archiver    media.Archiver
	prompts     config.Prompts
	concurrency int
	logger      *slog.Logger
}

func New(images ImageStore, cms CMS, translator Translator, prompts config.Prompts, concurrency int, logger *slog.Logger) *Publisher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Publisher{
		images:      images,
		cms:         cms,
		translator:  translator,
		prompts:     prompts,
		concurrency: concurrency,
		logger:      logger.With("component", "publisher"),
	}
}

// SetArchiver enables archiving of every image before its local copy is deleted.
func (p *Publisher) SetArchiver(a media.Archiver) {
	p.archiver = a
}

// Publish runs every step for one item. Each step gates the next; the result
// carries the last state reached. Local files are only removed after the CMS
// has assigned an id.
func (p *Publisher) Publish(ctx context.Context, item models.ListingItem, detail *models.ProductDetail) *models.ItemResult {
	result := &models.ItemResult{SKU: item.SKU, State: models.StatePending}
	logger := p.logger.With("sku", item.SKU)

	images, err := p.fetchImages(ctx, detail.Images)
	if err != nil {
		result.Err = fmt.Errorf("fetching images: %w", err)
		return result
	}
	result.State = models.StateImagesFetched

	if err := p.uploadImages(ctx, images); err != nil {
		result.Err = fmt.Errorf("uploading images: %w", err)
		return result
	}
	result.State = models.StateImagesUploaded

	fields, err := p.translate(ctx, item.Name, detail)
	if err != nil {
		result.Err = fmt.Errorf("translating: %w", err)
		return result
	}
	result.State = models.StateTranslated

	product := BuildProduct(item, fields, images)
	result.Product = product

	id, err := p.cms.CreateProduct(ctx, product)
	if err != nil {
		result.Err = fmt.Errorf("submitting product: %w", err)
		return result
	}
	result.State = models.StateSubmitted
	result.RemoteID = id

	logger.Info("product created", "remote_id", id, "images", len(images))

	p.cleanup(ctx, item.SKU, images, logger)

	return result
}

func (p *Publisher) fetchImages(ctx context.Context, urls []string) ([]*models.DownloadedImage, error) {
	names := media.FileNames(urls)
	images := make([]*models.DownloadedImage, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := range urls {
		g.Go(func() error {
			img, err := p.images.Download(gctx, urls[i], names[i])
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// uploadImages fills Remote on every image. Results land at their own index,
// so completion order does not matter.
func (p *Publisher) uploadImages(ctx context.Context, images []*models.DownloadedImage) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, img := range images {
		g.Go(func() error {
			remote, err := p.cms.UploadMedia(gctx, img.Path)
			if err != nil {
				return fmt.Errorf("%s: %w", img.Name, err)
			}
			img.Remote = remote
			return nil
		})
	}
	return g.Wait()
}

func (p *Publisher) translate(ctx context.Context, title string, detail *models.ProductDetail) (models.TranslatedFields, error) {
	var fields models.TranslatedFields

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		fields.Title, err = p.translator.Translate(gctx, p.prompts.Title, title)
		return err
	})
	g.Go(func() (err error) {
		fields.Highlights, err = p.translator.Translate(gctx, p.prompts.Highlights, detail.HighlightsHTML)
		return err
	})
	g.Go(func() (err error) {
		fields.Description, err = p.translator.Translate(gctx, p.prompts.Description, detail.DescriptionHTML)
		return err
	})

	if err := g.Wait(); err != nil {
		return models.TranslatedFields{}, err
	}
	return fields, nil
}

// cleanup archives and deletes local copies. Failures are logged, not returned.
func (p *Publisher) cleanup(ctx context.Context, sku string, images []*models.DownloadedImage, logger *slog.Logger) {
	for _, img := range images {
		if p.archiver != nil {
			if err := p.archiver.Archive(ctx, sku, img); err != nil {
				logger.Warn("failed to archive image", "file", img.Name, "error", err)
			}
		}
		if err := p.images.Remove(img); err != nil {
			logger.Warn("failed to remove image", "file", img.Name, "error", err)
		}
	}
}

// BuildProduct assembles the outbound record. Images keep the order of the
// product page.
func BuildProduct(item models.ListingItem, fields models.TranslatedFields, images []*models.DownloadedImage) *models.PublishedProduct {
	remote := make([]map[string]any, len(images))
	for i, img := range images {
		remote[i] = img.Remote
	}

	return &models.PublishedProduct{
		Name:             fields.Title,
		Type:             productType,
		RegularPrice:     RegularPrice(item.PriceMinor),
		Description:      fields.Description,
		ShortDescription: fields.Highlights,
		StockStatus:      stockStatus,
		MetaData:         []models.MetaEntry{{Key: originalKey, Value: item.SKU}},
		Images:           remote,
	}
}

// RegularPrice converts a minor-unit price to the shop's list price: the major
// amount plus a flat 100.
func RegularPrice(priceMinor int64) string {
	return strconv.FormatFloat(float64(priceMinor)/100+100, 'f', -1, 64)
}
