package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"testing"

	"github.com/maltedev/catalog-sync/internal/cms"
	"github.com/maltedev/catalog-sync/internal/config"
	"github.com/maltedev/catalog-sync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeImages writes a small file per download into dir.
type fakeImages struct {
	dir     string
	failURL string
}

func (f *fakeImages) Download(_ context.Context, imageURL, name string) (*models.DownloadedImage, error) {
	if imageURL == f.failURL {
		return nil, errors.New("connection reset")
	}
	p := filepath.Join(f.dir, name)
	if err := os.WriteFile(p, []byte(imageURL), 0644); err != nil {
		return nil, err
	}
	return &models.DownloadedImage{Name: name, Path: p}, nil
}

func (f *fakeImages) Remove(img *models.DownloadedImage) error {
	return os.Remove(img.Path)
}

type fakeCMS struct {
	mu        sync.Mutex
	uploaded  []string
	products  []*models.PublishedProduct
	createID  int64
	createErr error
	// gates delays an upload until the named uploads have completed.
	gates map[string][]string
	done  map[string]chan struct{}
}

func newFakeCMS(names ...string) *fakeCMS {
	c := &fakeCMS{createID: 42, done: map[string]chan struct{}{}}
	for _, n := range names {
		c.done[n] = make(chan struct{})
	}
	return c
}

func (c *fakeCMS) UploadMedia(ctx context.Context, p string) (map[string]any, error) {
	name := path.Base(filepath.ToSlash(p))
	for _, dep := range c.gates[name] {
		select {
		case <-c.done[dep]:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	c.uploaded = append(c.uploaded, name)
	c.mu.Unlock()
	if ch, ok := c.done[name]; ok {
		close(ch)
	}

	return map[string]any{"id": json.Number("1"), "file": name}, nil
}

func (c *fakeCMS) CreateProduct(_ context.Context, product *models.PublishedProduct) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = append(c.products, product)
	if c.createErr != nil {
		return 0, c.createErr
	}
	return c.createID, nil
}

type fakeTranslator struct {
	failOn string
}

func (f *fakeTranslator) Translate(_ context.Context, instruction, text string) (string, error) {
	if text == f.failOn {
		return "", errors.New("rate limited")
	}
	return fmt.Sprintf("[%s] %s", instruction, text), nil
}

type fakeArchiver struct {
	mu   sync.Mutex
	keys []string
}

func (a *fakeArchiver) Archive(_ context.Context, sku string, img *models.DownloadedImage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, sku+"/"+img.Name)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPrompts() config.Prompts {
	return config.Prompts{Title: "T", Highlights: "H", Description: "D"}
}

func testItem() models.ListingItem {
	return models.ListingItem{SKU: "SKU-1", Link: "/p/1", Name: "Wool jumper", PriceMinor: 500}
}

func testDetail(urls ...string) *models.ProductDetail {
	return &models.ProductDetail{
		Images:          urls,
		HighlightsHTML:  "<li>Soft</li>",
		DescriptionHTML: "<p>Warm</p>",
	}
}

func TestRegularPrice(t *testing.T) {
	tests := []struct {
		minor int64
		want  string
	}{
		{500, "105"},
		{0, "100"},
		{550, "105.5"},
		{250, "102.5"},
		{-500, "95"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, RegularPrice(tt.minor))
		})
	}
}

func TestPublisher_Publish(t *testing.T) {
	dir := t.TempDir()
	images := &fakeImages{dir: dir}
	c := newFakeCMS()
	archiver := &fakeArchiver{}

	p := New(images, c, &fakeTranslator{}, testPrompts(), 4, testLogger())
	p.SetArchiver(archiver)

	result := p.Publish(context.Background(), testItem(), testDetail("https://cdn/a.jpg", "https://cdn/b.jpg"))

	require.NoError(t, result.Err)
	assert.Equal(t, models.StateSubmitted, result.State)
	assert.Equal(t, int64(42), result.RemoteID)

	require.Len(t, c.products, 1)
	product := c.products[0]
	assert.Equal(t, "[T] Wool jumper", product.Name)
	assert.Equal(t, "simple", product.Type)
	assert.Equal(t, "105", product.RegularPrice)
	assert.Equal(t, "[D] <p>Warm</p>", product.Description)
	assert.Equal(t, "[H] <li>Soft</li>", product.ShortDescription)
	assert.Equal(t, "instock", product.StockStatus)
	assert.Equal(t, []models.MetaEntry{{Key: "original", Value: "SKU-1"}}, product.MetaData)
	require.Len(t, product.Images, 2)

	// Local copies are archived then removed.
	assert.NoFileExists(t, filepath.Join(dir, "a.jpg"))
	assert.NoFileExists(t, filepath.Join(dir, "b.jpg"))
	assert.ElementsMatch(t, []string{"SKU-1/a.jpg", "SKU-1/b.jpg"}, archiver.keys)
}

func TestPublisher_PreservesImageOrder(t *testing.T) {
	c := newFakeCMS("a.jpg", "b.jpg", "c.jpg")
	// Uploads complete in the order c, b, a.
	c.gates = map[string][]string{
		"a.jpg": {"b.jpg", "c.jpg"},
		"b.jpg": {"c.jpg"},
	}

	p := New(&fakeImages{dir: t.TempDir()}, c, &fakeTranslator{}, testPrompts(), 3, testLogger())
	result := p.Publish(context.Background(), testItem(), testDetail("https://cdn/a.jpg", "https://cdn/b.jpg", "https://cdn/c.jpg"))

	require.NoError(t, result.Err)
	assert.Equal(t, []string{"c.jpg", "b.jpg", "a.jpg"}, c.uploaded)

	var order []any
	for _, img := range result.Product.Images {
		order = append(order, img["file"])
	}
	assert.Equal(t, []any{"a.jpg", "b.jpg", "c.jpg"}, order)
}

func TestPublisher_RejectedSubmissionKeepsFiles(t *testing.T) {
	dir := t.TempDir()
	c := newFakeCMS()
	c.createErr = cms.ErrSubmissionRejected

	p := New(&fakeImages{dir: dir}, c, &fakeTranslator{}, testPrompts(), 2, testLogger())
	result := p.Publish(context.Background(), testItem(), testDetail("https://cdn/a.jpg"))

	assert.ErrorIs(t, result.Err, cms.ErrSubmissionRejected)
	assert.Equal(t, models.StateTranslated, result.State)
	assert.Zero(t, result.RemoteID)
	assert.FileExists(t, filepath.Join(dir, "a.jpg"))
}

func TestPublisher_StepFailures(t *testing.T) {
	t.Run("download", func(t *testing.T) {
		c := newFakeCMS()
		images := &fakeImages{dir: t.TempDir(), failURL: "https://cdn/b.jpg"}
		p := New(images, c, &fakeTranslator{}, testPrompts(), 2, testLogger())

		result := p.Publish(context.Background(), testItem(), testDetail("https://cdn/a.jpg", "https://cdn/b.jpg"))
		assert.Error(t, result.Err)
		assert.Equal(t, models.StatePending, result.State)
		assert.Empty(t, c.products)
	})

	t.Run("translation", func(t *testing.T) {
		c := newFakeCMS()
		p := New(&fakeImages{dir: t.TempDir()}, c, &fakeTranslator{failOn: "<p>Warm</p>"}, testPrompts(), 2, testLogger())

		result := p.Publish(context.Background(), testItem(), testDetail("https://cdn/a.jpg"))
		assert.ErrorContains(t, result.Err, "rate limited")
		assert.Equal(t, models.StateImagesUploaded, result.State)
		assert.Empty(t, c.products)
	})
}

func TestBuildProduct_NoImages(t *testing.T) {
	product := BuildProduct(testItem(), models.TranslatedFields{Title: "Pull"}, nil)
	assert.Equal(t, "Pull", product.Name)
	assert.Empty(t, product.Images)
	assert.Equal(t, "105", product.RegularPrice)
}
