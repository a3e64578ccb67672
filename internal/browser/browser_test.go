package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if !opts.Headless {
		t.Error("Expected headless to be true by default")
	}

	if opts.Timeout != 30*time.Second {
		t.Errorf("Expected timeout to be 30s, got %v", opts.Timeout)
	}

	if opts.ViewportWidth != 1920 || opts.ViewportHeight != 1080 {
		t.Errorf("Expected viewport to be 1920x1080, got %dx%d", opts.ViewportWidth, opts.ViewportHeight)
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	opts := (&Options{Headless: false, Timeout: 5 * time.Second}).withDefaults()

	assert.False(t, opts.Headless)
	assert.Equal(t, 5*time.Second, opts.Timeout)
	assert.Equal(t, DefaultOptions().UserAgent, opts.UserAgent)
	assert.Equal(t, 1920, opts.ViewportWidth)
	assert.Equal(t, "en-US", opts.Locale)
}

func TestRenderedPage_NotFound(t *testing.T) {
	assert.True(t, (&RenderedPage{Status: 404}).NotFound())
	assert.False(t, (&RenderedPage{Status: 200}).NotFound())
	assert.False(t, (&RenderedPage{Status: 500}).NotFound())
}

func TestPageRenderer_Render(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping browser integration test")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><body><div class="product-item" sku="A"></div></body></html>`)
	}))
	defer srv.Close()

	b, err := New(&Options{Headless: true, Timeout: 10 * time.Second})
	require.NoError(t, err)
	defer b.Close()

	r, err := b.NewRenderer("listing")
	require.NoError(t, err)
	defer r.Close()

	page, err := r.Render(context.Background(), srv.URL+"/product/page/?page=1", ".product-item")
	require.NoError(t, err)
	assert.Equal(t, 200, page.Status)
	assert.Contains(t, page.HTML, `sku="A"`)

	page, err = r.Render(context.Background(), srv.URL+"/product/page/?page=2", ".product-item")
	require.NoError(t, err)
	assert.True(t, page.NotFound())
	assert.Empty(t, page.HTML)
}
