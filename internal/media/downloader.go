package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/maltedev/catalog-sync/internal/models"
)

var ErrDownloadFailed = errors.New("image download failed")

// Downloader streams remote images into a local directory.
type Downloader struct {
	httpClient *http.Client
	dir        string
	logger     *slog.Logger
}

func NewDownloader(dir string, timeout time.Duration, logger *slog.Logger) *Downloader {
	return &Downloader{
		httpClient: &http.Client{Timeout: timeout},
		dir:        dir,
		logger:     logger.With("component", "image_downloader"),
	}
}

// EnsureDir creates the download directory if needed.
func (d *Downloader) EnsureDir() error {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return fmt.Errorf("failed to create image directory %s: %w", d.dir, err)
	}
	return nil
}

// Download writes the body of imageURL to <dir>/<name>. A partial file is
// removed when the copy fails.
func (d *Downloader) Download(ctx context.Context, imageURL, name string) (*models.DownloadedImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDownloadFailed, imageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", ErrDownloadFailed, imageURL, resp.StatusCode)
	}

	dst := filepath.Join(d.dir, name)
	f, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dst, err)
	}

	n, err := io.Copy(f, resp.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst)
		return nil, fmt.Errorf("%w: %s: %v", ErrDownloadFailed, imageURL, err)
	}

	d.logger.Debug("image downloaded", "url", imageURL, "path", dst, "bytes", n)

	return &models.DownloadedImage{Name: name, Path: dst}, nil
}

// Remove deletes the local copy. An already missing file is not an error.
func (d *Downloader) Remove(img *models.DownloadedImage) error {
	if err := os.Remove(img.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", img.Path, err)
	}
	return nil
}

// FileNames derives local file names from image URLs: the last path segment,
// prefixed with the position until it is unique within urls.
func FileNames(urls []string) []string {
	names := make([]string, len(urls))
	seen := make(map[string]bool, len(urls))

	for i, raw := range urls {
		name := baseName(raw)
		if name == "" {
			name = fmt.Sprintf("image-%d", i)
		}
		for seen[name] {
			name = fmt.Sprintf("%d-%s", i, name)
		}
		seen[name] = true
		names[i] = name
	}

	return names
}

func baseName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
