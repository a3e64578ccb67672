// Package cms talks to the WordPress media and WooCommerce product endpoints.
package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/maltedev/catalog-sync/internal/config"
	"github.com/maltedev/catalog-sync/internal/models"
)

const (
	mediaPath    = "/wp-json/wp/v2/media/"
	productsPath = "/wp-json/wc/v3/products"

	// Limit response size to 10MB
	maxResponseSize = 10 * 1024 * 1024
)

var (
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	ErrSubmissionRejected   = errors.New("product submission returned no id")
)

// Client is an authenticated WordPress / WooCommerce REST client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	logger     *slog.Logger
}

func NewClient(cfg config.CMSConfig, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		logger:     logger.With("component", "cms_client"),
	}
}

// UploadMedia posts the file at path as multipart field "file" and returns the
// created media object as decoded JSON.
func (c *Client) UploadMedia(ctx context.Context, path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	status, body, err := c.post(ctx, mediaPath, mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: %d: %s", ErrUnexpectedStatusCode, status, string(body))
	}

	var media map[string]any
	if err := decodeJSON(body, &media); err != nil {
		return nil, fmt.Errorf("failed to parse media response: %w", err)
	}

	c.logger.Debug("media uploaded", "file", filepath.Base(path), "id", media["id"])
	return media, nil
}

// CreateProduct submits product form-encoded and returns the id assigned by the
// shop. A response without a positive integer id is ErrSubmissionRejected; the
// whole body is logged.
func (c *Client) CreateProduct(ctx context.Context, product *models.PublishedProduct) (int64, error) {
	form := EncodeProduct(product)

	status, body, err := c.post(ctx, productsPath, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return 0, err
	}

	// Bodies that are not a JSON object fail the id check below.
	var resp map[string]any
	_ = decodeJSON(body, &resp)

	id, ok := positiveID(resp["id"])
	if !ok {
		c.logger.Error("product submission rejected",
			"status", status,
			"response", string(body),
		)
		return 0, fmt.Errorf("%w: status %d", ErrSubmissionRejected, status)
	}

	return id, nil
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, data, nil
}

// decodeJSON keeps numbers as json.Number so ids round-trip without float formatting.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func positiveID(v any) (int64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	id, err := n.Int64()
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
