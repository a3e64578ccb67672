package models

import (
	"time"

	"github.com/google/uuid"
)

// ListingItem is one product summary read from a category listing page.
type ListingItem struct {
	SKU        string `json:"sku"`
	Link       string `json:"href"`
	Name       string `json:"name"`
	PriceMinor int64  `json:"price"`
}

// ProductDetail holds what the detail page contributes to a product.
type ProductDetail struct {
	Images          []string `json:"images"`
	HighlightsHTML  string   `json:"highlights"`
	DescriptionHTML string   `json:"description"`
}

// DownloadedImage tracks one image from local download to CMS upload.
type DownloadedImage struct {
	Name   string         `json:"name"`
	Path   string         `json:"path"`
	Remote map[string]any `json:"wp"`
}

type TranslatedFields struct {
	Title       string `json:"title"`
	Highlights  string `json:"highlights"`
	Description string `json:"description"`
}

type MetaEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// PublishedProduct is the outbound WooCommerce product record.
type PublishedProduct struct {
	Name             string           `json:"name"`
	Type             string           `json:"type"`
	RegularPrice     string           `json:"regular_price"`
	Description      string           `json:"description"`
	ShortDescription string           `json:"short_description"`
	StockStatus      string           `json:"stock_status"`
	MetaData         []MetaEntry      `json:"meta_data"`
	Images           []map[string]any `json:"images"`
}

// Publication is the history row kept for every product created in the CMS.
type Publication struct {
	ID           uuid.UUID `json:"id"`
	RunID        uuid.UUID `json:"run_id"`
	SKU          string    `json:"sku"`
	RemoteID     int64     `json:"remote_id"`
	Name         string    `json:"name"`
	RegularPrice string    `json:"regular_price"`
	ImageCount   int       `json:"image_count"`
	PublishedAt  time.Time `json:"published_at"`
}

// ItemState is the furthest step an item reached in the publishing pipeline.
type ItemState string

const (
	StatePending        ItemState = "PENDING"
	StateImagesFetched  ItemState = "IMAGES_FETCHED"
	StateImagesUploaded ItemState = "IMAGES_UPLOADED"
	StateTranslated     ItemState = "TRANSLATED"
	StateSubmitted      ItemState = "SUBMITTED"
	StateProcessed      ItemState = "PROCESSED"
)

// ItemResult is the outcome of processing one listing item.
type ItemResult struct {
	SKU      string
	State    ItemState
	RemoteID int64
	Product  *PublishedProduct
	Err      error
}

func (r *ItemResult) Failed() bool {
	return r.Err != nil
}

func NewPublication(runID uuid.UUID, sku string, remoteID int64, product *PublishedProduct) *Publication {
	return &Publication{
		ID:           uuid.New(),
		RunID:        runID,
		SKU:          sku,
		RemoteID:     remoteID,
		Name:         product.Name,
		RegularPrice: product.RegularPrice,
		ImageCount:   len(product.Images),
		PublishedAt:  time.Now(),
	}
}
