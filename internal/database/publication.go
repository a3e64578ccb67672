package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/maltedev/catalog-sync/internal/models"
)

const publicationSchema = `
	CREATE TABLE IF NOT EXISTS published_products (
		id            UUID PRIMARY KEY,
		run_id        UUID NOT NULL,
		sku           TEXT NOT NULL,
		remote_id     BIGINT NOT NULL,
		name          TEXT NOT NULL,
		regular_price TEXT NOT NULL,
		image_count   INTEGER NOT NULL,
		published_at  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_published_products_sku ON published_products (sku);
	CREATE INDEX IF NOT EXISTS idx_published_products_run ON published_products (run_id);`

// PublicationRepository keeps the history of products created in the CMS.
type PublicationRepository struct {
	db *DB
}

func NewPublicationRepository(db *DB) *PublicationRepository {
	return &PublicationRepository{db: db}
}

func (r *PublicationRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, publicationSchema); err != nil {
		return fmt.Errorf("failed to create published_products: %w", err)
	}
	return nil
}

func (r *PublicationRepository) Record(ctx context.Context, pub *models.Publication) error {
	query := `
		INSERT INTO published_products (
			id, run_id, sku, remote_id, name, regular_price, image_count, published_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		pub.ID, pub.RunID, pub.SKU, pub.RemoteID,
		pub.Name, pub.RegularPrice, pub.ImageCount, pub.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert publication %s: %w", pub.SKU, err)
	}
	return nil
}

// Recent returns the newest publications first.
func (r *PublicationRepository) Recent(ctx context.Context, limit int) ([]models.Publication, error) {
	query := `
		SELECT id, run_id, sku, remote_id, name, regular_price, image_count, published_at
		FROM published_products
		ORDER BY published_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query publications: %w", err)
	}

	pubs, err := pgx.CollectRows(rows, scanPublication)
	if err != nil {
		return nil, fmt.Errorf("failed to scan publications: %w", err)
	}
	return pubs, nil
}

// BySKU returns every publication of sku, oldest first.
func (r *PublicationRepository) BySKU(ctx context.Context, sku string) ([]models.Publication, error) {
	query := `
		SELECT id, run_id, sku, remote_id, name, regular_price, image_count, published_at
		FROM published_products
		WHERE sku = $1
		ORDER BY published_at`

	rows, err := r.db.Query(ctx, query, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to query publications for %s: %w", sku, err)
	}

	return pgx.CollectRows(rows, scanPublication)
}

func scanPublication(row pgx.CollectableRow) (models.Publication, error) {
	var p models.Publication
	err := row.Scan(&p.ID, &p.RunID, &p.SKU, &p.RemoteID, &p.Name, &p.RegularPrice, &p.ImageCount, &p.PublishedAt)
	return p, err
}
