package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"kioskpos/internal/models"
	"kioskpos/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const productColumns = "product_id, name, description, price, category, image_url, available, featured, created_at, updated_at"

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

type Options struct {
	Now func() time.Time
}

func NewStore(pool *pgxpool.Pool, options Options) *Store {
	now := options.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Store{pool: pool, now: now}
}

func (s *Store) ListProducts(ctx context.Context, filter store.ProductFilter) ([]models.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE TRUE"
	args := []interface{}{}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.OnlyAvailable {
		query += " AND available = TRUE"
	}
	if filter.OnlyFeatured {
		query += " AND featured = TRUE"
	}
	args = append(args, models.Categories)
	query += fmt.Sprintf(" ORDER BY array_position($%d::text[], category), name", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, productID string) (models.Product, error) {
	if !validID(productID) {
		return models.Product{}, store.ErrProductNotFound
	}
	row := s.pool.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE product_id = $1", productID)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Product{}, store.ErrProductNotFound
		}
		return models.Product{}, err
	}
	return product, nil
}

func (s *Store) CreateProduct(ctx context.Context, input store.ProductInput) (models.Product, error) {
	now := s.now()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO products (product_id, name, description, price, category, image_url, available, featured, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING `+productColumns,
		uuid.NewString(), input.Name, input.Description, input.Price, input.Category, input.ImageURL, input.Available, input.Featured, now)
	return scanProduct(row)
}

func (s *Store) UpdateProduct(ctx context.Context, productID string, input store.ProductInput) (models.Product, error) {
	if !validID(productID) {
		return models.Product{}, store.ErrProductNotFound
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, category = $5, image_url = $6,
			available = $7, featured = $8, updated_at = $9
		WHERE product_id = $1
		RETURNING `+productColumns,
		productID, input.Name, input.Description, input.Price, input.Category, input.ImageURL, input.Available, input.Featured, s.now())
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Product{}, store.ErrProductNotFound
		}
		return models.Product{}, err
	}
	return product, nil
}

func (s *Store) DeleteProduct(ctx context.Context, productID string) error {
	if !validID(productID) {
		return store.ErrProductNotFound
	}
	tag, err := s.pool.Exec(ctx, "DELETE FROM products WHERE product_id = $1", productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrProductNotFound
	}
	return nil
}

func (s *Store) ToggleAvailability(ctx context.Context, productID string) (models.Product, error) {
	return s.toggleProduct(ctx, productID, "available")
}

func (s *Store) ToggleFeatured(ctx context.Context, productID string) (models.Product, error) {
	return s.toggleProduct(ctx, productID, "featured")
}

func (s *Store) toggleProduct(ctx context.Context, productID, column string) (models.Product, error) {
	if !validID(productID) {
		return models.Product{}, store.ErrProductNotFound
	}
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE products
		SET %[1]s = NOT %[1]s, updated_at = $2
		WHERE product_id = $1
		RETURNING `+productColumns, column), productID, s.now())
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Product{}, store.ErrProductNotFound
		}
		return models.Product{}, err
	}
	return product, nil
}

func scanProduct(row pgx.Row) (models.Product, error) {
	var product models.Product
	err := row.Scan(&product.ProductID, &product.Name, &product.Description, &product.Price, &product.Category,
		&product.ImageURL, &product.Available, &product.Featured, &product.CreatedAt, &product.UpdatedAt)
	return product, err
}

func validID(value string) bool {
	_, err := uuid.Parse(strings.TrimSpace(value))
	return err == nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}
