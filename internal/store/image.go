package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cinevault/apiserver/types"
	"github.com/google/uuid"
)

// ImageRepository handles persistence for movie images.
type ImageRepository struct {
	db *sql.DB
}

func NewImageRepository(db *sql.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

const imageColumns = `id, movie_id, key, bucket, content_type, size, etag, type, is_primary, created_at`

func scanImage(row rowScanner) (types.Image, error) {
	var image types.Image
	var imageType string
	err := row.Scan(
		&image.ID,
		&image.MovieID,
		&image.Key,
		&image.Bucket,
		&image.ContentType,
		&image.Size,
		&image.ETag,
		&imageType,
		&image.IsPrimary,
		&image.CreatedAt,
	)
	image.Type = types.ImageType(imageType)
	return image, err
}

// ListByMovie returns the images of a movie in confirmation order.
func (r *ImageRepository) ListByMovie(ctx context.Context, movieID string) ([]types.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM movie_images WHERE movie_id = $1 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := make([]types.Image, 0)
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return images, nil
}

// GetPrimary returns the primary image of a movie.
func (r *ImageRepository) GetPrimary(ctx context.Context, movieID string) (types.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM movie_images WHERE movie_id = $1 AND is_primary`
	image, err := scanImage(r.db.QueryRowContext(ctx, query, movieID))
	if err != nil {
		return types.Image{}, translate(err)
	}
	return image, nil
}

// Create records a confirmed image. When image.IsPrimary is set, every other
// primary image of the movie is demoted in the same transaction. The movie
// row is locked for the duration so concurrent confirmations for one movie
// commit one after another. A missing movie fails with ErrNotFound and a
// reused key with ErrConflict.
func (r *ImageRepository) Create(ctx context.Context, image types.Image) (types.Image, error) {
	if image.ID == "" {
		image.ID = uuid.NewString()
	}
	image.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Image{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var locked string
	if err := tx.QueryRowContext(ctx, `SELECT id FROM movies WHERE id = $1 FOR UPDATE`, image.MovieID).Scan(&locked); err != nil {
		return types.Image{}, translate(err)
	}

	if image.IsPrimary {
		const demote = `UPDATE movie_images SET is_primary = FALSE WHERE movie_id = $1 AND is_primary`
		if _, err := tx.ExecContext(ctx, demote, image.MovieID); err != nil {
			return types.Image{}, fmt.Errorf("clear primary image: %w", err)
		}
	}

	const insert = `
		INSERT INTO movie_images (id, movie_id, key, bucket, content_type, size, etag, type, is_primary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := tx.ExecContext(
		ctx,
		insert,
		image.ID,
		image.MovieID,
		image.Key,
		image.Bucket,
		image.ContentType,
		image.Size,
		image.ETag,
		string(image.Type),
		image.IsPrimary,
		image.CreatedAt,
	); err != nil {
		return types.Image{}, translate(err)
	}

	if err := tx.Commit(); err != nil {
		return types.Image{}, err
	}
	return image, nil
}
