package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cinevault/apiserver/internal/storage"
	"github.com/cinevault/apiserver/internal/store"
	"github.com/cinevault/apiserver/types"
	"go.uber.org/zap"
)

// MaxImageBytes is the largest image accepted for upload (5 MiB).
const MaxImageBytes int64 = 5 * 1024 * 1024

const maxFileNameLength = 200

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/avif": {},
}

var unsafeFileNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// ImageRepository defines persistence operations for movie images.
type ImageRepository interface {
	ListByMovie(ctx context.Context, movieID string) ([]types.Image, error)
	GetPrimary(ctx context.Context, movieID string) (types.Image, error)
	// Create must demote any other primary image of the movie in the same
	// atomic unit when image.IsPrimary is set.
	Create(ctx context.Context, image types.Image) (types.Image, error)
}

// ObjectGateway is the object store as seen by the upload flow.
type ObjectGateway interface {
	PresignPut(ctx context.Context, key, contentType string) (storage.Presigned, error)
	PresignGet(ctx context.Context, key string) (storage.Presigned, error)
	Stat(ctx context.Context, key string) (storage.ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// PresignUploadInput requests a signed upload URL for a movie image.
type PresignUploadInput struct {
	MovieID     string `json:"movieId" validate:"required"`
	FileName    string `json:"fileName" validate:"required,max=1024"`
	ContentType string `json:"contentType" validate:"required"`
	Size        *int64 `json:"size" validate:"omitnil,gt=0"`
}

// PresignDownloadInput requests a signed download URL.
type PresignDownloadInput struct {
	Key string `json:"key" validate:"required,min=3"`
}

// ConfirmImageInput records an uploaded object as a movie image.
type ConfirmImageInput struct {
	Key          string          `json:"key" validate:"required,min=3"`
	Type         types.ImageType `json:"type" validate:"omitempty,oneof=POSTER GALLERY"`
	SetAsPrimary bool            `json:"setAsPrimary"`
}

// UploadService runs the presign, upload, confirm cycle for movie images.
// The server never handles image bytes; it signs URLs and afterwards
// records what the object store reports.
type UploadService struct {
	movies  MovieRepository
	images  ImageRepository
	objects ObjectGateway
	events  EventPublisher
	logger  *zap.Logger
	now     func() time.Time
}

func NewUploadService(movies MovieRepository, images ImageRepository, objects ObjectGateway, events EventPublisher, logger *zap.Logger) *UploadService {
	return &UploadService{
		movies:  movies,
		images:  images,
		objects: objects,
		events:  events,
		logger:  nopIfNil(logger),
		now:     time.Now,
	}
}

// PresignUpload returns a signed PUT URL for a new image of the requester's
// movie.
func (s *UploadService) PresignUpload(ctx context.Context, requesterID string, in PresignUploadInput) (storage.Presigned, error) {
	in.MovieID = strings.TrimSpace(in.MovieID)
	in.ContentType = strings.ToLower(strings.TrimSpace(in.ContentType))
	if err := validateStruct(in); err != nil {
		return storage.Presigned{}, err
	}
	if !isAllowedImageType(in.ContentType) {
		return storage.Presigned{}, invalid("contentType", "must be one of: image/jpeg, image/png, image/webp, image/avif")
	}
	if in.Size != nil && *in.Size > MaxImageBytes {
		return storage.Presigned{}, invalid("size", fmt.Sprintf("must be at most %d bytes", MaxImageBytes))
	}

	if _, err := s.ownedMovie(ctx, requesterID, in.MovieID); err != nil {
		return storage.Presigned{}, err
	}

	key := buildKey(in.MovieID, in.FileName, s.now())
	return s.objects.PresignPut(ctx, key, in.ContentType)
}

// PresignDownload returns a signed GET URL for key without checking that
// the object exists.
func (s *UploadService) PresignDownload(ctx context.Context, in PresignDownloadInput) (storage.Presigned, error) {
	in.Key = strings.TrimSpace(in.Key)
	if err := validateStruct(in); err != nil {
		return storage.Presigned{}, err
	}
	return s.objects.PresignGet(ctx, in.Key)
}

// Confirm records an uploaded object as an image of the requester's movie.
// Content type, size and etag come from the object store, never from the
// client.
func (s *UploadService) Confirm(ctx context.Context, requesterID, movieID string, in ConfirmImageInput) (types.Image, error) {
	if _, err := s.ownedMovie(ctx, requesterID, movieID); err != nil {
		return types.Image{}, err
	}

	in.Key = strings.TrimSpace(in.Key)
	if err := validateStruct(in); err != nil {
		return types.Image{}, err
	}
	if in.Type == "" {
		in.Type = types.ImageTypeGallery
	}
	if !strings.HasPrefix(in.Key, keyPrefix(movieID)) {
		return types.Image{}, invalid("key", "does not belong to this movie")
	}

	info, err := s.objects.Stat(ctx, in.Key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return types.Image{}, notFound("object")
		}
		return types.Image{}, fmt.Errorf("stat object: %w", err)
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(info.ContentType, ";", 2)[0]))
	if !isAllowedImageType(contentType) {
		return types.Image{}, invalid("key", "stored object is not an allowed image type")
	}
	if info.Size > MaxImageBytes {
		return types.Image{}, invalid("key", fmt.Sprintf("stored object exceeds %d bytes", MaxImageBytes))
	}

	image, err := s.images.Create(ctx, types.Image{
		MovieID:     movieID,
		Key:         in.Key,
		Bucket:      s.objects.Bucket(),
		ContentType: contentType,
		Size:        info.Size,
		ETag:        info.ETag,
		Type:        in.Type,
		IsPrimary:   in.SetAsPrimary,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return types.Image{}, notFound("movie")
		case errors.Is(err, store.ErrConflict):
			return types.Image{}, conflict("image already confirmed")
		}
		return types.Image{}, err
	}

	s.logger.Info("image confirmed",
		zap.String("movie_id", movieID),
		zap.String("image_id", image.ID),
		zap.Bool("primary", image.IsPrimary))
	publish(ctx, s.events, s.logger, EventImageConfirmed, ImageConfirmed{
		MovieID:   image.MovieID,
		ImageID:   image.ID,
		Key:       image.Key,
		Type:      string(image.Type),
		IsPrimary: image.IsPrimary,
	})
	return image, nil
}

// ListImages returns every confirmed image of a movie.
func (s *UploadService) ListImages(ctx context.Context, movieID string) ([]types.Image, error) {
	if _, err := s.movie(ctx, movieID); err != nil {
		return nil, err
	}
	return s.images.ListByMovie(ctx, movieID)
}

// PrimaryImageURL returns a signed download URL for the movie's primary
// image.
func (s *UploadService) PrimaryImageURL(ctx context.Context, movieID string) (storage.Presigned, error) {
	if _, err := s.movie(ctx, movieID); err != nil {
		return storage.Presigned{}, err
	}
	image, err := s.images.GetPrimary(ctx, movieID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return storage.Presigned{}, notFound("primary image")
		}
		return storage.Presigned{}, err
	}
	return s.objects.PresignGet(ctx, image.Key)
}

func (s *UploadService) movie(ctx context.Context, movieID string) (types.Movie, error) {
	movie, err := s.movies.GetByID(ctx, movieID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Movie{}, notFound("movie")
		}
		return types.Movie{}, err
	}
	return movie, nil
}

// Authorize reports whether requesterID may attach images to the movie.
func (s *UploadService) Authorize(ctx context.Context, requesterID, movieID string) error {
	_, err := s.ownedMovie(ctx, requesterID, movieID)
	return err
}

func (s *UploadService) ownedMovie(ctx context.Context, requesterID, movieID string) (types.Movie, error) {
	movie, err := s.movie(ctx, movieID)
	if err != nil {
		return types.Movie{}, err
	}
	if err := AssertOwnership(requesterID, movie.UserID); err != nil {
		return types.Movie{}, err
	}
	return movie, nil
}

func isAllowedImageType(contentType string) bool {
	_, ok := allowedImageTypes[contentType]
	return ok
}

// sanitizeFileName keeps only the base name, replaces characters outside
// [a-zA-Z0-9._-] with '_' and truncates to 200 characters.
func sanitizeFileName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = unsafeFileNameChars.ReplaceAllString(name, "_")
	if len(name) > maxFileNameLength {
		name = name[:maxFileNameLength]
	}
	if name == "" {
		name = "file"
	}
	return name
}

func keyPrefix(movieID string) string {
	return "movies/" + movieID + "/"
}

// buildKey namespaces an object key by movie and upload time.
func buildKey(movieID, fileName string, now time.Time) string {
	return fmt.Sprintf("%s%d-%s", keyPrefix(movieID), now.UnixMilli(), sanitizeFileName(fileName))
}
