package types

import "time"

// ImageType classifies how a movie image is used by clients.
type ImageType string

const (
	ImageTypePoster  ImageType = "POSTER"
	ImageTypeGallery ImageType = "GALLERY"
)

// Valid reports whether t is a known image type.
func (t ImageType) Valid() bool {
	return t == ImageTypePoster || t == ImageTypeGallery
}

// Image is an object-storage file attached to a movie.
//
// Images are only recorded after the uploaded object has been observed in
// storage, so ContentType, Size and ETag always come from the storage
// backend rather than from the client.
type Image struct {
	// ID is the unique identifier of the image record.
	ID string `json:"id" db:"id"`

	// MovieID identifies the movie the image belongs to.
	MovieID string `json:"movieId" db:"movie_id"`

	// Key is the object key inside Bucket. Keys are unique.
	Key string `json:"key" db:"key"`

	// Bucket is the bucket the object was uploaded to.
	Bucket string `json:"bucket" db:"bucket"`

	// ContentType is the MIME type reported by the storage backend.
	ContentType string `json:"contentType" db:"content_type"`

	// Size is the object size in bytes reported by the storage backend.
	Size int64 `json:"size" db:"size"`

	// ETag is the integrity tag reported by the storage backend.
	ETag string `json:"etag" db:"etag"`

	// Type is the role of the image (poster or gallery).
	Type ImageType `json:"type" db:"type"`

	// IsPrimary marks the movie's primary image. At most one image per
	// movie is primary at any time.
	IsPrimary bool `json:"isPrimary" db:"is_primary"`

	// CreatedAt is the timestamp when the image was confirmed.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
