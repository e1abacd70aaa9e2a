package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cinevault/apiserver/internal/services/servicestest"
	"github.com/cinevault/apiserver/internal/storage"
	"github.com/cinevault/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uploadFixture struct {
	svc     *UploadService
	movieID string
	objects *servicestest.Objects
	images  *servicestest.Images
	events  *servicestest.Events
}

func newUploadFixture(t *testing.T) uploadFixture {
	t.Helper()
	movies := servicestest.NewMovies()
	images := servicestest.NewImages(movies)
	objects := servicestest.NewObjects("cinevault")
	events := &servicestest.Events{}

	movie, err := movies.Create(context.Background(), types.Movie{
		UserID:          "ana",
		Title:           "Dune",
		ReleaseDate:     time.Date(2021, 10, 22, 0, 0, 0, 0, time.UTC),
		DurationMinutes: 155,
		Status:          types.MovieStatusReleased,
	})
	require.NoError(t, err)

	svc := NewUploadService(movies, images, objects, events, nil)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return uploadFixture{svc: svc, movieID: movie.ID, objects: objects, images: images, events: events}
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "poster_final_.png", sanitizeFileName("../../etc/poster final!.png"))
	assert.Equal(t, "cover.jpg", sanitizeFileName(`C:\Users\ana\cover.jpg`))
	assert.Equal(t, "file", sanitizeFileName("dir/"))
	assert.Len(t, sanitizeFileName(strings.Repeat("a", 300)+".png"), 200)
	assert.Equal(t, "_t_.png", sanitizeFileName("ét€.png"))
}

func TestBuildKey(t *testing.T) {
	key := buildKey("m-1", "my poster.png", time.UnixMilli(1700000000123))
	assert.Equal(t, "movies/m-1/1700000000123-my_poster.png", key)
}

func TestPresignUpload(t *testing.T) {
	f := newUploadFixture(t)

	presigned, err := f.svc.PresignUpload(context.Background(), "ana", PresignUploadInput{
		MovieID:     f.movieID,
		FileName:    "poster.PNG",
		ContentType: "image/png",
		Size:        ptr(int64(1024)),
	})
	require.NoError(t, err)
	assert.Equal(t, "movies/"+f.movieID+"/1700000000000-poster.PNG", presigned.Key)
	assert.Contains(t, presigned.URL, "method=PUT")
	assert.Equal(t, 900, presigned.ExpiresIn)
}

func TestPresignUploadRejections(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()

	_, err := f.svc.PresignUpload(ctx, "ana", PresignUploadInput{MovieID: f.movieID, FileName: "a.gif", ContentType: "image/gif"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.PresignUpload(ctx, "ana", PresignUploadInput{
		MovieID: f.movieID, FileName: "a.png", ContentType: "image/png", Size: ptr(MaxImageBytes + 1),
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.PresignUpload(ctx, "bob", PresignUploadInput{MovieID: f.movieID, FileName: "a.png", ContentType: "image/png"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.PresignUpload(ctx, "ana", PresignUploadInput{MovieID: "missing", FileName: "a.png", ContentType: "image/png"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPresignDownloadDoesNotCheckExistence(t *testing.T) {
	f := newUploadFixture(t)

	presigned, err := f.svc.PresignDownload(context.Background(), PresignDownloadInput{Key: "movies/x/never-uploaded.png"})
	require.NoError(t, err)
	assert.Contains(t, presigned.URL, "method=GET")

	_, err = f.svc.PresignDownload(context.Background(), PresignDownloadInput{Key: " "})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestConfirmUsesStoredMetadata(t *testing.T) {
	f := newUploadFixture(t)
	key := "movies/" + f.movieID + "/1-poster.png"
	f.objects.Put(key, storage.ObjectInfo{ContentType: "image/png", Size: 4096, ETag: "etag-1"})

	image, err := f.svc.Confirm(context.Background(), "ana", f.movieID, ConfirmImageInput{Key: key})
	require.NoError(t, err)
	assert.Equal(t, "image/png", image.ContentType)
	assert.EqualValues(t, 4096, image.Size)
	assert.Equal(t, "etag-1", image.ETag)
	assert.Equal(t, "cinevault", image.Bucket)
	assert.Equal(t, types.ImageTypeGallery, image.Type)
	assert.False(t, image.IsPrimary)

	published := f.events.Published()
	require.Len(t, published, 1)
	assert.Equal(t, EventImageConfirmed, published[0].Channel)
}

func TestConfirmFailures(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()
	prefix := "movies/" + f.movieID + "/"

	_, err := f.svc.Confirm(ctx, "ana", f.movieID, ConfirmImageInput{Key: prefix + "missing.png"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Confirm(ctx, "ana", f.movieID, ConfirmImageInput{Key: "movies/other/1-a.png"})
	assert.ErrorIs(t, err, ErrValidation)

	f.objects.Put(prefix+"doc.pdf", storage.ObjectInfo{ContentType: "application/pdf", Size: 10})
	_, err = f.svc.Confirm(ctx, "ana", f.movieID, ConfirmImageInput{Key: prefix + "doc.pdf"})
	assert.ErrorIs(t, err, ErrValidation)

	f.objects.Put(prefix+"huge.png", storage.ObjectInfo{ContentType: "image/png", Size: MaxImageBytes + 1})
	_, err = f.svc.Confirm(ctx, "ana", f.movieID, ConfirmImageInput{Key: prefix + "huge.png"})
	assert.ErrorIs(t, err, ErrValidation)

	f.objects.Put(prefix+"ok.png", storage.ObjectInfo{ContentType: "image/png", Size: 10})
	_, err = f.svc.Confirm(ctx, "bob", f.movieID, ConfirmImageInput{Key: prefix + "ok.png"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Confirm(ctx, "bob", f.movieID, ConfirmImageInput{Key: "movies/other/1-a.png"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Confirm(ctx, "bob", f.movieID, ConfirmImageInput{})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, f.svc.Authorize(ctx, "bob", f.movieID), ErrForbidden)
	assert.NoError(t, f.svc.Authorize(ctx, "ana", f.movieID))

	_, err = f.svc.Confirm(ctx, "ana", f.movieID, ConfirmImageInput{Key: prefix + "ok.png", Type: "BANNER"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Confirm(ctx, "ana", f.movieID, ConfirmImageInput{Key: prefix + "ok.png"})
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, "ana", f.movieID, ConfirmImageInput{Key: prefix + "ok.png"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestConfirmPrimarySwapsSequentially(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()

	var last types.Image
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		key := "movies/" + f.movieID + "/" + name
		f.objects.Put(key, storage.ObjectInfo{ContentType: "image/png", Size: 1})
		image, err := f.svc.Confirm(ctx, "ana", f.movieID, ConfirmImageInput{Key: key, Type: types.ImageTypePoster, SetAsPrimary: true})
		require.NoError(t, err)
		last = image
	}

	images, err := f.svc.ListImages(ctx, f.movieID)
	require.NoError(t, err)
	require.Len(t, images, 3)
	primaries := 0
	for _, image := range images {
		if image.IsPrimary {
			primaries++
			assert.Equal(t, last.ID, image.ID)
		}
	}
	assert.Equal(t, 1, primaries)

	poster, err := f.svc.PrimaryImageURL(ctx, f.movieID)
	require.NoError(t, err)
	assert.Equal(t, last.Key, poster.Key)
}

func TestConfirmPrimaryConcurrently(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		key := "movies/" + f.movieID + "/" + strings.Repeat("x", i+1) + ".png"
		f.objects.Put(key, storage.ObjectInfo{ContentType: "image/png", Size: 1})
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, err := f.svc.Confirm(ctx, "ana", f.movieID, ConfirmImageInput{Key: key, SetAsPrimary: true})
			assert.NoError(t, err)
		}(key)
	}
	wg.Wait()

	images, err := f.svc.ListImages(ctx, f.movieID)
	require.NoError(t, err)
	require.Len(t, images, n)
	primaries := 0
	for _, image := range images {
		if image.IsPrimary {
			primaries++
		}
	}
	assert.Equal(t, 1, primaries)
	// The last committed insert holds the flag.
	assert.True(t, images[n-1].IsPrimary)
}

func TestPrimaryImageURLWithoutPrimary(t *testing.T) {
	f := newUploadFixture(t)

	_, err := f.svc.PrimaryImageURL(context.Background(), f.movieID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.ListImages(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
