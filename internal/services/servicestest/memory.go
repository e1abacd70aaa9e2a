// Package servicestest provides in-memory repositories, an object gateway
// and an event recorder for exercising services without PostgreSQL or an
// object store.
package servicestest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cinevault/apiserver/internal/storage"
	"github.com/cinevault/apiserver/internal/store"
	"github.com/cinevault/apiserver/types"
	"github.com/google/uuid"
)

// Users is an in-memory user repository with a unique email index.
type Users struct {
	mu    sync.Mutex
	byID  map[string]types.User
	order []string
}

func NewUsers() *Users {
	return &Users{byID: make(map[string]types.User)}
}

func (u *Users) GetByID(_ context.Context, id string) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.byID {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (u *Users) List(_ context.Context, offset, limit int) ([]types.User, int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	all := make([]types.User, 0, len(u.order))
	for i := len(u.order) - 1; i >= 0; i-- {
		all = append(all, u.byID[u.order[i]])
	}
	return window(all, offset, limit), len(all), nil
}

func (u *Users) Create(_ context.Context, user types.User) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, existing := range u.byID {
		if existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	u.byID[user.ID] = user
	u.order = append(u.order, user.ID)
	return user, nil
}

func (u *Users) Update(_ context.Context, user types.User) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.byID[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	for id, existing := range u.byID {
		if id != user.ID && existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	user.UpdatedAt = time.Now().UTC()
	u.byID[user.ID] = user
	return user, nil
}

func (u *Users) Delete(_ context.Context, id string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(u.byID, id)
	for i, existing := range u.order {
		if existing == id {
			u.order = append(u.order[:i], u.order[i+1:]...)
			break
		}
	}
	return nil
}

func (u *Users) ConfirmEmail(_ context.Context, token string, now time.Time) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for id, user := range u.byID {
		if user.ConfirmToken == nil || *user.ConfirmToken != token {
			continue
		}
		if user.ConfirmTokenExpires == nil || !user.ConfirmTokenExpires.After(now) {
			return false, nil
		}
		user.Confirmed = true
		user.ConfirmToken = nil
		user.ConfirmTokenExpires = nil
		u.byID[id] = user
		return true, nil
	}
	return false, nil
}

// Movies is an in-memory movie repository that mirrors the SQL ordering
// and search semantics.
type Movies struct {
	mu   sync.Mutex
	byID map[string]types.Movie
	seq  int64
}

func NewMovies() *Movies {
	return &Movies{byID: make(map[string]types.Movie)}
}

func (m *Movies) GetByID(_ context.Context, id string) (types.Movie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	movie, ok := m.byID[id]
	if !ok {
		return types.Movie{}, store.ErrNotFound
	}
	return movie, nil
}

func (m *Movies) exists(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byID[id]
	return ok
}

func (m *Movies) List(_ context.Context, filter types.MovieFilter, offset, limit int) ([]types.Movie, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]types.Movie, 0, len(m.byID))
	for _, movie := range m.byID {
		if matches(movie, filter) {
			matched = append(matched, movie)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ReleaseDate.Equal(matched[j].ReleaseDate) {
			return matched[i].ReleaseDate.After(matched[j].ReleaseDate)
		}
		return matched[i].Seq < matched[j].Seq
	})
	return window(matched, offset, limit), len(matched), nil
}

func (m *Movies) Create(_ context.Context, movie types.Movie) (types.Movie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if movie.ID == "" {
		movie.ID = uuid.NewString()
	}
	if movie.Genres == nil {
		movie.Genres = []string{}
	}
	m.seq++
	movie.Seq = m.seq
	now := time.Now().UTC()
	movie.CreatedAt, movie.UpdatedAt = now, now
	m.byID[movie.ID] = movie
	return movie, nil
}

func (m *Movies) Update(_ context.Context, movie types.Movie) (types.Movie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.byID[movie.ID]
	if !ok {
		return types.Movie{}, store.ErrNotFound
	}
	movie.UserID = existing.UserID
	movie.Seq = existing.Seq
	movie.CreatedAt = existing.CreatedAt
	movie.UpdatedAt = time.Now().UTC()
	m.byID[movie.ID] = movie
	return movie, nil
}

func (m *Movies) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func matches(movie types.Movie, filter types.MovieFilter) bool {
	if filter.OwnerID != "" && movie.UserID != filter.OwnerID {
		return false
	}
	if filter.Status != "" && movie.Status != filter.Status {
		return false
	}
	search := strings.TrimSpace(filter.Search)
	if search == "" {
		return true
	}
	if strings.Contains(strings.ToLower(movie.Title), strings.ToLower(search)) {
		return true
	}
	for _, term := range strings.Split(search, ",") {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		for _, genre := range movie.Genres {
			if strings.ToLower(genre) == term {
				return true
			}
		}
	}
	return false
}

// Images is an in-memory image repository. Create runs under one lock so
// demote-then-insert is atomic, like the SQL transaction.
type Images struct {
	mu     sync.Mutex
	movies *Movies
	all    []types.Image
}

func NewImages(movies *Movies) *Images {
	return &Images{movies: movies}
}

func (i *Images) ListByMovie(_ context.Context, movieID string) ([]types.Image, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]types.Image, 0)
	for _, image := range i.all {
		if image.MovieID == movieID {
			out = append(out, image)
		}
	}
	return out, nil
}

func (i *Images) GetPrimary(_ context.Context, movieID string) (types.Image, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, image := range i.all {
		if image.MovieID == movieID && image.IsPrimary {
			return image, nil
		}
	}
	return types.Image{}, store.ErrNotFound
}

func (i *Images) Create(_ context.Context, image types.Image) (types.Image, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.movies != nil && !i.movies.exists(image.MovieID) {
		return types.Image{}, store.ErrNotFound
	}
	for _, existing := range i.all {
		if existing.Key == image.Key {
			return types.Image{}, store.ErrConflict
		}
	}
	if image.IsPrimary {
		for idx := range i.all {
			if i.all[idx].MovieID == image.MovieID {
				i.all[idx].IsPrimary = false
			}
		}
	}
	if image.ID == "" {
		image.ID = uuid.NewString()
	}
	image.CreatedAt = time.Now().UTC()
	i.all = append(i.all, image)
	return image, nil
}

// Objects is a fake object store. Tests place objects with Put to simulate
// a client upload.
type Objects struct {
	mu      sync.Mutex
	bucket  string
	expiry  time.Duration
	objects map[string]storage.ObjectInfo
	deleted []string
}

func NewObjects(bucket string) *Objects {
	return &Objects{bucket: bucket, expiry: 15 * time.Minute, objects: make(map[string]storage.ObjectInfo)}
}

// Put records an object as uploaded.
func (o *Objects) Put(key string, info storage.ObjectInfo) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[key] = info
}

// Deleted returns the keys removed through Delete.
func (o *Objects) Deleted() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.deleted...)
}

func (o *Objects) PresignPut(_ context.Context, key, contentType string) (storage.Presigned, error) {
	return o.presigned("PUT", key, contentType), nil
}

func (o *Objects) PresignGet(_ context.Context, key string) (storage.Presigned, error) {
	return o.presigned("GET", key, ""), nil
}

func (o *Objects) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	info, ok := o.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return info, nil
}

func (o *Objects) Delete(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, key)
	o.deleted = append(o.deleted, key)
	return nil
}

func (o *Objects) Bucket() string {
	return o.bucket
}

func (o *Objects) presigned(method, key, contentType string) storage.Presigned {
	url := fmt.Sprintf("https://objects.test/%s/%s?method=%s", o.bucket, key, method)
	if contentType != "" {
		url += "&content-type=" + contentType
	}
	return storage.Presigned{URL: url, Key: key, ExpiresIn: int(o.expiry / time.Second)}
}

// Event is one published event.
type Event struct {
	Channel string
	Payload any
}

// Events records published events.
type Events struct {
	mu     sync.Mutex
	events []Event
}

func (e *Events) PublishEvent(_ context.Context, channel string, payload any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, Event{Channel: channel, Payload: payload})
	return nil
}

// Published returns the recorded events in order.
func (e *Events) Published() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Event(nil), e.events...)
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
