package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cinevault/apiserver/internal/store"
	"github.com/cinevault/apiserver/types"
	"go.uber.org/zap"
)

const (
	defaultMoviePageSize = 12
	maxSearchLength      = 200
)

// MovieRepository defines persistence operations for movies.
type MovieRepository interface {
	GetByID(ctx context.Context, id string) (types.Movie, error)
	List(ctx context.Context, filter types.MovieFilter, offset, limit int) ([]types.Movie, int, error)
	Create(ctx context.Context, movie types.Movie) (types.Movie, error)
	Update(ctx context.Context, movie types.Movie) (types.Movie, error)
	Delete(ctx context.Context, id string) error
}

// MovieInput carries movie fields for both create and partial update. A nil
// field is "not provided". Genres distinguishes absent (nil) from empty.
type MovieInput struct {
	Title            *string            `json:"title" validate:"omitnil,min=1,max=300"`
	OriginalTitle    *string            `json:"originalTitle" validate:"omitnil,min=1,max=300"`
	Tagline          *string            `json:"tagline" validate:"omitnil,max=500"`
	Description      *string            `json:"description"`
	ReleaseDate      *string            `json:"releaseDate"`
	DurationMinutes  *int               `json:"durationMinutes" validate:"omitnil,gt=0"`
	Status           *types.MovieStatus `json:"status" validate:"omitnil,oneof=PLANNED IN_PRODUCTION RELEASED CANCELLED"`
	OriginalLanguage *string            `json:"originalLanguage" validate:"omitnil,max=20"`
	PosterURL        *string            `json:"posterUrl" validate:"omitnil,url"`
	TrailerURL       *string            `json:"trailerUrl" validate:"omitnil,url"`
	Popularity       *float64           `json:"popularity"`
	VoteCount        *int               `json:"voteCount"`
	VoteAverage      *float64           `json:"voteAverage"`
	BudgetUSD        *int64             `json:"budgetUSD"`
	RevenueUSD       *int64             `json:"revenueUSD"`
	ProfitUSD        *int64             `json:"profitUSD"`
	Genres           []string           `json:"genres" validate:"omitempty,dive,required,max=50"`
}

// MovieQuery selects one page of the catalog.
type MovieQuery struct {
	Page     int
	PageSize int
	Status   string
	Search   string
	// Mine restricts the listing to the requester's own movies.
	Mine bool
}

// MovieService encapsulates movie use-cases. Reads are open to every
// authenticated user; updates and deletes are owner-only.
type MovieService struct {
	movies  MovieRepository
	images  ImageRepository
	objects ObjectGateway
	logger  *zap.Logger
}

// NewMovieService builds a MovieService. images and objects are used to
// remove stored image files when a movie is deleted and may be nil.
func NewMovieService(movies MovieRepository, images ImageRepository, objects ObjectGateway, logger *zap.Logger) *MovieService {
	return &MovieService{movies: movies, images: images, objects: objects, logger: nopIfNil(logger)}
}

// Create validates input and stores a movie owned by ownerID.
func (s *MovieService) Create(ctx context.Context, ownerID string, in MovieInput) (types.MovieSafe, error) {
	in = in.normalized()

	var missing *ValidationError
	need := func(ok bool, path string) {
		if ok {
			return
		}
		if missing == nil {
			missing = &ValidationError{Message: "Validation failed"}
		}
		missing.Details = append(missing.Details, FieldError{Path: path, Message: "is required"})
	}
	need(in.Title != nil, "title")
	need(in.ReleaseDate != nil, "releaseDate")
	need(in.DurationMinutes != nil, "durationMinutes")

	movie := types.Movie{UserID: ownerID, Status: types.MovieStatusPlanned, Genres: []string{}}
	if err := merge(missing, in.applyTo(&movie)); err != nil {
		return types.MovieSafe{}, err
	}

	created, err := s.movies.Create(ctx, movie)
	if err != nil {
		return types.MovieSafe{}, err
	}
	s.logger.Info("movie created", zap.String("movie_id", created.ID), zap.String("user_id", ownerID))
	return created.Safe(), nil
}

// List returns one page of movies ordered by release date, newest first.
func (s *MovieService) List(ctx context.Context, requesterID string, q MovieQuery) (Page[types.MovieSafe], error) {
	filter := types.MovieFilter{Search: strings.TrimSpace(q.Search)}
	if q.Status != "" {
		status := types.MovieStatus(strings.ToUpper(strings.TrimSpace(q.Status)))
		if !status.Valid() {
			return Page[types.MovieSafe]{}, invalid("status", "must be one of: PLANNED, IN_PRODUCTION, RELEASED, CANCELLED")
		}
		filter.Status = status
	}
	if len(filter.Search) > maxSearchLength {
		return Page[types.MovieSafe]{}, invalid("search", "must be at most 200 characters")
	}
	if q.Mine {
		filter.OwnerID = requesterID
	}

	page, pageSize := normalizePage(q.Page, q.PageSize, defaultMoviePageSize)
	movies, total, err := s.movies.List(ctx, filter, (page-1)*pageSize, pageSize)
	if err != nil {
		return Page[types.MovieSafe]{}, err
	}
	items := make([]types.MovieSafe, 0, len(movies))
	for _, movie := range movies {
		items = append(items, movie.Safe())
	}
	return Page[types.MovieSafe]{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func (s *MovieService) Get(ctx context.Context, id string) (types.MovieSafe, error) {
	movie, err := s.load(ctx, id)
	if err != nil {
		return types.MovieSafe{}, err
	}
	return movie.Safe(), nil
}

// Authorize reports whether requesterID may mutate the movie. Handlers call
// it before reading a request body.
func (s *MovieService) Authorize(ctx context.Context, requesterID, id string) error {
	movie, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	return AssertOwnership(requesterID, movie.UserID)
}

// Update merges the provided fields into the requester's movie.
func (s *MovieService) Update(ctx context.Context, requesterID, id string, in MovieInput) (types.MovieSafe, error) {
	movie, err := s.load(ctx, id)
	if err != nil {
		return types.MovieSafe{}, err
	}
	if err := AssertOwnership(requesterID, movie.UserID); err != nil {
		return types.MovieSafe{}, err
	}

	in = in.normalized()
	if err := in.applyTo(&movie); err != nil {
		return types.MovieSafe{}, err
	}

	updated, err := s.movies.Update(ctx, movie)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.MovieSafe{}, notFound("movie")
		}
		return types.MovieSafe{}, err
	}
	return updated.Safe(), nil
}

// Remove deletes the requester's movie, then best-effort removes its image
// objects from storage.
func (s *MovieService) Remove(ctx context.Context, requesterID, id string) (DeleteResult, error) {
	movie, err := s.load(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}
	if err := AssertOwnership(requesterID, movie.UserID); err != nil {
		return DeleteResult{}, err
	}

	var images []types.Image
	if s.images != nil && s.objects != nil {
		images, err = s.images.ListByMovie(ctx, movie.ID)
		if err != nil {
			s.logger.Warn("failed to list images before delete", zap.String("movie_id", movie.ID), zap.Error(err))
		}
	}

	if err := s.movies.Delete(ctx, movie.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return DeleteResult{}, notFound("movie")
		}
		return DeleteResult{}, err
	}

	for _, image := range images {
		if err := s.objects.Delete(ctx, image.Key); err != nil {
			s.logger.Warn("failed to delete image object",
				zap.String("movie_id", movie.ID), zap.String("key", image.Key), zap.Error(err))
		}
	}
	s.logger.Info("movie deleted", zap.String("movie_id", movie.ID), zap.Int("images", len(images)))
	return DeleteResult{Deleted: true}, nil
}

func (s *MovieService) load(ctx context.Context, id string) (types.Movie, error) {
	movie, err := s.movies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Movie{}, notFound("movie")
		}
		return types.Movie{}, err
	}
	return movie, nil
}

func (in MovieInput) normalized() MovieInput {
	in.Title = trimPtr(in.Title)
	in.OriginalTitle = trimPtr(in.OriginalTitle)
	in.Tagline = trimPtr(in.Tagline)
	in.Description = trimPtr(in.Description)
	in.ReleaseDate = trimPtr(in.ReleaseDate)
	in.OriginalLanguage = trimPtr(in.OriginalLanguage)
	in.PosterURL = trimPtr(in.PosterURL)
	in.TrailerURL = trimPtr(in.TrailerURL)
	if in.Genres != nil {
		genres := make([]string, 0, len(in.Genres))
		for _, g := range in.Genres {
			genres = append(genres, strings.TrimSpace(g))
		}
		in.Genres = genres
	}
	return in
}

// applyTo validates in and copies every provided field onto movie.
func (in MovieInput) applyTo(movie *types.Movie) error {
	var dateErr *ValidationError
	var releaseDate time.Time
	if in.ReleaseDate != nil {
		parsed, err := parseDate(*in.ReleaseDate)
		if err != nil {
			dateErr = invalid("releaseDate", "must be a valid date (YYYY-MM-DD)")
		}
		releaseDate = parsed
	}
	if err := merge(dateErr, validateStruct(in)); err != nil {
		return err
	}

	if in.Title != nil {
		movie.Title = *in.Title
	}
	if in.ReleaseDate != nil {
		movie.ReleaseDate = releaseDate
	}
	if in.DurationMinutes != nil {
		movie.DurationMinutes = *in.DurationMinutes
	}
	if in.Status != nil {
		movie.Status = *in.Status
	}
	if in.Genres != nil {
		movie.Genres = dedupe(in.Genres)
	}
	setIfProvided(&movie.OriginalTitle, in.OriginalTitle)
	setIfProvided(&movie.Tagline, in.Tagline)
	setIfProvided(&movie.Description, in.Description)
	setIfProvided(&movie.OriginalLanguage, in.OriginalLanguage)
	setIfProvided(&movie.PosterURL, in.PosterURL)
	setIfProvided(&movie.TrailerURL, in.TrailerURL)
	setIfProvided(&movie.Popularity, in.Popularity)
	setIfProvided(&movie.VoteCount, in.VoteCount)
	setIfProvided(&movie.VoteAverage, in.VoteAverage)
	setIfProvided(&movie.BudgetUSD, in.BudgetUSD)
	setIfProvided(&movie.RevenueUSD, in.RevenueUSD)
	setIfProvided(&movie.ProfitUSD, in.ProfitUSD)
	return nil
}

func setIfProvided[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

// parseDate accepts a calendar date or an RFC 3339 timestamp and returns
// midnight UTC of that date.
func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(types.DateLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// dedupe drops repeated genres, comparing case-insensitively and keeping
// the first spelling.
func dedupe(genres []string) []string {
	seen := make(map[string]struct{}, len(genres))
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		key := strings.ToLower(g)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, g)
	}
	return out
}
