package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cinevault/apiserver/types"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// MovieRepository handles persistence for movies.
type MovieRepository struct {
	db *sql.DB
}

func NewMovieRepository(db *sql.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

const movieColumns = `id, seq, user_id, title, original_title, tagline, description, release_date,
	duration_minutes, status, original_language, poster_url, trailer_url, popularity, vote_count,
	vote_average, budget_usd, revenue_usd, profit_usd, genres, created_at, updated_at`

func scanMovie(row rowScanner) (types.Movie, error) {
	var movie types.Movie
	var status string
	err := row.Scan(
		&movie.ID,
		&movie.Seq,
		&movie.UserID,
		&movie.Title,
		&movie.OriginalTitle,
		&movie.Tagline,
		&movie.Description,
		&movie.ReleaseDate,
		&movie.DurationMinutes,
		&status,
		&movie.OriginalLanguage,
		&movie.PosterURL,
		&movie.TrailerURL,
		&movie.Popularity,
		&movie.VoteCount,
		&movie.VoteAverage,
		&movie.BudgetUSD,
		&movie.RevenueUSD,
		&movie.ProfitUSD,
		pq.Array(&movie.Genres),
		&movie.CreatedAt,
		&movie.UpdatedAt,
	)
	movie.Status = types.MovieStatus(status)
	return movie, err
}

func (r *MovieRepository) GetByID(ctx context.Context, id string) (types.Movie, error) {
	query := `SELECT ` + movieColumns + ` FROM movies WHERE id = $1`
	movie, err := scanMovie(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return types.Movie{}, translate(err)
	}
	return movie, nil
}

// List returns one page of movies matching filter, ordered by release date
// (newest first) with insertion order breaking ties, plus the filtered total.
func (r *MovieRepository) List(ctx context.Context, filter types.MovieFilter, offset, limit int) ([]types.Movie, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 12
	}

	where := make([]string, 0)
	args := make([]any, 0)
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.OwnerID != "" {
		where = append(where, fmt.Sprintf("user_id = %s", arg(filter.OwnerID)))
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = %s", arg(string(filter.Status))))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		title := arg("%" + escapeLike(search) + "%")
		terms := arg(pq.Array(genreTerms(search)))
		where = append(where, fmt.Sprintf(
			"(title ILIKE %s OR EXISTS (SELECT 1 FROM unnest(genres) AS g WHERE lower(g) = ANY(%s)))",
			title, terms))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM movies"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := "SELECT " + movieColumns + " FROM movies" + whereClause +
		fmt.Sprintf(" ORDER BY release_date DESC, seq ASC OFFSET %s LIMIT %s", arg(offset), arg(limit))
	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	movies := make([]types.Movie, 0, limit)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, 0, err
		}
		movies = append(movies, movie)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return movies, total, nil
}

// Create inserts a movie. A missing ID is generated.
func (r *MovieRepository) Create(ctx context.Context, movie types.Movie) (types.Movie, error) {
	if movie.ID == "" {
		movie.ID = uuid.NewString()
	}
	if movie.Genres == nil {
		movie.Genres = []string{}
	}
	now := time.Now().UTC()
	movie.CreatedAt = now
	movie.UpdatedAt = now

	const query = `
		INSERT INTO movies (
			id, user_id, title, original_title, tagline, description, release_date,
			duration_minutes, status, original_language, poster_url, trailer_url, popularity,
			vote_count, vote_average, budget_usd, revenue_usd, profit_usd, genres, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING seq`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		movie.ID,
		movie.UserID,
		movie.Title,
		movie.OriginalTitle,
		movie.Tagline,
		movie.Description,
		movie.ReleaseDate,
		movie.DurationMinutes,
		string(movie.Status),
		movie.OriginalLanguage,
		movie.PosterURL,
		movie.TrailerURL,
		movie.Popularity,
		movie.VoteCount,
		movie.VoteAverage,
		movie.BudgetUSD,
		movie.RevenueUSD,
		movie.ProfitUSD,
		pq.Array(movie.Genres),
		movie.CreatedAt,
		movie.UpdatedAt,
	).Scan(&movie.Seq); err != nil {
		return types.Movie{}, translate(err)
	}
	return movie, nil
}

// Update overwrites every mutable column of the movie. Ownership is not
// changed.
func (r *MovieRepository) Update(ctx context.Context, movie types.Movie) (types.Movie, error) {
	if movie.Genres == nil {
		movie.Genres = []string{}
	}
	movie.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE movies
		SET title = $1,
			original_title = $2,
			tagline = $3,
			description = $4,
			release_date = $5,
			duration_minutes = $6,
			status = $7,
			original_language = $8,
			poster_url = $9,
			trailer_url = $10,
			popularity = $11,
			vote_count = $12,
			vote_average = $13,
			budget_usd = $14,
			revenue_usd = $15,
			profit_usd = $16,
			genres = $17,
			updated_at = $18
		WHERE id = $19`
	result, err := r.db.ExecContext(
		ctx,
		query,
		movie.Title,
		movie.OriginalTitle,
		movie.Tagline,
		movie.Description,
		movie.ReleaseDate,
		movie.DurationMinutes,
		string(movie.Status),
		movie.OriginalLanguage,
		movie.PosterURL,
		movie.TrailerURL,
		movie.Popularity,
		movie.VoteCount,
		movie.VoteAverage,
		movie.BudgetUSD,
		movie.RevenueUSD,
		movie.ProfitUSD,
		pq.Array(movie.Genres),
		movie.UpdatedAt,
		movie.ID,
	)
	if err != nil {
		return types.Movie{}, translate(err)
	}
	if err := expectAffected(result); err != nil {
		return types.Movie{}, err
	}
	return movie, nil
}

// Delete removes the movie. Its images are removed by the foreign key cascade.
func (r *MovieRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM movies WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// genreTerms splits a search string on commas into lowercase, non-empty terms.
func genreTerms(search string) []string {
	parts := strings.Split(search, ",")
	terms := make([]string, 0, len(parts))
	for _, part := range parts {
		if term := strings.ToLower(strings.TrimSpace(part)); term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
