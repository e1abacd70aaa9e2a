package types

import "time"

// MovieStatus is the production lifecycle state of a movie.
type MovieStatus string

const (
	MovieStatusPlanned      MovieStatus = "PLANNED"
	MovieStatusInProduction MovieStatus = "IN_PRODUCTION"
	MovieStatusReleased     MovieStatus = "RELEASED"
	MovieStatusCancelled    MovieStatus = "CANCELLED"
)

// Valid reports whether s is one of the known statuses.
func (s MovieStatus) Valid() bool {
	switch s {
	case MovieStatusPlanned, MovieStatusInProduction, MovieStatusReleased, MovieStatusCancelled:
		return true
	}
	return false
}

// DateLayout is the wire format of calendar dates such as a release date.
const DateLayout = "2006-01-02"

// Movie is a catalog entry owned by the user that created it.
//
// Optional descriptive fields and metrics are nil when unset. Only the owner
// may update or delete a movie; any authenticated user may read it.
type Movie struct {
	// ID is the unique identifier of the movie (a UUID string).
	ID string `db:"id"`

	// UserID identifies the owning user.
	UserID string `db:"user_id"`

	// Title is the display title. It is never empty.
	Title string `db:"title"`

	OriginalTitle    *string `db:"original_title"`
	Tagline          *string `db:"tagline"`
	Description      *string `db:"description"`
	OriginalLanguage *string `db:"original_language"`
	PosterURL        *string `db:"poster_url"`
	TrailerURL       *string `db:"trailer_url"`

	// ReleaseDate is a calendar date; the time of day is always midnight UTC.
	ReleaseDate time.Time `db:"release_date"`

	// DurationMinutes is the running time. It is always positive.
	DurationMinutes int `db:"duration_minutes"`

	Status MovieStatus `db:"status"`

	Popularity  *float64 `db:"popularity"`
	VoteCount   *int     `db:"vote_count"`
	VoteAverage *float64 `db:"vote_average"`
	BudgetUSD   *int64   `db:"budget_usd"`
	RevenueUSD  *int64   `db:"revenue_usd"`
	ProfitUSD   *int64   `db:"profit_usd"`

	// Genres is an unordered set of genre labels.
	Genres []string `db:"genres"`

	// Seq is the insertion sequence used to break release-date ties.
	Seq int64 `db:"seq"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// MovieSafe is the JSON representation of a movie returned by the API.
type MovieSafe struct {
	ID               string      `json:"id"`
	UserID           string      `json:"userId"`
	Title            string      `json:"title"`
	OriginalTitle    *string     `json:"originalTitle"`
	Tagline          *string     `json:"tagline"`
	Description      *string     `json:"description"`
	ReleaseDate      string      `json:"releaseDate"`
	DurationMinutes  int         `json:"durationMinutes"`
	Status           MovieStatus `json:"status"`
	OriginalLanguage *string     `json:"originalLanguage"`
	PosterURL        *string     `json:"posterUrl"`
	TrailerURL       *string     `json:"trailerUrl"`
	Popularity       *float64    `json:"popularity"`
	VoteCount        *int        `json:"voteCount"`
	VoteAverage      *float64    `json:"voteAverage"`
	BudgetUSD        *int64      `json:"budgetUSD"`
	RevenueUSD       *int64      `json:"revenueUSD"`
	ProfitUSD        *int64      `json:"profitUSD"`
	Genres           []string    `json:"genres"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// Safe returns the API projection of the movie.
func (m Movie) Safe() MovieSafe {
	genres := m.Genres
	if genres == nil {
		genres = []string{}
	}
	return MovieSafe{
		ID:               m.ID,
		UserID:           m.UserID,
		Title:            m.Title,
		OriginalTitle:    m.OriginalTitle,
		Tagline:          m.Tagline,
		Description:      m.Description,
		ReleaseDate:      m.ReleaseDate.Format(DateLayout),
		DurationMinutes:  m.DurationMinutes,
		Status:           m.Status,
		OriginalLanguage: m.OriginalLanguage,
		PosterURL:        m.PosterURL,
		TrailerURL:       m.TrailerURL,
		Popularity:       m.Popularity,
		VoteCount:        m.VoteCount,
		VoteAverage:      m.VoteAverage,
		BudgetUSD:        m.BudgetUSD,
		RevenueUSD:       m.RevenueUSD,
		ProfitUSD:        m.ProfitUSD,
		Genres:           genres,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// MovieFilter narrows a movie listing.
type MovieFilter struct {
	// OwnerID, when set, restricts the listing to one owner's movies.
	OwnerID string

	// Status, when set, matches exactly.
	Status MovieStatus

	// Search matches titles by case-insensitive substring, or genres
	// case-insensitively against any comma-separated term.
	Search string
}
