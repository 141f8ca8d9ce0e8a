package tmdb

import (
	"context"
)

// API defines the catalog operations offered by Client
type API interface {
	// TestConnection verifies the credentials against the configuration endpoint
	TestConnection(ctx context.Context) error

	// FetchPopular returns one page of popular movies
	FetchPopular(ctx context.Context, page int) ([]Movie, error)

	// Search returns one page of movies matching query
	Search(ctx context.Context, query string, page int) ([]Movie, error)

	// FetchByGenre returns one page of movies tagged with genreID
	FetchByGenre(ctx context.Context, genreID string, page int) ([]Movie, error)

	// GetDetail returns the full record for one movie
	GetDetail(ctx context.Context, movieID int64) (*MovieDetail, error)

	// GetTrailerKey returns the YouTube key of the movie's trailer, or "" if there is none
	GetTrailerKey(ctx context.Context, movieID int64) (string, error)

	// GetCredits returns the cast ordered by billing
	GetCredits(ctx context.Context, movieID int64) ([]CastMember, error)

	// GetGenres returns the movie genre list
	GetGenres(ctx context.Context) ([]Genre, error)
}

var _ API = (*Client)(nil)
