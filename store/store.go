// Package store persists per-user favorites and per-movie reviews.
//
// Two backends implement Store: a relational one on gorm (sqlite or postgres)
// and an embedded key-value one on badger that keeps the document layout
// users/{uid}/favorites/{movieId} and movies/{movieId}/reviews/{uid}.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrInvalidKey is returned for empty user ids or ids that cannot be used as a key segment
	ErrInvalidKey = errors.New("invalid store key")
	// ErrUnknownDriver is returned by Open for an unsupported driver
	ErrUnknownDriver = errors.New("unknown store driver")
)

// FavoriteMovie is the reduced movie projection kept with a favorite.
type FavoriteMovie struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	PosterPath string `json:"poster_path,omitempty"`
}

// Favorite is a stored favorite of one user.
type Favorite struct {
	FavoriteMovie
	AddedAt time.Time `json:"added_at"`
}

// Author identifies the writer of a review.
type Author struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// Review is a user's rating of a movie. There is at most one per (movie, user).
type Review struct {
	MovieID     int64     `json:"movie_id"`
	UserID      string    `json:"user_id"`
	AuthorName  string    `json:"author_name"`
	AuthorImage string    `json:"author_image,omitempty"`
	Rating      int       `json:"rating"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the favorites and reviews persistence contract.
//
// Removing a missing favorite or deleting a missing review is not an error.
// DeleteReview does not check authorship; callers must.
type Store interface {
	AddFavorite(ctx context.Context, userID string, movie FavoriteMovie) error
	RemoveFavorite(ctx context.Context, userID string, movieID int64) error
	IsFavorite(ctx context.Context, userID string, movieID int64) (bool, error)
	// GetFavorites returns the user's favorites, newest first.
	GetFavorites(ctx context.Context, userID string) ([]Favorite, error)
	// AddOrUpdateReview writes the author's review, replacing any previous one
	// and stamping CreatedAt with the write time.
	AddOrUpdateReview(ctx context.Context, movieID int64, author Author, rating int, text string) error
	// GetReviewsForMovie returns the movie's reviews, newest first.
	GetReviewsForMovie(ctx context.Context, movieID int64) ([]Review, error)
	DeleteReview(ctx context.Context, movieID int64, userID string) error
	Close() error
}

func checkUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidKey)
	}
	if strings.Contains(userID, "/") {
		return fmt.Errorf("%w: user id %q contains '/'", ErrInvalidKey, userID)
	}
	return nil
}

func sortFavorites(favs []Favorite) {
	sort.SliceStable(favs, func(i, j int) bool {
		if !favs[i].AddedAt.Equal(favs[j].AddedAt) {
			return favs[i].AddedAt.After(favs[j].AddedAt)
		}
		return favs[i].ID < favs[j].ID
	})
}

func sortReviews(reviews []Review) {
	sort.SliceStable(reviews, func(i, j int) bool {
		if !reviews[i].CreatedAt.Equal(reviews[j].CreatedAt) {
			return reviews[i].CreatedAt.After(reviews[j].CreatedAt)
		}
		return reviews[i].UserID < reviews[j].UserID
	})
}
