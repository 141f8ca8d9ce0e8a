// Package detail loads everything shown for one movie and applies the signed-in
// user's favorite and review mutations.
package detail

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/cinescope/auth"
	"github.com/s0up4200/cinescope/store"
	"github.com/s0up4200/cinescope/tmdb"
)

// YouTubeEmbedURL is the prefix for trailer embeds.
const YouTubeEmbedURL = "https://www.youtube.com/embed/"

var (
	// ErrNotAuthenticated is returned by mutations without a signed-in user
	ErrNotAuthenticated = errors.New("sign in required")
	// ErrNotAuthor is returned when deleting someone else's review
	ErrNotAuthor = errors.New("only the author can delete a review")
	// ErrClosed is returned by mutations on a closed modal
	ErrClosed = errors.New("modal is closed")
)

// ValidationError rejects user input before it reaches the store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Branch names one of the concurrent loads of Open.
type Branch string

const (
	BranchDetail   Branch = "detail"
	BranchTrailer  Branch = "trailer"
	BranchCast     Branch = "cast"
	BranchFavorite Branch = "favorite"
	BranchReviews  Branch = "reviews"
)

// Catalog is the part of the catalog client the modal needs.
type Catalog interface {
	GetDetail(ctx context.Context, movieID int64) (*tmdb.MovieDetail, error)
	GetTrailerKey(ctx context.Context, movieID int64) (string, error)
	GetCredits(ctx context.Context, movieID int64) ([]tmdb.CastMember, error)
}

// Users reports the signed-in user, or nil.
type Users interface {
	Current() *auth.User
}

// Controller opens modals.
type Controller struct {
	catalog Catalog
	store   store.Store
	users   Users
	logger  zerolog.Logger
}

// NewController creates a detail controller.
func NewController(catalog Catalog, st store.Store, users Users, logger zerolog.Logger) *Controller {
	return &Controller{
		catalog: catalog,
		store:   st,
		users:   users,
		logger:  logger,
	}
}

// Attach returns a modal for movieID without loading anything. Review
// mutations work on it; the favorite flag starts out false.
func (c *Controller) Attach(movieID int64) *Modal {
	return &Modal{
		controller: c,
		summary:    tmdb.Movie{ID: movieID},
		failures:   make(map[Branch]error),
	}
}

// Open loads a movie by id.
func (c *Controller) Open(ctx context.Context, movieID int64) *Modal {
	return c.OpenMovie(ctx, tmdb.Movie{ID: movieID})
}

// OpenMovie loads detail, trailer, cast, favorite status and reviews
// concurrently. Every branch runs to completion; a failed branch is recorded in
// Failures and leaves its fields at the zero value. Favorite status and reviews
// come from the store and are only loaded for a signed-in user.
func (c *Controller) OpenMovie(ctx context.Context, summary tmdb.Movie) *Modal {
	m := &Modal{
		controller: c,
		summary:    summary,
		failures:   make(map[Branch]error),
	}
	id := summary.ID
	user := c.users.Current()

	g, ctx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	// each branch records its own outcome and never fails the group
	run := func(branch Branch, load func() error) {
		g.Go(func() error {
			if err := load(); err != nil {
				c.logger.Warn().
					Err(err).
					Int64("movie_id", id).
					Str("branch", string(branch)).
					Msg("Failed to load movie detail branch")
				mu.Lock()
				m.failures[branch] = err
				mu.Unlock()
			}
			return nil
		})
	}

	run(BranchDetail, func() error {
		detail, err := c.catalog.GetDetail(ctx, id)
		if err != nil {
			return err
		}
		mu.Lock()
		m.detail = detail
		mu.Unlock()
		return nil
	})
	run(BranchTrailer, func() error {
		key, err := c.catalog.GetTrailerKey(ctx, id)
		if err != nil {
			return err
		}
		mu.Lock()
		m.trailerKey = key
		mu.Unlock()
		return nil
	})
	run(BranchCast, func() error {
		cast, err := c.catalog.GetCredits(ctx, id)
		if err != nil {
			return err
		}
		mu.Lock()
		m.cast = cast
		mu.Unlock()
		return nil
	})
	if user != nil {
		run(BranchFavorite, func() error {
			fav, err := c.store.IsFavorite(ctx, user.ID, id)
			if err != nil {
				return err
			}
			mu.Lock()
			m.favorite = fav
			mu.Unlock()
			return nil
		})
		run(BranchReviews, func() error {
			reviews, err := c.store.GetReviewsForMovie(ctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			m.reviews = reviews
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	c.logger.Debug().
		Int64("movie_id", id).
		Int("failures", len(m.failures)).
		Bool("signed_in", user != nil).
		Msg("Opened movie detail")

	return m
}
