package detail

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/s0up4200/cinescope/auth"
	"github.com/s0up4200/cinescope/store"
	"github.com/s0up4200/cinescope/tmdb"
)

// Rating bounds for reviews
const (
	MinRating = 1
	MaxRating = 5
)

// Modal holds the loaded state of one open movie. It is safe for concurrent use.
type Modal struct {
	controller *Controller
	summary    tmdb.Movie

	mu         sync.Mutex
	closed     bool
	detail     *tmdb.MovieDetail
	trailerKey string
	cast       []tmdb.CastMember
	favorite   bool
	reviews    []store.Review
	failures   map[Branch]error
}

// View is a read-only copy of a modal.
type View struct {
	MovieID    int64             `json:"movie_id"`
	Detail     *tmdb.MovieDetail `json:"detail,omitempty"`
	PosterURL  string            `json:"poster_url"`
	TrailerKey string            `json:"trailer_key,omitempty"`
	TrailerURL string            `json:"trailer_url,omitempty"`
	Cast       []tmdb.CastMember `json:"cast"`
	Favorite   bool              `json:"favorite"`
	Reviews    []store.Review    `json:"reviews"`
	Failures   map[Branch]string `json:"failures,omitempty"`
	SignedIn   bool              `json:"signed_in"`
	OwnReview  *store.Review     `json:"own_review,omitempty"`
}

// MovieID returns the id of the open movie.
func (m *Modal) MovieID() int64 {
	return m.summary.ID
}

// View returns a snapshot of the modal.
func (m *Modal) View() View {
	user := m.controller.users.Current()

	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{
		MovieID:    m.summary.ID,
		TrailerKey: m.trailerKey,
		Cast:       append([]tmdb.CastMember(nil), m.cast...),
		Favorite:   m.favorite,
		Reviews:    append([]store.Review(nil), m.reviews...),
		SignedIn:   user != nil,
		PosterURL:  m.summary.PosterURL(),
	}
	if m.detail != nil {
		d := *m.detail
		v.Detail = &d
		v.PosterURL = tmdb.PosterURL(d.PosterPath)
	}
	if m.trailerKey != "" {
		v.TrailerURL = YouTubeEmbedURL + m.trailerKey
	}
	if len(m.failures) > 0 {
		v.Failures = make(map[Branch]string, len(m.failures))
		for b, err := range m.failures {
			v.Failures[b] = err.Error()
		}
	}
	if user != nil {
		v.OwnReview = m.ownReviewLocked(user.ID)
	}
	return v
}

// Failures returns the branches that failed during Open.
func (m *Modal) Failures() map[Branch]error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Branch]error, len(m.failures))
	for b, err := range m.failures {
		out[b] = err
	}
	return out
}

// Failed lists failed branch names in a stable order.
func (m *Modal) Failed() []Branch {
	failures := m.Failures()
	out := make([]Branch, 0, len(failures))
	for b := range failures {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsFavorite reports the local favorite flag.
func (m *Modal) IsFavorite() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.favorite
}

// Reviews returns the loaded reviews, newest first.
func (m *Modal) Reviews() []store.Review {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Review(nil), m.reviews...)
}

// OwnReview returns the signed-in user's review, or nil.
func (m *Modal) OwnReview() *store.Review {
	user := m.controller.users.Current()
	if user == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ownReviewLocked(user.ID)
}

func (m *Modal) ownReviewLocked(userID string) *store.Review {
	for _, r := range m.reviews {
		if r.UserID == userID {
			r := r
			return &r
		}
	}
	return nil
}

// ToggleFavorite removes the movie from the user's favorites if it is one, and
// adds it otherwise. The local flag changes only after the store succeeds.
func (m *Modal) ToggleFavorite(ctx context.Context) (bool, error) {
	user, err := m.begin()
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	favorite := m.favorite
	projection := m.projectionLocked()
	m.mu.Unlock()

	st := m.controller.store
	if favorite {
		err = st.RemoveFavorite(ctx, user.ID, projection.ID)
	} else {
		err = st.AddFavorite(ctx, user.ID, projection)
	}
	if err != nil {
		return favorite, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return !favorite, nil
	}
	m.favorite = !favorite
	return m.favorite, nil
}

// SubmitReview validates and stores the user's review, then reloads the list.
func (m *Modal) SubmitReview(ctx context.Context, rating int, text string) error {
	user, err := m.begin()
	if err != nil {
		return err
	}
	if err := ValidateRating(rating); err != nil {
		return err
	}

	author := store.Author{ID: user.ID, Name: user.Name(), Image: user.PhotoURL}
	if err := m.controller.store.AddOrUpdateReview(ctx, m.summary.ID, author, rating, text); err != nil {
		return err
	}
	return m.reloadReviews(ctx)
}

// DeleteReview deletes the review written by reviewUserID, which must be the
// signed-in user, then reloads the list.
func (m *Modal) DeleteReview(ctx context.Context, reviewUserID string) error {
	user, err := m.begin()
	if err != nil {
		return err
	}
	if reviewUserID != user.ID {
		return ErrNotAuthor
	}

	if err := m.controller.store.DeleteReview(ctx, m.summary.ID, reviewUserID); err != nil {
		return err
	}
	return m.reloadReviews(ctx)
}

// Close detaches the modal. Mutations still in flight complete in the store but
// no longer change the modal.
func (m *Modal) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

// ValidateRating checks a star rating.
func ValidateRating(rating int) error {
	if rating == 0 {
		return &ValidationError{Field: "rating", Message: "please select a rating"}
	}
	if rating < MinRating || rating > MaxRating {
		return &ValidationError{
			Field:   "rating",
			Message: fmt.Sprintf("must be between %d and %d", MinRating, MaxRating),
		}
	}
	return nil
}

func (m *Modal) begin() (*auth.User, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	user := m.controller.users.Current()
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	return user, nil
}

func (m *Modal) reloadReviews(ctx context.Context) error {
	reviews, err := m.controller.store.GetReviewsForMovie(ctx, m.summary.ID)
	if err != nil {
		return fmt.Errorf("failed to reload reviews: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.reviews = reviews
		delete(m.failures, BranchReviews)
	}
	return nil
}

func (m *Modal) projectionLocked() store.FavoriteMovie {
	p := store.FavoriteMovie{
		ID:         m.summary.ID,
		Title:      m.summary.Title,
		PosterPath: m.summary.PosterPath,
	}
	if m.detail != nil {
		p.Title = m.detail.Title
		p.PosterPath = m.detail.PosterPath
	}
	return p
}
