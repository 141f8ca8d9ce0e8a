package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/s0up4200/cinescope/auth"
	"github.com/s0up4200/cinescope/browse"
	"github.com/s0up4200/cinescope/detail"
	"github.com/s0up4200/cinescope/filter"
	"github.com/s0up4200/cinescope/highlight"
	"github.com/s0up4200/cinescope/metrics"
	"github.com/s0up4200/cinescope/store"
	"github.com/s0up4200/cinescope/tmdb"
)

// movieItem is a list entry with presentation fields resolved.
type movieItem struct {
	tmdb.Movie
	DisplayTitle  string              `json:"display_title"`
	PosterURL     string              `json:"poster_url"`
	TitleSegments []highlight.Segment `json:"title_segments"`
}

type listResponse struct {
	Label   string        `json:"label"`
	Source  browse.Source `json:"source"`
	Page    int           `json:"page"`
	Count   int           `json:"count"`
	Results []movieItem   `json:"results"`
}

type reviewRequest struct {
	Rating int    `json:"rating"`
	Text   string `json:"text"`
}

func (s *Server) listGenres(c *gin.Context) {
	genres, err := s.catalog.GetGenres(c.Request.Context())
	if err != nil {
		s.catalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"genres": genres})
}

func (s *Server) listMovies(c *gin.Context) {
	page := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			abortError(c, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		page = n
	}

	compiled, err := s.resultFilter(c.Query("filter"), c.Query("preset"))
	if err != nil {
		abortError(c, http.StatusBadRequest, err.Error())
		return
	}

	f := browse.Filter{Query: c.Query("query"), GenreID: c.Query("genre"), Page: page}
	ctx := c.Request.Context()

	movies, source, err := browse.Fetch(ctx, s.catalog, f)
	if err != nil {
		s.catalogError(c, err)
		return
	}
	metrics.ListDispatches.WithLabelValues(string(source)).Inc()

	if compiled != nil {
		movies = filter.Apply(compiled, movies)
	}

	var genreName string
	if source == browse.SourceGenre {
		// the label degrades to the id when the genre list is unavailable
		if genres, err := s.catalog.GetGenres(ctx); err == nil {
			if g, ok := tmdb.FindGenre(genres, f.GenreID); ok {
				genreName = g.Name
			}
		}
	}

	query := f.TrimmedQuery()
	items := make([]movieItem, 0, len(movies))
	for _, m := range movies {
		items = append(items, movieItem{
			Movie:         m,
			DisplayTitle:  m.DisplayTitle(),
			PosterURL:     m.PosterURL(),
			TitleSegments: highlight.Highlight(m.DisplayTitle(), query),
		})
	}

	c.JSON(http.StatusOK, listResponse{
		Label:   browse.HeaderLabel(f, genreName),
		Source:  source,
		Page:    page,
		Count:   len(items),
		Results: items,
	})
}

// resultFilter compiles an ad-hoc expression, or looks up a preset. Both empty
// means no filtering.
func (s *Server) resultFilter(expression, preset string) (filter.CompiledFilter, error) {
	switch {
	case expression != "":
		return s.filters.Compile(expression)
	case preset != "":
		return s.filters.Preset(preset)
	default:
		return nil, nil
	}
}

func (s *Server) getMovie(c *gin.Context) {
	id, ok := movieID(c)
	if !ok {
		return
	}

	modal := s.details(c).Open(c.Request.Context(), id)
	defer modal.Close()

	if err, failed := modal.Failures()[detail.BranchDetail]; failed && errors.Is(err, tmdb.ErrNotFound) {
		abortError(c, http.StatusNotFound, "movie not found")
		return
	}
	c.JSON(http.StatusOK, modal.View())
}

func (s *Server) toggleFavorite(c *gin.Context) {
	id, ok := movieID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	modal := s.details(c).Open(ctx, id)
	defer modal.Close()

	failures := modal.Failures()
	if err, failed := failures[detail.BranchDetail]; failed && errors.Is(err, tmdb.ErrNotFound) {
		abortError(c, http.StatusNotFound, "movie not found")
		return
	}
	// toggling on an unknown current state could add a favorite that exists
	if err, failed := failures[detail.BranchFavorite]; failed {
		s.storeError(c, err)
		return
	}

	favorite, err := modal.ToggleFavorite(ctx)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movie_id": id, "favorite": favorite})
}

func (s *Server) listFavorites(c *gin.Context) {
	favorites, err := s.store.GetFavorites(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		s.storeError(c, err)
		return
	}
	if favorites == nil {
		favorites = []store.Favorite{}
	}
	c.JSON(http.StatusOK, gin.H{"favorites": favorites})
}

func (s *Server) listReviews(c *gin.Context) {
	id, ok := movieID(c)
	if !ok {
		return
	}
	reviews, err := s.store.GetReviewsForMovie(c.Request.Context(), id)
	if err != nil {
		s.storeError(c, err)
		return
	}
	if reviews == nil {
		reviews = []store.Review{}
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}

func (s *Server) submitReview(c *gin.Context) {
	id, ok := movieID(c)
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	modal := s.details(c).Attach(id)
	defer modal.Close()

	if err := modal.SubmitReview(c.Request.Context(), req.Rating, req.Text); err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": nonNilReviews(modal.Reviews())})
}

func (s *Server) deleteReview(c *gin.Context) {
	id, ok := movieID(c)
	if !ok {
		return
	}

	modal := s.details(c).Attach(id)
	defer modal.Close()

	if err := modal.DeleteReview(c.Request.Context(), c.Param("userId")); err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": nonNilReviews(modal.Reviews())})
}

// details builds a detail controller acting as the request's user.
func (s *Server) details(c *gin.Context) *detail.Controller {
	return detail.NewController(s.catalog, s.store, auth.NewSession(currentUser(c)), s.logger)
}

func movieID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		abortError(c, http.StatusBadRequest, "invalid movie id")
		return 0, false
	}
	return id, true
}

func nonNilReviews(reviews []store.Review) []store.Review {
	if reviews == nil {
		return []store.Review{}
	}
	return reviews
}

func (s *Server) catalogError(c *gin.Context, err error) {
	var apiErr *tmdb.APIError
	switch {
	case errors.Is(err, tmdb.ErrNotFound):
		abortError(c, http.StatusNotFound, "not found")
	case errors.Is(err, tmdb.ErrCircuitOpen):
		abortError(c, http.StatusServiceUnavailable, "catalog temporarily unavailable")
	case errors.As(err, &apiErr):
		abortError(c, http.StatusBadGateway, apiErr.Message)
	default:
		s.logger.Error().Err(err).Str("request_id", c.GetString(ctxRequestID)).Msg("Catalog request failed")
		abortError(c, http.StatusBadGateway, "catalog request failed")
	}
}

func (s *Server) storeError(c *gin.Context, err error) {
	var validation *detail.ValidationError
	switch {
	case errors.As(err, &validation):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": validation.Message, "field": validation.Field})
	case errors.Is(err, detail.ErrNotAuthenticated):
		abortError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, detail.ErrNotAuthor):
		abortError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrInvalidKey):
		abortError(c, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Str("request_id", c.GetString(ctxRequestID)).Msg("Store request failed")
		abortError(c, http.StatusInternalServerError, "store request failed")
	}
}
