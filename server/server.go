// Package server exposes the list, detail and store operations over HTTP and
// runs browse sessions over WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/s0up4200/cinescope/auth"
	"github.com/s0up4200/cinescope/browse"
	"github.com/s0up4200/cinescope/detail"
	"github.com/s0up4200/cinescope/filter"
	"github.com/s0up4200/cinescope/store"
	"github.com/s0up4200/cinescope/tmdb"
)

const shutdownTimeout = 10 * time.Second

// Catalog is what the server needs from the catalog client.
type Catalog interface {
	browse.Catalog
	detail.Catalog
	GetGenres(ctx context.Context) ([]tmdb.Genre, error)
}

// Options configures a Server.
type Options struct {
	Addr        string
	CORSOrigins []string
	// RequireAuth rejects every /api and /ws request without a valid token.
	RequireAuth bool
	Debounce    time.Duration
	// WarmSchedule is a cron spec for cache warming; empty disables it.
	WarmSchedule string
}

// Server is the HTTP API.
type Server struct {
	catalog Catalog
	store   store.Store
	tokens  *auth.Tokens
	filters *filter.Manager
	logger  zerolog.Logger
	opts    Options
	router  *gin.Engine
}

// New builds the router. tokens may be nil, in which case every request is
// anonymous and mutations are rejected.
func New(catalog Catalog, st store.Store, tokens *auth.Tokens, filters *filter.Manager, logger zerolog.Logger, opts Options) *Server {
	if filters == nil {
		filters = filter.NewManager()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = browse.DefaultDebounce
	}

	s := &Server{
		catalog: catalog,
		store:   st,
		tokens:  tokens,
		filters: filters,
		logger:  logger.With().Str("component", "server").Logger(),
		opts:    opts,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), s.requestLogger(), observe())

	if len(s.opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", requestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", s.authenticate())
	api.GET("/genres", s.listGenres)
	api.GET("/movies", s.listMovies)
	api.GET("/movies/:id", s.getMovie)
	api.GET("/movies/:id/reviews", s.listReviews)

	user := api.Group("", requireUser())
	user.POST("/movies/:id/favorite", s.toggleFavorite)
	user.GET("/favorites", s.listFavorites)
	user.PUT("/movies/:id/reviews", s.submitReview)
	user.DELETE("/movies/:id/reviews/:userId", s.deleteReview)

	r.GET("/ws/browse", s.authenticate(), s.browseSession)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	warmer := s.startWarmer(ctx)
	if warmer != nil {
		defer warmer.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("Listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// startWarmer schedules cache warming. It returns nil when no schedule is set.
func (s *Server) startWarmer(ctx context.Context) *cron.Cron {
	if s.opts.WarmSchedule == "" {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.opts.WarmSchedule, func() { s.warm(ctx) }); err != nil {
		s.logger.Error().Err(err).Str("schedule", s.opts.WarmSchedule).Msg("Invalid warm schedule, cache warming disabled")
		return nil
	}
	c.Start()
	s.logger.Info().Str("schedule", s.opts.WarmSchedule).Msg("Cache warming scheduled")

	go s.warm(ctx)
	return c
}
