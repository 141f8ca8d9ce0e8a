package server

import (
	"context"
	"time"
)

const warmTimeout = 30 * time.Second

// warm preloads the responses every new browse session asks for first.
func (s *Server) warm(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, warmTimeout)
	defer cancel()

	start := time.Now()
	if _, err := s.catalog.FetchPopular(ctx, 1); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to warm popular movies")
	}
	if _, err := s.catalog.GetGenres(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to warm genre list")
	}
	s.logger.Debug().Dur("duration", time.Since(start)).Msg("Cache warmed")
}
