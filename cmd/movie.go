package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/s0up4200/cinescope/auth"
	"github.com/s0up4200/cinescope/detail"
	"github.com/s0up4200/cinescope/store"
)

var toggleFavorite bool

// movieCmd represents the movie command
var movieCmd = &cobra.Command{
	Use:   "movie <id>",
	Short: "Show a movie with cast, trailer and reviews",
	Long: `Load the details, trailer and cast of one movie. When a user is
configured its reviews and favorite status are shown too, and --favorite
toggles it. "cinescope reviews list" reads reviews without a user.`,
	Args: cobra.ExactArgs(1),
	RunE: runMovie,
}

// genresCmd represents the genres command
var genresCmd = &cobra.Command{
	Use:   "genres",
	Short: "List movie genres",
	RunE:  runGenres,
}

func init() {
	rootCmd.AddCommand(movieCmd)
	rootCmd.AddCommand(genresCmd)

	movieCmd.Flags().BoolVar(&toggleFavorite, "favorite", false, "toggle the movie in your favorites")
}

func parseMovieID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid movie id: %s", arg)
	}
	return id, nil
}

// detailDeps opens everything the detail controller needs. The returned
// cleanup releases it.
func detailDeps(ctx context.Context) (*detail.Controller, func(), error) {
	client, respCache, err := newCatalog(ctx)
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore()
	if err != nil {
		if respCache != nil {
			_ = respCache.Close()
		}
		return nil, nil, err
	}

	cleanup := func() {
		if err := st.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close store")
		}
		if respCache != nil {
			_ = respCache.Close()
		}
	}
	return detail.NewController(client, st, auth.NewSession(configuredUser()), logger), cleanup, nil
}

func runMovie(cmd *cobra.Command, args []string) error {
	id, err := parseMovieID(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	controller, cleanup, err := detailDeps(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	modal := controller.Open(ctx, id)
	defer modal.Close()

	if failed := modal.Failed(); len(failed) > 0 {
		logger.Debug().Interface("branches", failed).Msg("Some movie details could not be loaded")
	}

	if toggleFavorite {
		favorite, err := modal.ToggleFavorite(ctx)
		if err != nil {
			return fmt.Errorf("failed to update favorite: %w", err)
		}
		if favorite {
			logger.Info().Int64("movie_id", id).Msg("Added to favorites")
		} else {
			logger.Info().Int64("movie_id", id).Msg("Removed from favorites")
		}
	}

	fmt.Fprint(cmd.OutOrStdout(), formatter().FormatDetail(modal.View()))
	return nil
}

func runGenres(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, respCache, err := newCatalog(ctx)
	if err != nil {
		return err
	}
	if respCache != nil {
		defer respCache.Close()
	}

	genres, err := client.GetGenres(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), formatter().FormatGenres(genres))
	return nil
}

// withStore runs fn against the configured store and closes it afterwards.
func withStore(fn func(store.Store) error) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close store")
		}
	}()
	return fn(st)
}
