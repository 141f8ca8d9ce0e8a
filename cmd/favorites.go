package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/s0up4200/cinescope/auth"
	"github.com/s0up4200/cinescope/detail"
	"github.com/s0up4200/cinescope/store"
)

var (
	reviewRating int
	reviewText   string
)

// favoritesCmd represents the favorites command
var favoritesCmd = &cobra.Command{
	Use:   "favorites",
	Short: "List your favorite movies",
	RunE:  runFavorites,
}

var favoritesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your favorite movies",
	RunE:  runFavorites,
}

var favoritesAddCmd = &cobra.Command{
	Use:   "add <movie-id>",
	Short: "Add a movie to your favorites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setFavorite(cmd, args[0], true)
	},
}

var favoritesRemoveCmd = &cobra.Command{
	Use:   "remove <movie-id>",
	Short: "Remove a movie from your favorites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setFavorite(cmd, args[0], false)
	},
}

// reviewsCmd represents the reviews command group
var reviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "Read and write movie reviews",
}

var reviewsListCmd = &cobra.Command{
	Use:   "list <movie-id>",
	Short: "List the reviews of a movie",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewsList,
}

var reviewsAddCmd = &cobra.Command{
	Use:   "add <movie-id>",
	Short: "Rate a movie from 1 to 5 stars, replacing your previous review",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewsAdd,
}

var reviewsDeleteCmd = &cobra.Command{
	Use:   "delete <movie-id>",
	Short: "Delete your review of a movie",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewsDelete,
}

func init() {
	rootCmd.AddCommand(favoritesCmd)
	rootCmd.AddCommand(reviewsCmd)
	favoritesCmd.AddCommand(favoritesListCmd, favoritesAddCmd, favoritesRemoveCmd)
	reviewsCmd.AddCommand(reviewsListCmd, reviewsAddCmd, reviewsDeleteCmd)

	reviewsAddCmd.Flags().IntVarP(&reviewRating, "rating", "r", 0, "star rating (1-5)")
	reviewsAddCmd.Flags().StringVarP(&reviewText, "text", "t", "", "review text")
}

func runFavorites(cmd *cobra.Command, args []string) error {
	user, err := requireUser()
	if err != nil {
		return err
	}
	return withStore(func(st store.Store) error {
		favorites, err := st.GetFavorites(cmd.Context(), user.ID)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), formatter().FormatFavorites(favorites))
		return nil
	})
}

// setFavorite toggles the movie only when its stored state differs from want.
func setFavorite(cmd *cobra.Command, arg string, want bool) error {
	id, err := parseMovieID(arg)
	if err != nil {
		return err
	}
	if _, err := requireUser(); err != nil {
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

	failures := modal.Failures()
	if err, ok := failures[detail.BranchFavorite]; ok {
		return fmt.Errorf("failed to read favorite status: %w", err)
	}
	if want {
		// the stored projection needs the title
		if err, ok := failures[detail.BranchDetail]; ok {
			return fmt.Errorf("failed to load movie %d: %w", id, err)
		}
	}

	if modal.IsFavorite() != want {
		if _, err := modal.ToggleFavorite(ctx); err != nil {
			return fmt.Errorf("failed to update favorite: %w", err)
		}
	}

	title := fmt.Sprintf("movie %d", id)
	if v := modal.View(); v.Detail != nil {
		title = v.Detail.Title
	}
	if want {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is in your favorites\n", title)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is not in your favorites\n", title)
	}
	return nil
}

func runReviewsList(cmd *cobra.Command, args []string) error {
	id, err := parseMovieID(args[0])
	if err != nil {
		return err
	}
	return withStore(func(st store.Store) error {
		reviews, err := st.GetReviewsForMovie(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), formatter().FormatReviews(reviews))
		return nil
	})
}

func runReviewsAdd(cmd *cobra.Command, args []string) error {
	id, err := parseMovieID(args[0])
	if err != nil {
		return err
	}
	if err := detail.ValidateRating(reviewRating); err != nil {
		return err
	}
	return mutateReviews(cmd, id, func(m *detail.Modal) error {
		return m.SubmitReview(cmd.Context(), reviewRating, reviewText)
	})
}

func runReviewsDelete(cmd *cobra.Command, args []string) error {
	id, err := parseMovieID(args[0])
	if err != nil {
		return err
	}
	user, err := requireUser()
	if err != nil {
		return err
	}
	return mutateReviews(cmd, id, func(m *detail.Modal) error {
		return m.DeleteReview(cmd.Context(), user.ID)
	})
}

// mutateReviews applies fn as the configured user and prints the reloaded
// list. Reviews live in the store only, so no catalog client is needed.
func mutateReviews(cmd *cobra.Command, movieID int64, fn func(*detail.Modal) error) error {
	user, err := requireUser()
	if err != nil {
		return err
	}

	return withStore(func(st store.Store) error {
		modal := detail.NewController(nil, st, auth.NewSession(user), logger).Attach(movieID)
		defer modal.Close()

		if err := fn(modal); err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), formatter().FormatReviews(modal.Reviews()))
		return nil
	})
}
