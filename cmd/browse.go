package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/cinescope/browse"
	"github.com/s0up4200/cinescope/console"
	"github.com/s0up4200/cinescope/filter"
	"github.com/s0up4200/cinescope/tmdb"
)

var (
	browseQuery       string
	browseGenre       string
	browsePages       int
	browseInteractive bool
)

// browseCmd represents the browse command
var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "List popular movies, or search by title or genre",
	Long: `List movies from TMDB. Without flags the popular list is shown. A query
searches by title and takes precedence over a genre.

With --interactive, each line read from stdin drives the list:
  <text>          search (an empty line returns to popular movies)
  :genre <name>   show a genre (":genre" alone clears it)
  :more           load the next page
  :retry          retry the last failed request
  :quit           exit`,
	RunE: runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)

	browseCmd.Flags().StringVarP(&browseQuery, "query", "q", "", "search by title")
	browseCmd.Flags().StringVarP(&browseGenre, "genre", "g", "", "genre id or name")
	browseCmd.Flags().IntVarP(&browsePages, "pages", "n", 1, "number of pages to load")
	browseCmd.Flags().BoolVarP(&browseInteractive, "interactive", "i", false, "read commands from stdin")
	browseCmd.Flags().StringVarP(&filterExpr, "filter", "f", "", "filter expression applied to results")
	browseCmd.Flags().StringVarP(&preset, "preset", "p", "", "use a preset filter from config")
	browseCmd.Flags().BoolVar(&showDetails, "details", false, "show ids, ratings and poster urls")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	if browsePages < 1 {
		return fmt.Errorf("--pages must be at least 1")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client, respCache, err := newCatalog(ctx)
	if err != nil {
		return err
	}
	if respCache != nil {
		defer respCache.Close()
	}

	genres, err := client.GetGenres(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load genres, genre names will be unavailable")
	}

	manager, err := newFilterManager(genres)
	if err != nil {
		return err
	}
	resultFilter, err := resolveFilter(manager)
	if err != nil {
		return fmt.Errorf("invalid filter expression: %w", err)
	}

	controller := browse.NewController(client, logger,
		browse.WithDebounce(cfg.Browse.Debounce),
		browse.WithGenres(genres),
	)
	if err := controller.Mount(ctx); err != nil {
		return err
	}
	defer controller.Close()

	view := &listView{
		out:       cmd.OutOrStdout(),
		formatter: formatter(),
		filter:    resultFilter,
	}

	if browseInteractive {
		return runInteractive(ctx, controller, genres, cmd.InOrStdin(), view)
	}

	if browseGenre != "" {
		genreID, err := resolveGenre(genres, browseGenre)
		if err != nil {
			return err
		}
		if err := controller.SetGenre(genreID); err != nil {
			return err
		}
	}
	if browseQuery != "" {
		if err := controller.SetQuery(browseQuery); err != nil {
			return err
		}
	}

	state, err := controller.WaitIdle(ctx)
	if err != nil {
		return err
	}
	for page := 1; page < browsePages && state.LastError == ""; page++ {
		if err := controller.LoadMore(); err != nil {
			if errors.Is(err, browse.ErrLoadMoreUnavailable) {
				break
			}
			return err
		}
		if state, err = controller.WaitIdle(ctx); err != nil {
			return err
		}
	}

	if state.LastError != "" {
		return errors.New(state.LastError)
	}
	view.print(state)
	return nil
}

// listView prints controller states.
type listView struct {
	out       io.Writer
	formatter *console.ConsoleFormatter
	filter    filter.CompiledFilter
}

func (v *listView) print(state browse.State) {
	movies := state.Results
	if v.filter != nil {
		movies = filter.Apply(v.filter, movies)
	}
	fmt.Fprint(v.out, v.formatter.FormatMovieList(state.HeaderLabel, movies, console.FormatOptions{
		ShowDetails: showDetails,
		Query:       state.Filter.TrimmedQuery(),
	}))
	if v.filter != nil && len(movies) != len(state.Results) {
		fmt.Fprintf(v.out, "(%d of %d shown after filtering)\n", len(movies), len(state.Results))
	}
}

// runInteractive applies one command per input line and prints the list each
// time it settles. Like the web session, a query clears the genre and a genre
// clears the query.
func runInteractive(ctx context.Context, controller *browse.Controller, genres []tmdb.Genre, in io.Reader, view *listView) error {
	settle := func() error {
		state, err := controller.WaitIdle(ctx)
		if err != nil {
			return err
		}
		if state.LastError != "" {
			fmt.Fprintf(view.out, "%s (type :retry to try again)\n", state.LastError)
			return nil
		}
		view.print(state)
		return nil
	}

	if err := settle(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(view.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := scanner.Text()

		var err error
		switch cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " "); cmd {
		case ":quit", ":q":
			return nil
		case ":more":
			err = controller.LoadMore()
		case ":retry":
			err = controller.Retry()
		case ":genre":
			var genreID string
			if arg = strings.TrimSpace(arg); arg != "" {
				if genreID, err = resolveGenre(genres, arg); err != nil {
					break
				}
			}
			if err = controller.SetQuery(""); err == nil {
				err = controller.SetGenre(genreID)
			}
		default:
			err = controller.Search(line)
		}

		if errors.Is(err, browse.ErrClosed) {
			return nil
		}
		if err != nil {
			fmt.Fprintln(view.out, err)
			continue
		}
		if err := settle(); err != nil {
			return err
		}
	}
}

// resolveGenre accepts a genre id or name. Unknown values are passed through
// as ids when the genre list could not be loaded.
func resolveGenre(genres []tmdb.Genre, idOrName string) (string, error) {
	if g, ok := tmdb.FindGenre(genres, idOrName); ok {
		return g.GenreID(), nil
	}
	if len(genres) == 0 {
		return idOrName, nil
	}
	return "", fmt.Errorf("unknown genre: %s", idOrName)
}
