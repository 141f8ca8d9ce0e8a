// Package console renders movies, details, favorites and reviews for the terminal.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/s0up4200/cinescope/detail"
	"github.com/s0up4200/cinescope/highlight"
	"github.com/s0up4200/cinescope/store"
	"github.com/s0up4200/cinescope/tmdb"
)

const (
	ansiBold  = "\033[1m"
	ansiReset = "\033[0m"
)

// FormatOptions controls what is rendered
type FormatOptions struct {
	ShowDetails bool
	// Query is emphasised in titles when set
	Query string
}

// ConsoleFormatter provides console output formatting
type ConsoleFormatter struct {
	color bool
}

// NewConsoleFormatter creates a formatter. Matches are emphasised with ANSI
// bold only when color is true.
func NewConsoleFormatter(color bool) *ConsoleFormatter {
	return &ConsoleFormatter{color: color}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// FormatMovieList formats a result list under a header label
func (f *ConsoleFormatter) FormatMovieList(label string, movies []tmdb.Movie, options FormatOptions) string {
	if len(movies) == 0 {
		return fmt.Sprintf("%s: no movies found\n", label)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n%s (%d):\n\n", label, len(movies))

	for i, movie := range movies {
		isLast := i == len(movies)-1
		f.formatMovie(&sb, movie, isLast, options)

		if !isLast {
			sb.WriteString("│\n")
		}
	}

	sb.WriteString("\n")
	return sb.String()
}

func (f *ConsoleFormatter) formatMovie(sb *strings.Builder, movie tmdb.Movie, isLast bool, options FormatOptions) {
	prefix, indent := branch(isLast)

	fmt.Fprintf(sb, "%s── %s", prefix, f.title(movie.DisplayTitle(), options.Query))
	if year := movie.Year(); year > 0 {
		fmt.Fprintf(sb, " (%d)", year)
	}
	sb.WriteString("\n")

	if !options.ShowDetails {
		return
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("ID: %d", movie.ID))
	if movie.VoteAverage > 0 {
		parts = append(parts, fmt.Sprintf("Rating: %.1f", movie.VoteAverage))
	}
	fmt.Fprintf(sb, "%s%s\n", indent, strings.Join(parts, " | "))
	fmt.Fprintf(sb, "%sPoster: %s\n", indent, movie.PosterURL())
}

func (f *ConsoleFormatter) title(text, query string) string {
	if !f.color || query == "" {
		return text
	}
	return highlight.Render(text, query, ansiBold, ansiReset)
}

// FormatDetail formats an opened movie
func (f *ConsoleFormatter) FormatDetail(view detail.View) string {
	var sb strings.Builder

	if d := view.Detail; d != nil {
		fmt.Fprintf(&sb, "\n%s", d.Title)
		if year := (tmdb.Movie{ReleaseDate: d.ReleaseDate}).Year(); year > 0 {
			fmt.Fprintf(&sb, " (%d)", year)
		}
		sb.WriteString("\n")
		if d.Tagline != "" {
			fmt.Fprintf(&sb, "%s\n", d.Tagline)
		}
		sb.WriteString("\n")

		var facts []string
		if d.Runtime > 0 {
			facts = append(facts, fmt.Sprintf("%d min", d.Runtime))
		}
		if d.VoteAverage > 0 {
			facts = append(facts, fmt.Sprintf("%.1f/10 (%d votes)", d.VoteAverage, d.VoteCount))
		}
		if len(d.Genres) > 0 {
			names := make([]string, len(d.Genres))
			for i, g := range d.Genres {
				names[i] = g.Name
			}
			facts = append(facts, strings.Join(names, ", "))
		}
		if len(facts) > 0 {
			fmt.Fprintf(&sb, "%s\n", strings.Join(facts, " | "))
		}
		if d.Overview != "" {
			fmt.Fprintf(&sb, "\n%s\n", d.Overview)
		}
	} else {
		fmt.Fprintf(&sb, "\nMovie %d (details unavailable)\n", view.MovieID)
	}

	fmt.Fprintf(&sb, "\nPoster: %s\n", view.PosterURL)
	if view.TrailerURL != "" {
		fmt.Fprintf(&sb, "Trailer: %s\n", view.TrailerURL)
	}
	if view.SignedIn {
		fmt.Fprintf(&sb, "Favorite: %s\n", yesNo(view.Favorite))
	}

	if len(view.Cast) > 0 {
		sb.WriteString("\nCast:\n")
		for i, member := range view.Cast {
			prefix, _ := branch(i == len(view.Cast)-1)
			fmt.Fprintf(&sb, "%s── %s", prefix, member.Name)
			if member.Character != "" {
				fmt.Fprintf(&sb, " as %s", member.Character)
			}
			sb.WriteString("\n")
		}
	}

	// reviews are only loaded for a signed-in user
	if view.SignedIn {
		sb.WriteString("\n")
		sb.WriteString(f.FormatReviews(view.Reviews))
	}

	if len(view.Failures) > 0 {
		sb.WriteString("\nUnavailable:\n")
		for _, b := range []detail.Branch{detail.BranchDetail, detail.BranchTrailer, detail.BranchCast, detail.BranchFavorite, detail.BranchReviews} {
			if msg, ok := view.Failures[b]; ok {
				fmt.Fprintf(&sb, "- %s: %s\n", b, msg)
			}
		}
	}

	return sb.String()
}

// FormatReviews formats a movie's reviews, newest first as given
func (f *ConsoleFormatter) FormatReviews(reviews []store.Review) string {
	if len(reviews) == 0 {
		return "No reviews yet\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Reviews (%d):\n", len(reviews))
	for i, r := range reviews {
		isLast := i == len(reviews)-1
		prefix, indent := branch(isLast)

		fmt.Fprintf(&sb, "%s── %s %s (%s)\n", prefix, Stars(r.Rating), r.AuthorName, r.CreatedAt.Format("2006-01-02"))
		if r.Text != "" {
			fmt.Fprintf(&sb, "%s%s\n", indent, r.Text)
		}
		fmt.Fprintf(&sb, "%sUser: %s\n", indent, r.UserID)
	}
	return sb.String()
}

// FormatFavorites formats a user's favorites
func (f *ConsoleFormatter) FormatFavorites(favorites []store.Favorite) string {
	if len(favorites) == 0 {
		return "No favorites yet\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\nFavorites (%d):\n\n", len(favorites))
	for i, fav := range favorites {
		isLast := i == len(favorites)-1
		prefix, indent := branch(isLast)

		fmt.Fprintf(&sb, "%s── %s\n", prefix, fav.Title)
		fmt.Fprintf(&sb, "%sID: %d | Added: %s\n", indent, fav.ID, fav.AddedAt.Format("2006-01-02"))
	}
	sb.WriteString("\n")
	return sb.String()
}

// FormatGenres formats the genre list
func (f *ConsoleFormatter) FormatGenres(genres []tmdb.Genre) string {
	var sb strings.Builder
	for _, g := range genres {
		fmt.Fprintf(&sb, "%6d  %s\n", g.ID, g.Name)
	}
	return sb.String()
}

// Stars renders a 1-5 rating as filled and empty stars.
func Stars(rating int) string {
	rating = max(0, min(rating, detail.MaxRating))
	return strings.Repeat("★", rating) + strings.Repeat("☆", detail.MaxRating-rating)
}

func branch(isLast bool) (prefix, indent string) {
	if isLast {
		return "╰", "    "
	}
	return "├", "│   "
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
