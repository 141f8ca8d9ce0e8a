package console

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/s0up4200/cinescope/detail"
	"github.com/s0up4200/cinescope/store"
	"github.com/s0up4200/cinescope/tmdb"
)

func TestFormatMovieList(t *testing.T) {
	movies := []tmdb.Movie{
		{ID: 603, Title: "The Matrix", ReleaseDate: "1999-03-31", VoteAverage: 8.2},
		{ID: 1, Title: ""},
	}

	tests := []struct {
		name     string
		color    bool
		options  FormatOptions
		contains []string
		excludes []string
	}{
		{
			name:     "plain",
			contains: []string{"Popular Movies (2):", "├── The Matrix (1999)", "╰── Untitled"},
			excludes: []string{ansiBold, "ID: 603"},
		},
		{
			name:     "highlighted",
			color:    true,
			options:  FormatOptions{Query: "matrix"},
			contains: []string{"The " + ansiBold + "Matrix" + ansiReset},
		},
		{
			name:     "highlight needs color",
			options:  FormatOptions{Query: "matrix"},
			excludes: []string{ansiBold},
		},
		{
			name:     "details",
			options:  FormatOptions{ShowDetails: true},
			contains: []string{"ID: 603 | Rating: 8.2", "Poster: " + tmdb.PlaceholderPosterURL},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewConsoleFormatter(tt.color).FormatMovieList("Popular Movies", movies, tt.options)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestFormatMovieListEmpty(t *testing.T) {
	out := NewConsoleFormatter(false).FormatMovieList(`Results for "zzz"`, nil, FormatOptions{})
	assert.Equal(t, "Results for \"zzz\": no movies found\n", out)
}

func TestFormatDetail(t *testing.T) {
	view := detail.View{
		MovieID: 603,
		Detail: &tmdb.MovieDetail{
			ID: 603, Title: "The Matrix", ReleaseDate: "1999-03-31", Runtime: 136,
			Genres: []tmdb.Genre{{ID: 28, Name: "Action"}, {ID: 878, Name: "Science Fiction"}},
		},
		PosterURL:  tmdb.ImageBaseURL + "/m.jpg",
		TrailerURL: detail.YouTubeEmbedURL + "abc",
		Cast:       []tmdb.CastMember{{Name: "Keanu Reeves", Character: "Neo"}},
		SignedIn:   true,
		Favorite:   true,
		Failures:   map[detail.Branch]string{detail.BranchReviews: "store down"},
	}

	out := NewConsoleFormatter(false).FormatDetail(view)
	for _, s := range []string{
		"The Matrix (1999)",
		"136 min",
		"Action, Science Fiction",
		"Trailer: https://www.youtube.com/embed/abc",
		"Favorite: yes",
		"╰── Keanu Reeves as Neo",
		"No reviews yet",
		"- reviews: store down",
	} {
		assert.Contains(t, out, s)
	}

	view.Detail = nil
	view.SignedIn = false
	out = NewConsoleFormatter(false).FormatDetail(view)
	assert.Contains(t, out, "Movie 603 (details unavailable)")
	assert.NotContains(t, out, "Favorite:")
	assert.NotContains(t, out, "No reviews yet")
}

func TestFormatReviews(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	out := NewConsoleFormatter(false).FormatReviews([]store.Review{
		{UserID: "neo", AuthorName: "Neo", Rating: 4, Text: "Whoa", CreatedAt: at},
	})
	assert.Contains(t, out, "╰── ★★★★☆ Neo (2024-05-01)")
	assert.Contains(t, out, "    Whoa")
}

func TestFormatFavorites(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := NewConsoleFormatter(false)
	assert.Equal(t, "No favorites yet\n", f.FormatFavorites(nil))

	out := f.FormatFavorites([]store.Favorite{
		{FavoriteMovie: store.FavoriteMovie{ID: 603, Title: "The Matrix"}, AddedAt: at},
	})
	assert.Contains(t, out, "╰── The Matrix")
	assert.Contains(t, out, "ID: 603 | Added: 2024-05-01")
}

func TestStars(t *testing.T) {
	tests := map[int]string{
		0:  "☆☆☆☆☆",
		3:  "★★★☆☆",
		5:  "★★★★★",
		9:  "★★★★★",
		-2: "☆☆☆☆☆",
	}
	for rating, want := range tests {
		assert.Equal(t, want, Stars(rating), "rating %d", rating)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
	assert.False(t, IsTerminal(&strings.Builder{}))
}
