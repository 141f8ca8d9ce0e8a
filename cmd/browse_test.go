package cmd

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/s0up4200/cinescope/browse"
	"github.com/s0up4200/cinescope/console"
	"github.com/s0up4200/cinescope/filter"
	"github.com/s0up4200/cinescope/tmdb"
)

var testGenres = []tmdb.Genre{{ID: 28, Name: "Action"}, {ID: 35, Name: "Comedy"}}

type stubCatalog struct{}

func (stubCatalog) FetchPopular(ctx context.Context, page int) ([]tmdb.Movie, error) {
	return []tmdb.Movie{{ID: int64(page), Title: fmt.Sprintf("Popular %d", page)}}, nil
}

func (stubCatalog) Search(ctx context.Context, query string, page int) ([]tmdb.Movie, error) {
	return []tmdb.Movie{{ID: int64(100 + page), Title: fmt.Sprintf("The %s page %d", query, page), VoteAverage: 8}}, nil
}

func (stubCatalog) FetchByGenre(ctx context.Context, genreID string, page int) ([]tmdb.Movie, error) {
	return []tmdb.Movie{{ID: int64(200 + page), Title: "Genre pick " + genreID}}, nil
}

func TestResolveGenre(t *testing.T) {
	tests := []struct {
		name    string
		genres  []tmdb.Genre
		input   string
		want    string
		wantErr bool
	}{
		{name: "by id", genres: testGenres, input: "35", want: "35"},
		{name: "by name", genres: testGenres, input: "action", want: "28"},
		{name: "unknown", genres: testGenres, input: "Western", wantErr: true},
		{name: "no genre list", genres: nil, input: "37", want: "37"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveGenre(tt.genres, tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolveGenre() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("resolveGenre() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunInteractive(t *testing.T) {
	logger = zerolog.Nop()

	controller := browse.NewController(stubCatalog{}, logger,
		browse.WithDebounce(0),
		browse.WithGenres(testGenres),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := controller.Mount(ctx); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	view := &listView{out: &out, formatter: console.NewConsoleFormatter(false)}
	input := strings.Join([]string{
		"matrix",
		":more",
		":genre comedy",
		":genre Western",
		":bogus-but-searched",
		":quit",
		"never read",
	}, "\n")

	if err := runInteractive(ctx, controller, testGenres, strings.NewReader(input), view); err != nil {
		t.Fatalf("runInteractive() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"Popular Movies (1):",
		`Results for "matrix" (1):`,
		`Results for "matrix" (2):`,
		"The matrix page 2",
		"Comedy Movies (1):",
		"unknown genre: Western",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "never read") {
		t.Error("input after :quit was processed")
	}

	state := controller.Snapshot()
	if state.Filter.GenreID != "" || state.Filter.TrimmedQuery() != ":bogus-but-searched" {
		t.Errorf("a query should clear the genre, got filter %+v", state.Filter)
	}
}

func TestListViewFilters(t *testing.T) {
	manager := filter.NewManager()
	compiled, err := manager.Compile("Rating >= 8")
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	view := &listView{out: &out, formatter: console.NewConsoleFormatter(false), filter: compiled}
	view.print(browse.State{
		HeaderLabel: "Popular Movies",
		Results: []tmdb.Movie{
			{ID: 1, Title: "Good", VoteAverage: 8.1},
			{ID: 2, Title: "Meh", VoteAverage: 5},
		},
	})

	got := out.String()
	if !strings.Contains(got, "Good") || strings.Contains(got, "Meh") {
		t.Errorf("unexpected filtered output:\n%s", got)
	}
	if !strings.Contains(got, "(1 of 2 shown after filtering)") {
		t.Errorf("missing filter summary:\n%s", got)
	}
}
