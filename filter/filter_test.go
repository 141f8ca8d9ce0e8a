package filter

import (
	"errors"
	"strings"
	"testing"

	"github.com/s0up4200/cinescope/tmdb"
)

func TestCompileFilter(t *testing.T) {
	tests := []struct {
		name        string
		expression  string
		wantErr     bool
		errContains string
	}{
		{
			name:       "valid expression",
			expression: `hasGenre(28)`,
			wantErr:    false,
		},
		{
			name:        "empty expression",
			expression:  "   ",
			wantErr:     true,
			errContains: "empty expression",
		},
		{
			name:       "invalid syntax",
			expression: `contains(Title, "unclosed`,
			wantErr:    true,
		},
		{
			name:       "unknown variable",
			expression: `Runtime > 120`,
			wantErr:    true,
		},
		{
			name:       "not a boolean",
			expression: `Year + 1`,
			wantErr:    true,
		},
		{
			name:       "complex expression",
			expression: `hasGenre("Action") and Year > 1990 and rating() >= 7.0`,
			wantErr:    false,
		},
	}

	compiler := NewExprCompiler(WithGenres([]tmdb.Genre{{ID: 28, Name: "Action"}}))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := compiler.Compile(tt.expression)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error but got none")
				}
				var compErr *CompilationError
				if !errors.As(err, &compErr) {
					t.Errorf("expected *CompilationError, got %T", err)
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if filter.Expression() != strings.TrimSpace(tt.expression) {
				t.Errorf("expression = %q", filter.Expression())
			}
		})
	}
}

func TestFilterEvaluation(t *testing.T) {
	movie := tmdb.Movie{
		ID:          603,
		Title:       "The Matrix",
		Overview:    "A hacker learns the truth about reality.",
		PosterPath:  "/m.jpg",
		VoteAverage: 8.2,
		ReleaseDate: "1999-03-31",
		GenreIDs:    []int{28, 878},
	}

	compiler := NewExprCompiler(WithGenres([]tmdb.Genre{
		{ID: 28, Name: "Action"},
		{ID: 878, Name: "Science Fiction"},
		{ID: 35, Name: "Comedy"},
	}))

	tests := []struct {
		name       string
		expression string
		want       bool
	}{
		{"genre by id", `hasGenre(878)`, true},
		{"genre by name", `hasGenre("science fiction")`, true},
		{"missing genre", `hasGenre("Comedy")`, false},
		{"unknown genre name", `hasGenre("Western")`, false},
		{"year field", `Year == 1999`, true},
		{"year helper", `year(Movie) < 2000`, true},
		{"rating helper", `rating() > 8`, true},
		{"rating field", `Rating < 5`, false},
		{"title contains", `contains(Title, "matrix")`, true},
		{"title prefix", `startsWith(Title, "the ")`, true},
		{"overview lower", `lower(Overview) matches "truth"`, true},
		{"poster", `HasPoster`, true},
		{"released date", `Released.Before(parseDate("2000-01-01"))`, true},
		{"combined", `hasGenre("Action") and Year > 1990 and not contains(Title, "reloaded")`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := compiler.Compile(tt.expression)
			if err != nil {
				t.Fatalf("compile %q: %v", tt.expression, err)
			}
			if got := filter.Evaluate(movie); got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.expression, got, tt.want)
			}
		})
	}
}

func TestFilterMissingFields(t *testing.T) {
	compiler := NewExprCompiler()
	filter, err := compiler.Compile(`Year == 0 and not HasPoster and Rating == 0`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !filter.Evaluate(tmdb.Movie{ID: 1, Title: "Unknown"}) {
		t.Error("expected zero-valued optional fields to match")
	}
}

func TestApply(t *testing.T) {
	movies := []tmdb.Movie{
		{ID: 1, Title: "Alien", VoteAverage: 8.5},
		{ID: 2, Title: "Aliens", VoteAverage: 8.4},
		{ID: 3, Title: "Alien 3", VoteAverage: 6.4},
		{ID: 2, Title: "Aliens", VoteAverage: 8.4},
	}
	original := append([]tmdb.Movie(nil), movies...)

	filter, err := NewExprCompiler().Compile(`Rating >= 8`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	got := Apply(filter, movies)
	if len(got) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(got))
	}
	for i, id := range []int64{1, 2, 2} {
		if got[i].ID != id {
			t.Errorf("match %d: id %d, want %d", i, got[i].ID, id)
		}
	}
	for i := range movies {
		if movies[i].ID != original[i].ID {
			t.Fatal("Apply modified its input")
		}
	}

	if all := Apply(nil, movies); len(all) != len(movies) {
		t.Errorf("nil filter should match everything, got %d", len(all))
	}
}

func TestFilterManager(t *testing.T) {
	manager := NewManager()

	filters := map[string]string{
		"acclaimed": `Rating >= 8`,
		"classics":  `Year > 0 and Year < 1980`,
		"postered":  `HasPoster`,
	}

	if err := manager.RegisterFilters(filters); err != nil {
		t.Fatalf("failed to register filters: %v", err)
	}

	names := manager.ListFilters()
	if strings.Join(names, ",") != "acclaimed,classics,postered" {
		t.Errorf("unexpected preset names %v", names)
	}

	filter, err := manager.Preset("classics")
	if err != nil {
		t.Fatalf("preset: %v", err)
	}
	if !filter.Evaluate(tmdb.Movie{Title: "Jaws", ReleaseDate: "1975-06-20"}) {
		t.Error("expected Jaws to be a classic")
	}

	if _, err := manager.Preset("missing"); !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("expected ErrUnknownPreset, got %v", err)
	}

	// a bad expression leaves the registered set untouched
	err = manager.RegisterFilters(map[string]string{"ok": `HasPoster`, "bad": `Year +`})
	if err == nil {
		t.Fatal("expected compile error")
	}
	if _, ok := manager.GetFilter("ok"); ok {
		t.Error("expected no partial registration")
	}

	if err := manager.RegisterFilter("single", `rating() > 1`); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, ok := manager.GetFilter("single"); !ok {
		t.Error("expected 'single' to be registered")
	}
}

func TestCacheEffectiveness(t *testing.T) {
	compiler := NewExprCompiler(WithCache(10))
	expression := `hasGenre(28) and Year > 2020`

	first, err := compiler.Compile(expression)
	if err != nil {
		t.Fatalf("first compilation failed: %v", err)
	}

	second, err := compiler.Compile("  " + expression + "  ")
	if err != nil {
		t.Fatalf("second compilation failed: %v", err)
	}
	if first != second {
		t.Error("expected the cached filter to be returned")
	}

	if compiler.Size() != 1 {
		t.Errorf("expected cache size 1 but got %d", compiler.Size())
	}

	compiler.Clear()
	if compiler.Size() != 0 {
		t.Errorf("expected cache size 0 after clear but got %d", compiler.Size())
	}
}
