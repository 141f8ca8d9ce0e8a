package browse

import (
	"context"
	"fmt"
	"strings"

	"github.com/s0up4200/cinescope/tmdb"
)

// Catalog is the part of the catalog client the list needs.
type Catalog interface {
	FetchPopular(ctx context.Context, page int) ([]tmdb.Movie, error)
	Search(ctx context.Context, query string, page int) ([]tmdb.Movie, error)
	FetchByGenre(ctx context.Context, genreID string, page int) ([]tmdb.Movie, error)
}

// Source names the catalog call a filter resolves to.
type Source string

const (
	SourcePopular Source = "popular"
	SourceSearch  Source = "search"
	SourceGenre   Source = "genre"
)

// Filter selects which list is shown. Page is the last page loaded into it.
//
// Query and GenreID are kept independently. A non-blank query wins over the
// genre when choosing the data source.
type Filter struct {
	Query   string `json:"query"`
	GenreID string `json:"genre_id"`
	Page    int    `json:"page"`
}

// TrimmedQuery returns the query without surrounding whitespace.
func (f Filter) TrimmedQuery() string {
	return strings.TrimSpace(f.Query)
}

// Source applies the dispatch priority: search, then genre, then popular.
func (f Filter) Source() Source {
	switch {
	case f.TrimmedQuery() != "":
		return SourceSearch
	case f.GenreID != "":
		return SourceGenre
	default:
		return SourcePopular
	}
}

// SameIdentity reports whether two filters select the same list, ignoring the page.
func (f Filter) SameIdentity(other Filter) bool {
	return f.TrimmedQuery() == other.TrimmedQuery() && f.GenreID == other.GenreID
}

// Fetch issues the single catalog call selected by f.
func Fetch(ctx context.Context, catalog Catalog, f Filter) ([]tmdb.Movie, Source, error) {
	page := f.Page
	if page < 1 {
		page = 1
	}

	source := f.Source()
	var (
		movies []tmdb.Movie
		err    error
	)
	switch source {
	case SourceSearch:
		movies, err = catalog.Search(ctx, f.TrimmedQuery(), page)
	case SourceGenre:
		movies, err = catalog.FetchByGenre(ctx, f.GenreID, page)
	default:
		movies, err = catalog.FetchPopular(ctx, page)
	}
	return movies, source, err
}

// HeaderLabel describes the list selected by f. genreName may be empty when the
// genre list has not been loaded.
func HeaderLabel(f Filter, genreName string) string {
	switch f.Source() {
	case SourceSearch:
		return fmt.Sprintf("Results for %q", f.TrimmedQuery())
	case SourceGenre:
		if genreName != "" {
			return genreName + " Movies"
		}
		return "Genre " + f.GenreID
	default:
		return "Popular Movies"
	}
}
