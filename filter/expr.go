package filter

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/s0up4200/cinescope/cache"
	"github.com/s0up4200/cinescope/tmdb"
)

// exprFilter implements CompiledFilter using the expr language
type exprFilter struct {
	expression string
	program    *vm.Program
	genres     map[string]int
}

// ExprCompilerOption configures an expr compiler
type ExprCompilerOption func(*exprCompiler)

// WithCache enables filter caching with the specified size
func WithCache(size int) ExprCompilerOption {
	return func(c *exprCompiler) {
		if size > 0 {
			c.cache = cache.NewLRU(size)
		}
	}
}

// WithGenres lets hasGenre accept genre names as well as ids
func WithGenres(genres []tmdb.Genre) ExprCompilerOption {
	return func(c *exprCompiler) {
		for _, g := range genres {
			c.genres[strings.ToLower(g.Name)] = g.ID
		}
	}
}

// NewExprCompiler creates a new expr-based filter compiler
func NewExprCompiler(opts ...ExprCompilerOption) CachingCompiler {
	c := &exprCompiler{
		genres: make(map[string]int),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// exprCompiler implements Compiler for expr-based filters
type exprCompiler struct {
	cache  *cache.LRU
	genres map[string]int
}

// Compile compiles an expression into an executable filter
func (c *exprCompiler) Compile(expression string) (CompiledFilter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "empty expression",
		}
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(expression); ok {
			return cached.(CompiledFilter), nil
		}
	}

	// a zero movie gives the checker every name and signature
	program, err := expr.Compile(expression,
		expr.Env(createRuntimeEnvironment(tmdb.Movie{}, c.genres)),
		expr.AsBool(),
	)
	if err != nil {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "failed to compile expression",
			Err:        err,
		}
	}

	filter := &exprFilter{
		expression: expression,
		program:    program,
		genres:     maps.Clone(c.genres),
	}

	if c.cache != nil {
		c.cache.Put(expression, filter)
	}

	return filter, nil
}

// Clear removes all cached filters
func (c *exprCompiler) Clear() {
	if c.cache != nil {
		c.cache.Clear()
	}
}

// Size returns the number of cached filters
func (c *exprCompiler) Size() int {
	if c.cache != nil {
		return c.cache.Len()
	}
	return 0
}

// Evaluate evaluates the filter against a movie. Movies that fail evaluation do not match.
func (f *exprFilter) Evaluate(movie tmdb.Movie) bool {
	ok, err := f.Match(movie)
	return err == nil && ok
}

// Match evaluates the filter and reports runtime errors
func (f *exprFilter) Match(movie tmdb.Movie) (bool, error) {
	result, err := expr.Run(f.program, createRuntimeEnvironment(movie, f.genres))
	if err != nil {
		return false, &EvaluationError{
			Expression: f.expression,
			MovieTitle: movie.Title,
			Err:        err,
		}
	}

	// Result is guaranteed to be bool due to AsBool() option during compilation
	return result.(bool), nil
}

// Expression returns the original expression
func (f *exprFilter) Expression() string {
	return f.expression
}

// addHelperFunctions adds the movie-independent helpers to env
func addHelperFunctions(env map[string]any) {
	// Date helpers
	env["daysSince"] = func(t time.Time) int {
		return int(time.Since(t).Hours() / 24)
	}
	env["daysAgo"] = func(days int) time.Time {
		return time.Now().AddDate(0, 0, -days)
	}
	env["yearsAgo"] = func(years int) time.Time {
		return time.Now().AddDate(-years, 0, 0)
	}
	env["parseDate"] = parseDate
	env["year"] = func(m tmdb.Movie) int {
		return m.Year()
	}
	// String helpers
	env["contains"] = func(str, substr string) bool {
		return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
	}
	env["startsWith"] = func(str, prefix string) bool {
		return strings.HasPrefix(strings.ToLower(str), strings.ToLower(prefix))
	}
	env["endsWith"] = func(str, suffix string) bool {
		return strings.HasSuffix(strings.ToLower(str), strings.ToLower(suffix))
	}
	env["lower"] = strings.ToLower
	env["upper"] = strings.ToUpper
	// Current time
	env["now"] = time.Now
}

// createRuntimeEnvironment creates the environment a filter runs against
func createRuntimeEnvironment(movie tmdb.Movie, genres map[string]int) map[string]any {
	env := make(map[string]any, 32)

	addHelperFunctions(env)

	env["Movie"] = movie

	env["hasGenre"] = createHasGenreFunc(movie.GenreIDs, genres)
	env["rating"] = func() float64 {
		return movie.VoteAverage
	}

	// Direct movie properties for convenience
	env["ID"] = movie.ID
	env["Title"] = movie.Title
	env["Overview"] = movie.Overview
	env["Year"] = movie.Year()
	env["Rating"] = movie.VoteAverage
	env["ReleaseDate"] = movie.ReleaseDate
	env["Released"] = parseDate(movie.ReleaseDate)
	env["GenreIDs"] = movie.GenreIDs
	env["HasPoster"] = movie.PosterPath != ""

	return env
}

func parseDate(dateStr string) time.Time {
	t, _ := time.Parse("2006-01-02", dateStr)
	return t
}

// createHasGenreFunc accepts a numeric genre id or a genre name
func createHasGenreFunc(ids []int, genres map[string]int) func(any) bool {
	return func(genre any) bool {
		switch v := genre.(type) {
		case int:
			return slices.Contains(ids, v)
		case int64:
			return slices.Contains(ids, int(v))
		case float64:
			return slices.Contains(ids, int(v))
		case string:
			id, ok := genres[strings.ToLower(v)]
			return ok && slices.Contains(ids, id)
		default:
			return false
		}
	}
}
