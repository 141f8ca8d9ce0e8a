package tmdb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/s0up4200/cinescope/cache"
	"github.com/s0up4200/cinescope/metrics"
)

// Client represents a TMDB API client
type Client struct {
	baseURL         string
	apiKey          string
	bearerToken     string
	language        string
	httpClient      *http.Client
	cache           cache.Cache
	cacheTTL        time.Duration
	breakerSettings *BreakerSettings
	breaker         *gobreaker.CircuitBreaker[[]byte]
	logger          zerolog.Logger
}

// NewClient creates a new TMDB client. Either apiKey or WithBearerToken is required.
func NewClient(apiKey string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	client := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		language:   DefaultLanguage,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger,
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" && client.bearerToken == "" {
		return nil, fmt.Errorf("%w: api key or read access token is required", ErrInvalidConfig)
	}

	client.baseURL = strings.TrimRight(client.baseURL, "/")

	if client.breakerSettings != nil {
		client.breaker = newBreaker(*client.breakerSettings, logger)
	}

	return client, nil
}

// doRequest performs a GET request and returns the raw body of a 200 response.
// Successful bodies are served from and stored in the response cache when one is configured.
func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	if c.language != "" {
		params.Set("language", c.language)
	}

	cacheKey := endpoint + "?" + params.Encode()
	if c.cache != nil {
		body, ok, err := c.cache.Get(ctx, cacheKey)
		if err != nil {
			c.logger.Warn().Err(err).Str("backend", c.cache.Name()).Msg("Cache lookup failed")
		} else if ok {
			c.logger.Debug().Str("endpoint", endpoint).Msg("Serving catalog response from cache")
			return body, nil
		}
	}

	started := time.Now()
	fetch := func() ([]byte, error) {
		body, err := c.fetch(ctx, endpoint, params)
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", errCallerDone, err)
		}
		return body, err
	}

	var (
		body []byte
		err  error
	)
	if c.breaker != nil {
		body, err = c.breaker.Execute(fetch)
		if isBreakerRejection(err) {
			metrics.ObserveCatalogRequest(endpoint, "rejected", started)
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
	} else {
		body, err = fetch()
	}

	if err != nil {
		metrics.ObserveCatalogRequest(endpoint, "error", started)
		c.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("Catalog request failed")
		return nil, err
	}
	metrics.ObserveCatalogRequest(endpoint, "success", started)

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, body, c.cacheTTL); err != nil {
			c.logger.Warn().Err(err).Str("backend", c.cache.Name()).Msg("Cache store failed")
		}
	}

	return body, nil
}

// fetch issues the HTTP request with credentials attached
func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	if c.bearerToken == "" {
		query.Set("api_key", c.apiKey)
	}

	requestURL := fmt.Sprintf("%s%s?%s", c.baseURL, endpoint, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       string(body),
		}
		var parsed errorResponse
		if json.Unmarshal(body, &parsed) == nil && parsed.StatusMessage != "" {
			apiErr.Message = parsed.StatusMessage
		}
		return nil, apiErr
	}

	return body, nil
}

// getJSON fetches endpoint and decodes the body into out
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	body, err := c.doRequest(ctx, endpoint, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// fetchPage fetches one page of a list endpoint
func (c *Client) fetchPage(ctx context.Context, endpoint string, params url.Values, page int) (*MoviePage, error) {
	if page < 1 {
		page = 1
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("page", strconv.Itoa(page))

	var result MoviePage
	if err := c.getJSON(ctx, endpoint, params, &result); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("page", result.Page).
		Int("count", len(result.Results)).
		Int("total_pages", result.TotalPages).
		Msg("Retrieved movie page from TMDB")

	return &result, nil
}

// TestConnection verifies the credentials using the configuration endpoint
func (c *Client) TestConnection(ctx context.Context) error {
	if _, err := c.fetch(ctx, "/configuration", url.Values{}); err != nil {
		return fmt.Errorf("failed to connect to TMDB: %w", err)
	}
	return nil
}

// FetchPopularPage returns a page of popular movies with its pagination envelope
func (c *Client) FetchPopularPage(ctx context.Context, page int) (*MoviePage, error) {
	result, err := c.fetchPage(ctx, "/movie/popular", nil, page)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch popular movies: %w", err)
	}
	return result, nil
}

// FetchPopular returns one page of popular movies
func (c *Client) FetchPopular(ctx context.Context, page int) ([]Movie, error) {
	result, err := c.FetchPopularPage(ctx, page)
	if err != nil {
		return nil, err
	}
	return result.Results, nil
}

// Search returns one page of movies whose title matches query
func (c *Client) Search(ctx context.Context, query string, page int) ([]Movie, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "false")

	result, err := c.fetchPage(ctx, "/search/movie", params, page)
	if err != nil {
		return nil, fmt.Errorf("failed to search movies for %q: %w", query, err)
	}
	return result.Results, nil
}

// FetchByGenre returns one page of popular movies in the given genre
func (c *Client) FetchByGenre(ctx context.Context, genreID string, page int) ([]Movie, error) {
	if genreID == "" {
		return nil, fmt.Errorf("%w: genre id is required", ErrInvalidConfig)
	}

	params := url.Values{}
	params.Set("with_genres", genreID)
	params.Set("sort_by", "popularity.desc")

	result, err := c.fetchPage(ctx, "/discover/movie", params, page)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch movies for genre %s: %w", genreID, err)
	}
	return result.Results, nil
}

// GetDetail returns the full record for one movie
func (c *Client) GetDetail(ctx context.Context, movieID int64) (*MovieDetail, error) {
	var detail MovieDetail
	if err := c.getJSON(ctx, fmt.Sprintf("/movie/%d", movieID), nil, &detail); err != nil {
		return nil, fmt.Errorf("failed to fetch details for movie %d: %w", movieID, err)
	}
	return &detail, nil
}

// GetVideos returns every video attached to a movie
func (c *Client) GetVideos(ctx context.Context, movieID int64) ([]Video, error) {
	var resp videosResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/movie/%d/videos", movieID), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch videos for movie %d: %w", movieID, err)
	}
	return resp.Results, nil
}

// GetTrailerKey returns the key of the first YouTube trailer, or "" when the movie has none
func (c *Client) GetTrailerKey(ctx context.Context, movieID int64) (string, error) {
	videos, err := c.GetVideos(ctx, movieID)
	if err != nil {
		return "", err
	}
	return SelectTrailer(videos), nil
}

// GetCredits returns the cast ordered by billing
func (c *Client) GetCredits(ctx context.Context, movieID int64) ([]CastMember, error) {
	var resp creditsResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/movie/%d/credits", movieID), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch credits for movie %d: %w", movieID, err)
	}

	sort.SliceStable(resp.Cast, func(i, j int) bool {
		return resp.Cast[i].Order < resp.Cast[j].Order
	})
	return resp.Cast, nil
}

// GetGenres returns the movie genre list
func (c *Client) GetGenres(ctx context.Context) ([]Genre, error) {
	var resp genresResponse
	if err := c.getJSON(ctx, "/genre/movie/list", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch genres: %w", err)
	}
	return resp.Genres, nil
}
