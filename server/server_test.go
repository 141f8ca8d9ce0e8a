package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/cinescope/auth"
	"github.com/s0up4200/cinescope/browse"
	"github.com/s0up4200/cinescope/filter"
	"github.com/s0up4200/cinescope/store"
	"github.com/s0up4200/cinescope/tmdb"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeCatalog struct {
	mu      sync.Mutex
	calls   []string
	listErr error
	missing map[int64]bool
}

var genres = []tmdb.Genre{{ID: 28, Name: "Action"}, {ID: 35, Name: "Comedy"}}

func (f *fakeCatalog) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.listErr
}

func (f *fakeCatalog) FetchPopular(ctx context.Context, page int) ([]tmdb.Movie, error) {
	if err := f.record(fmt.Sprintf("popular:%d", page)); err != nil {
		return nil, err
	}
	return []tmdb.Movie{
		{ID: 603, Title: "The Matrix", PosterPath: "/m.jpg", VoteAverage: 8.2},
		{ID: 604, Title: "The Matrix Reloaded", VoteAverage: 7.0},
	}, nil
}

func (f *fakeCatalog) Search(ctx context.Context, query string, page int) ([]tmdb.Movie, error) {
	if err := f.record(fmt.Sprintf("search:%s:%d", query, page)); err != nil {
		return nil, err
	}
	return []tmdb.Movie{{ID: 603, Title: "The Matrix", VoteAverage: 8.2}}, nil
}

func (f *fakeCatalog) FetchByGenre(ctx context.Context, genreID string, page int) ([]tmdb.Movie, error) {
	if err := f.record(fmt.Sprintf("genre:%s:%d", genreID, page)); err != nil {
		return nil, err
	}
	return []tmdb.Movie{{ID: 155, Title: "The Dark Knight", VoteAverage: 8.5}}, nil
}

func (f *fakeCatalog) GetGenres(ctx context.Context) ([]tmdb.Genre, error) {
	return genres, nil
}

func (f *fakeCatalog) GetDetail(ctx context.Context, movieID int64) (*tmdb.MovieDetail, error) {
	if f.missing[movieID] {
		return nil, &tmdb.APIError{StatusCode: http.StatusNotFound, Message: "not found"}
	}
	return &tmdb.MovieDetail{ID: movieID, Title: "The Matrix", PosterPath: "/m.jpg"}, nil
}

func (f *fakeCatalog) GetTrailerKey(ctx context.Context, movieID int64) (string, error) {
	return "vKQi3bBA1y8", nil
}

func (f *fakeCatalog) GetCredits(ctx context.Context, movieID int64) ([]tmdb.CastMember, error) {
	return []tmdb.CastMember{{ID: 6384, Name: "Keanu Reeves", Character: "Neo"}}, nil
}

type fixture struct {
	server  *Server
	catalog *fakeCatalog
	store   store.Store
	tokens  *auth.Tokens
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	st, err := store.Open(store.Options{Driver: store.DriverSQLite, DSN: ":memory:"}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	tokens, err := auth.NewTokens("test-secret", "cinescope", time.Hour)
	require.NoError(t, err)

	filters := filter.NewManager()
	require.NoError(t, filters.RegisterFilter("acclaimed", "Rating >= 8"))

	catalog := &fakeCatalog{missing: map[int64]bool{}}
	opts.Debounce = 10 * time.Millisecond
	return &fixture{
		server:  New(catalog, st, tokens, filters, zerolog.Nop(), opts),
		catalog: catalog,
		store:   st,
		tokens:  tokens,
	}
}

func (f *fixture) token(t *testing.T, id string) string {
	t.Helper()
	token, err := f.tokens.Issue(auth.User{ID: id, DisplayName: strings.ToUpper(id)})
	require.NoError(t, err)
	return token
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, Options{})
	rec := f.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestListMovies(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantLabel string
		wantCall  string
		wantCount int
	}{
		{name: "popular", query: "", wantLabel: "Popular Movies", wantCall: "popular:1", wantCount: 2},
		{name: "search trims query", query: "?query=%20matrix%20&page=2", wantLabel: `Results for "matrix"`, wantCall: "search:matrix:2", wantCount: 1},
		{name: "genre", query: "?genre=28", wantLabel: "Action Movies", wantCall: "genre:28:1", wantCount: 1},
		{name: "query wins over genre", query: "?genre=28&query=matrix", wantLabel: `Results for "matrix"`, wantCall: "search:matrix:1", wantCount: 1},
		{name: "preset", query: "?preset=acclaimed", wantLabel: "Popular Movies", wantCall: "popular:1", wantCount: 1},
		{name: "expression", query: "?filter=HasPoster", wantLabel: "Popular Movies", wantCall: "popular:1", wantCount: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			rec := f.do(t, http.MethodGet, "/api/movies"+tt.query, "", "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp listResponse
			decode(t, rec, &resp)
			assert.Equal(t, tt.wantLabel, resp.Label)
			assert.Equal(t, tt.wantCount, resp.Count)
			assert.Len(t, resp.Results, tt.wantCount)
			assert.Equal(t, []string{tt.wantCall}, f.catalog.calls)
		})
	}
}

func TestListMoviesHighlightsTitles(t *testing.T) {
	f := newFixture(t, Options{})
	rec := f.do(t, http.MethodGet, "/api/movies?query=MATRIX", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listResponse
	decode(t, rec, &resp)
	require.Len(t, resp.Results, 1)
	item := resp.Results[0]
	assert.Equal(t, tmdb.PlaceholderPosterURL, item.PosterURL)
	require.Len(t, item.TitleSegments, 2)
	assert.Equal(t, "The ", item.TitleSegments[0].Text)
	assert.False(t, item.TitleSegments[0].Match)
	assert.Equal(t, "Matrix", item.TitleSegments[1].Text)
	assert.True(t, item.TitleSegments[1].Match)
}

func TestListMoviesBadRequests(t *testing.T) {
	f := newFixture(t, Options{})
	for _, path := range []string{
		"/api/movies?page=0",
		"/api/movies?page=abc",
		"/api/movies?filter=Rating%20%3E%3D",
		"/api/movies?preset=missing",
	} {
		rec := f.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
	assert.Empty(t, f.catalog.calls)
}

func TestListMoviesCatalogErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "circuit open", err: tmdb.ErrCircuitOpen, want: http.StatusServiceUnavailable},
		{name: "upstream failure", err: &tmdb.APIError{StatusCode: 500, Message: "boom"}, want: http.StatusBadGateway},
		{name: "network", err: fmt.Errorf("dial tcp: refused"), want: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			f.catalog.listErr = tt.err
			rec := f.do(t, http.MethodGet, "/api/movies", "", "")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestGetMovie(t *testing.T) {
	f := newFixture(t, Options{})
	f.catalog.missing[999] = true

	rec := f.do(t, http.MethodGet, "/api/movies/603", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		MovieID    int64  `json:"movie_id"`
		TrailerURL string `json:"trailer_url"`
		SignedIn   bool   `json:"signed_in"`
	}
	decode(t, rec, &view)
	assert.Equal(t, int64(603), view.MovieID)
	assert.Equal(t, "https://www.youtube.com/embed/vKQi3bBA1y8", view.TrailerURL)
	assert.False(t, view.SignedIn)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/movies/999", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/movies/abc", "", "").Code)
}

func TestAuthentication(t *testing.T) {
	f := newFixture(t, Options{})

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/favorites", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/movies", "garbage", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/favorites", f.token(t, "neo"), "").Code)

	strict := newFixture(t, Options{RequireAuth: true})
	assert.Equal(t, http.StatusUnauthorized, strict.do(t, http.MethodGet, "/api/movies", "", "").Code)
	assert.Equal(t, http.StatusOK, strict.do(t, http.MethodGet, "/api/movies", strict.token(t, "neo"), "").Code)
	assert.Equal(t, http.StatusOK, strict.do(t, http.MethodGet, "/healthz", "", "").Code)
}

func TestToggleFavorite(t *testing.T) {
	f := newFixture(t, Options{})
	token := f.token(t, "neo")

	rec := f.do(t, http.MethodPost, "/api/movies/603/favorite", token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Favorite bool `json:"favorite"`
	}
	decode(t, rec, &resp)
	assert.True(t, resp.Favorite)

	rec = f.do(t, http.MethodGet, "/api/favorites", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var favs struct {
		Favorites []store.Favorite `json:"favorites"`
	}
	decode(t, rec, &favs)
	require.Len(t, favs.Favorites, 1)
	assert.Equal(t, "The Matrix", favs.Favorites[0].Title)

	rec = f.do(t, http.MethodPost, "/api/movies/603/favorite", token, "")
	decode(t, rec, &resp)
	assert.False(t, resp.Favorite)

	f.catalog.missing[999] = true
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/movies/999/favorite", token, "").Code)
}

func TestReviews(t *testing.T) {
	f := newFixture(t, Options{})
	neo := f.token(t, "neo")
	trinity := f.token(t, "trinity")

	tests := []struct {
		name  string
		body  string
		token string
		want  int
	}{
		{name: "signed out", body: `{"rating":4}`, want: http.StatusUnauthorized},
		{name: "missing rating", body: `{"text":"hm"}`, token: neo, want: http.StatusBadRequest},
		{name: "rating too high", body: `{"rating":6}`, token: neo, want: http.StatusBadRequest},
		{name: "malformed body", body: `{`, token: neo, want: http.StatusBadRequest},
		{name: "valid", body: `{"rating":5,"text":"Whoa"}`, token: neo, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPut, "/api/movies/603/reviews", tt.token, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := f.do(t, http.MethodGet, "/api/movies/603/reviews", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Reviews []store.Review `json:"reviews"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.Reviews, 1)
	assert.Equal(t, "NEO", resp.Reviews[0].AuthorName)
	assert.Equal(t, 5, resp.Reviews[0].Rating)

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodDelete, "/api/movies/603/reviews/neo", trinity, "").Code)

	rec = f.do(t, http.MethodDelete, "/api/movies/603/reviews/neo", neo, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.Empty(t, resp.Reviews)
}

func readState(t *testing.T, conn *websocket.Conn, until func(ServerMessage) bool) ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if until(msg) {
			return msg
		}
	}
}

func idleState(msg ServerMessage) bool {
	return msg.Type == MessageState && !msg.State.Loading
}

func TestBrowseSession(t *testing.T) {
	f := newFixture(t, Options{})
	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/browse"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	msg := readState(t, conn, idleState)
	assert.Equal(t, "Popular Movies", msg.State.HeaderLabel)
	assert.Len(t, msg.State.Results, 2)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageGenre, Value: "35"}))
	msg = readState(t, conn, func(m ServerMessage) bool {
		return idleState(m) && m.State.Filter.GenreID == "35"
	})
	assert.Equal(t, "Comedy Movies", msg.State.HeaderLabel)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageQuery, Value: "matrix"}))
	msg = readState(t, conn, func(m ServerMessage) bool {
		return idleState(m) && m.State.Filter.Source() == browse.SourceSearch
	})
	assert.Empty(t, msg.State.Filter.GenreID)
	assert.Equal(t, `Results for "matrix"`, msg.State.HeaderLabel)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageRetry}))
	msg = readState(t, conn, func(m ServerMessage) bool { return m.Type == MessageError })
	assert.Equal(t, browse.ErrNothingToRetry.Error(), msg.Error)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "dance"}))
	msg = readState(t, conn, func(m ServerMessage) bool { return m.Type == MessageError })
	assert.Contains(t, msg.Error, "unknown message type")
}

func TestSessionQueryReplacingGenreIsDebounced(t *testing.T) {
	catalog := &fakeCatalog{}
	c := browse.NewController(catalog, zerolog.Nop(), browse.WithDebounce(100*time.Millisecond))
	t.Cleanup(c.Close)
	require.NoError(t, c.Mount(context.Background()))
	sess := &session{controller: c}

	wait := func() browse.State {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		state, err := c.WaitIdle(ctx)
		require.NoError(t, err)
		return state
	}
	wait()

	require.NoError(t, sess.apply(ClientMessage{Type: MessageGenre, Value: "28"}))
	wait()

	require.NoError(t, sess.apply(ClientMessage{Type: MessageQuery, Value: "m"}))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, sess.apply(ClientMessage{Type: MessageQuery, Value: "ma"}))
	state := wait()

	catalog.mu.Lock()
	calls := append([]string(nil), catalog.calls...)
	catalog.mu.Unlock()
	assert.Equal(t, []string{"popular:1", "genre:28:1", "search:ma:1"}, calls)
	assert.Empty(t, state.Filter.GenreID)
	assert.Equal(t, "ma", state.Filter.Query)
}

func TestCheckOrigin(t *testing.T) {
	s := &Server{opts: Options{CORSOrigins: []string{"http://localhost:5173"}}}

	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{origin: "", host: "api:8080", want: true},
		{origin: "http://localhost:5173", host: "api:8080", want: true},
		{origin: "http://api:8080", host: "api:8080", want: true},
		{origin: "http://evil.example", host: "api:8080", want: false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws/browse", nil)
		req.Host = tt.host
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, s.checkOrigin(req), tt.origin)
	}
}

func TestWarm(t *testing.T) {
	f := newFixture(t, Options{})
	f.server.warm(context.Background())
	assert.Equal(t, []string{"popular:1"}, f.catalog.calls)
}
