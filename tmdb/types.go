package tmdb

import (
	"strconv"
	"strings"
)

// Image URLs
const (
	// ImageBaseURL is prepended to poster and backdrop paths
	ImageBaseURL = "https://image.tmdb.org/t/p/w500"
	// PlaceholderPosterURL is shown for movies without a poster
	PlaceholderPosterURL = "https://via.placeholder.com/500x750?text=No+Image"
)

// Movie is a movie summary as returned by list, search and discover calls.
// Optional fields are left at their zero value when the provider omits them.
type Movie struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview,omitempty"`
	PosterPath  string  `json:"poster_path,omitempty"`
	VoteAverage float64 `json:"vote_average,omitempty"`
	ReleaseDate string  `json:"release_date,omitempty"`
	GenreIDs    []int   `json:"genre_ids,omitempty"`
}

// PosterURL returns the full poster URL, or the placeholder when the movie has none
func (m Movie) PosterURL() string {
	return PosterURL(m.PosterPath)
}

// DisplayTitle returns the title, falling back to "Untitled"
func (m Movie) DisplayTitle() string {
	if m.Title == "" {
		return "Untitled"
	}
	return m.Title
}

// Year returns the release year, or 0 when the release date is missing or malformed
func (m Movie) Year() int {
	return yearOf(m.ReleaseDate)
}

// PosterURL turns a provider image path into an absolute URL
func PosterURL(path string) string {
	if path == "" {
		return PlaceholderPosterURL
	}
	return ImageBaseURL + path
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}

// MoviePage is the paginated envelope for list endpoints
type MoviePage struct {
	Page         int     `json:"page"`
	Results      []Movie `json:"results"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
}

// HasMorePages checks if there are more pages to fetch
func (p *MoviePage) HasMorePages() bool {
	return p.Page < p.TotalPages
}

// Genre is a movie genre
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// GenreID returns the genre identifier in the string form used by list filters
func (g Genre) GenreID() string {
	return strconv.Itoa(g.ID)
}

// genresResponse wraps GET /genre/movie/list
type genresResponse struct {
	Genres []Genre `json:"genres"`
}

// FindGenre resolves a genre by id or case-insensitive name
func FindGenre(genres []Genre, idOrName string) (Genre, bool) {
	for _, g := range genres {
		if g.GenreID() == idOrName || strings.EqualFold(g.Name, idOrName) {
			return g, true
		}
	}
	return Genre{}, false
}

// MovieDetail is the response from GET /movie/{id}
type MovieDetail struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Tagline      string  `json:"tagline"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	Runtime      int     `json:"runtime"`
	Status       string  `json:"status"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
	Genres       []Genre `json:"genres"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	Homepage     string  `json:"homepage,omitempty"`
	IMDbID       string  `json:"imdb_id,omitempty"`
}

// Summary projects the detail back onto a list entry
func (d *MovieDetail) Summary() Movie {
	ids := make([]int, 0, len(d.Genres))
	for _, g := range d.Genres {
		ids = append(ids, g.ID)
	}
	return Movie{
		ID:          d.ID,
		Title:       d.Title,
		Overview:    d.Overview,
		PosterPath:  d.PosterPath,
		VoteAverage: d.VoteAverage,
		ReleaseDate: d.ReleaseDate,
		GenreIDs:    ids,
	}
}

// Year returns the release year, or 0 when unknown
func (d *MovieDetail) Year() int {
	return yearOf(d.ReleaseDate)
}

// CastMember is a single cast entry
type CastMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character"`
	ProfilePath string `json:"profile_path,omitempty"`
	Order       int    `json:"order"`
}

// creditsResponse wraps GET /movie/{id}/credits
type creditsResponse struct {
	ID   int64        `json:"id"`
	Cast []CastMember `json:"cast"`
}

// Video is an entry from GET /movie/{id}/videos
type Video struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Site     string `json:"site"`
	Type     string `json:"type"`
	Official bool   `json:"official"`
}

// IsYouTubeTrailer checks if the video is a trailer hosted on YouTube
func (v Video) IsYouTubeTrailer() bool {
	return v.Site == "YouTube" && v.Type == "Trailer"
}

// videosResponse wraps GET /movie/{id}/videos
type videosResponse struct {
	ID      int64   `json:"id"`
	Results []Video `json:"results"`
}

// SelectTrailer returns the key of the first YouTube trailer, or "" if there is none
func SelectTrailer(videos []Video) string {
	for _, v := range videos {
		if v.IsYouTubeTrailer() {
			return v.Key
		}
	}
	return ""
}

// errorResponse is the body TMDB sends with non-200 statuses
type errorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Success       bool   `json:"success"`
}
