// Package tmdb provides a client for The Movie Database (TMDB) v3 API.
//
// The client covers the calls CineScope needs to browse the catalog: popular
// movies, search, discover-by-genre, movie details, videos (trailers), credits
// and the genre list.
//
// # Usage
//
//	logger := zerolog.New(os.Stdout)
//	client, err := tmdb.NewClient(
//		"your-api-key",
//		logger,
//		tmdb.WithTimeout(10*time.Second),
//		tmdb.WithLanguage("en-US"),
//		tmdb.WithCache(cache.NewMemory(512), 10*time.Minute),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	movies, err := client.Search(ctx, "matrix", 1)
//
// # Error Handling
//
// Every method returns an explicit error; failures are never turned into empty
// results. The package defines:
//
//   - ErrInvalidConfig: missing credentials
//   - ErrNotFound: the requested movie does not exist
//   - ErrUnauthorized: the API key or token was rejected
//   - ErrCircuitOpen: the circuit breaker is rejecting calls
//   - APIError: any other non-200 response, with the status code
//
// API errors can be classified with errors.As:
//
//	var apiErr *tmdb.APIError
//	if errors.As(err, &apiErr) && apiErr.IsUnauthorized() {
//		// Handle auth failure
//	}
package tmdb
