package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

func favoritePrefix(userID string) []byte {
	return []byte("users/" + userID + "/favorites/")
}

func favoriteKey(userID string, movieID int64) []byte {
	return append(favoritePrefix(userID), strconv.FormatInt(movieID, 10)...)
}

func reviewPrefix(movieID int64) []byte {
	return []byte("movies/" + strconv.FormatInt(movieID, 10) + "/reviews/")
}

func reviewKey(movieID int64, userID string) []byte {
	return append(reviewPrefix(movieID), userID...)
}

// BadgerStore is a Store on an embedded badger database.
type BadgerStore struct {
	db  *badger.DB
	now func() time.Time
}

// NewBadgerStore returns a store using db. The store owns db and closes it on Close.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db, now: time.Now}
}

// OpenBadger opens a badger database at path, or an in-memory one when path is ":memory:".
func OpenBadger(path string, logger zerolog.Logger) (*badger.DB, error) {
	var opts badger.Options
	if path == ":memory:" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(badgerLogger{logger: logger.With().Str("component", "badger").Logger()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %s: %w", path, err)
	}
	return db, nil
}

func (s *BadgerStore) AddFavorite(ctx context.Context, userID string, movie FavoriteMovie) error {
	if err := checkUserID(userID); err != nil {
		return err
	}

	data, err := json.Marshal(Favorite{FavoriteMovie: movie, AddedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal favorite: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(favoriteKey(userID, movie.ID), data); err != nil {
			return fmt.Errorf("set favorite: %w", err)
		}
		return nil
	})
}

func (s *BadgerStore) RemoveFavorite(ctx context.Context, userID string, movieID int64) error {
	if err := checkUserID(userID); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(favoriteKey(userID, movieID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete favorite: %w", err)
		}
		return nil
	})
}

func (s *BadgerStore) IsFavorite(ctx context.Context, userID string, movieID int64) (bool, error) {
	if err := checkUserID(userID); err != nil {
		return false, err
	}

	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(favoriteKey(userID, movieID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get favorite: %w", err)
		}
		found = true
		return nil
	})
	return found, err
}

func (s *BadgerStore) GetFavorites(ctx context.Context, userID string) ([]Favorite, error) {
	if err := checkUserID(userID); err != nil {
		return nil, err
	}

	favs := []Favorite{}
	err := scanPrefix(s.db, favoritePrefix(userID), func(val []byte) error {
		var fav Favorite
		if err := json.Unmarshal(val, &fav); err != nil {
			return fmt.Errorf("unmarshal favorite: %w", err)
		}
		favs = append(favs, fav)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list favorites for %s: %w", userID, err)
	}

	sortFavorites(favs)
	return favs, nil
}

func (s *BadgerStore) AddOrUpdateReview(ctx context.Context, movieID int64, author Author, rating int, text string) error {
	if err := checkUserID(author.ID); err != nil {
		return err
	}

	data, err := json.Marshal(Review{
		MovieID:     movieID,
		UserID:      author.ID,
		AuthorName:  author.Name,
		AuthorImage: author.Image,
		Rating:      rating,
		Text:        text,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal review: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(reviewKey(movieID, author.ID), data); err != nil {
			return fmt.Errorf("set review: %w", err)
		}
		return nil
	})
}

func (s *BadgerStore) GetReviewsForMovie(ctx context.Context, movieID int64) ([]Review, error) {
	reviews := []Review{}
	err := scanPrefix(s.db, reviewPrefix(movieID), func(val []byte) error {
		var r Review
		if err := json.Unmarshal(val, &r); err != nil {
			return fmt.Errorf("unmarshal review: %w", err)
		}
		reviews = append(reviews, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list reviews of movie %d: %w", movieID, err)
	}

	sortReviews(reviews)
	return reviews, nil
}

func (s *BadgerStore) DeleteReview(ctx context.Context, movieID int64, userID string) error {
	if err := checkUserID(userID); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(reviewKey(movieID, userID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete review: %w", err)
		}
		return nil
	})
}

// Close closes the badger database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func scanPrefix(db *badger.DB, prefix []byte, fn func(val []byte) error) error {
	return db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}

// badgerLogger routes badger's internal logging through zerolog.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error().Msgf(format, args...)
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn().Msgf(format, args...)
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug().Msgf(format, args...)
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Trace().Msgf(format, args...)
}
