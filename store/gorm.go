package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// favoriteRecord is the favorites table row.
type favoriteRecord struct {
	UserID     string `gorm:"primaryKey;size:128"`
	MovieID    int64  `gorm:"primaryKey;autoIncrement:false"`
	Title      string `gorm:"not null"`
	PosterPath string
	AddedAt    time.Time `gorm:"index"`
}

func (favoriteRecord) TableName() string { return "favorites" }

// reviewRecord is the reviews table row.
type reviewRecord struct {
	MovieID     int64  `gorm:"primaryKey;autoIncrement:false"`
	UserID      string `gorm:"primaryKey;size:128"`
	AuthorName  string
	AuthorImage string
	Rating      int       `gorm:"not null"`
	Text        string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"autoCreateTime:false;index"`
}

func (reviewRecord) TableName() string { return "reviews" }

// GormStore is a Store on a relational database.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore migrates the schema and returns a store using db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&favoriteRecord{}, &reviewRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate store schema: %w", err)
	}
	return &GormStore{db: db, now: time.Now}, nil
}

func (s *GormStore) AddFavorite(ctx context.Context, userID string, movie FavoriteMovie) error {
	if err := checkUserID(userID); err != nil {
		return err
	}

	rec := favoriteRecord{
		UserID:     userID,
		MovieID:    movie.ID,
		Title:      movie.Title,
		PosterPath: movie.PosterPath,
		AddedAt:    s.now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "movie_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "poster_path", "added_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to add favorite %d for %s: %w", movie.ID, userID, err)
	}
	return nil
}

func (s *GormStore) RemoveFavorite(ctx context.Context, userID string, movieID int64) error {
	if err := checkUserID(userID); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).
		Where("user_id = ? AND movie_id = ?", userID, movieID).
		Delete(&favoriteRecord{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove favorite %d for %s: %w", movieID, userID, err)
	}
	return nil
}

func (s *GormStore) IsFavorite(ctx context.Context, userID string, movieID int64) (bool, error) {
	if err := checkUserID(userID); err != nil {
		return false, err
	}

	var rec favoriteRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND movie_id = ?", userID, movieID).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check favorite %d for %s: %w", movieID, userID, err)
	}
	return true, nil
}

func (s *GormStore) GetFavorites(ctx context.Context, userID string) ([]Favorite, error) {
	if err := checkUserID(userID); err != nil {
		return nil, err
	}

	var recs []favoriteRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("added_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites for %s: %w", userID, err)
	}

	favs := make([]Favorite, 0, len(recs))
	for _, r := range recs {
		favs = append(favs, Favorite{
			FavoriteMovie: FavoriteMovie{ID: r.MovieID, Title: r.Title, PosterPath: r.PosterPath},
			AddedAt:       r.AddedAt,
		})
	}
	sortFavorites(favs)
	return favs, nil
}

func (s *GormStore) AddOrUpdateReview(ctx context.Context, movieID int64, author Author, rating int, text string) error {
	if err := checkUserID(author.ID); err != nil {
		return err
	}

	rec := reviewRecord{
		MovieID:     movieID,
		UserID:      author.ID,
		AuthorName:  author.Name,
		AuthorImage: author.Image,
		Rating:      rating,
		Text:        text,
		CreatedAt:   s.now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "movie_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"author_name", "author_image", "rating", "text", "created_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save review of movie %d by %s: %w", movieID, author.ID, err)
	}
	return nil
}

func (s *GormStore) GetReviewsForMovie(ctx context.Context, movieID int64) ([]Review, error) {
	var recs []reviewRecord
	err := s.db.WithContext(ctx).
		Where("movie_id = ?", movieID).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews of movie %d: %w", movieID, err)
	}

	reviews := make([]Review, 0, len(recs))
	for _, r := range recs {
		reviews = append(reviews, Review{
			MovieID:     r.MovieID,
			UserID:      r.UserID,
			AuthorName:  r.AuthorName,
			AuthorImage: r.AuthorImage,
			Rating:      r.Rating,
			Text:        r.Text,
			CreatedAt:   r.CreatedAt,
		})
	}
	sortReviews(reviews)
	return reviews, nil
}

func (s *GormStore) DeleteReview(ctx context.Context, movieID int64, userID string) error {
	if err := checkUserID(userID); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).
		Where("movie_id = ? AND user_id = ?", movieID, userID).
		Delete(&reviewRecord{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete review of movie %d by %s: %w", movieID, userID, err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
