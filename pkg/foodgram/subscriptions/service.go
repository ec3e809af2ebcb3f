// Package subscriptions lets users follow recipe authors and lists the
// authors a user follows together with their latest recipes.
package subscriptions

import (
	"context"
	"fmt"

	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/logging"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/relations"
	"gorm.io/gorm"
)

// Service implements subscribe, unsubscribe and the subscription listing
type Service struct {
	db   *gorm.DB
	subs *relations.Store[models.Subscription]
}

// NewService creates a subscription service
func NewService(db *gorm.DB, subs *relations.Store[models.Subscription]) *Service {
	return &Service{db: db, subs: subs}
}

// Subscribe makes userID follow authorID and returns the author.
func (s *Service) Subscribe(ctx context.Context, userID, authorID uint) (*models.User, error) {
	author, err := s.author(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if userID == authorID {
		return nil, apierr.Validation("author", "You cannot subscribe to yourself")
	}
	if err := s.subs.Add(ctx, userID, authorID); err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Info().Uint("user_id", userID).Uint("author_id", authorID).Msg("Subscribed")
	return author, nil
}

// Unsubscribe stops userID following authorID.
func (s *Service) Unsubscribe(ctx context.Context, userID, authorID uint) error {
	if _, err := s.author(ctx, authorID); err != nil {
		return err
	}
	if err := s.subs.Remove(ctx, userID, authorID); err != nil {
		return err
	}
	logging.Ctx(ctx).Info().Uint("user_id", userID).Uint("author_id", authorID).Msg("Unsubscribed")
	return nil
}

// Authors returns one page of the authors userID follows, in the order
// they were followed, and the total count.
func (s *Service) Authors(ctx context.Context, userID uint, offset, limit int) ([]models.User, int64, error) {
	count, err := s.subs.CountByOwner(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("count subscriptions: %w", err)
	}

	var authors []models.User
	err = s.db.WithContext(ctx).
		Joins("JOIN subscriptions ON subscriptions.author_id = users.id").
		Where("subscriptions.user_id = ?", userID).
		Order("subscriptions.id ASC").
		Offset(offset).Limit(limit).
		Find(&authors).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list subscriptions: %w", err)
	}
	return authors, count, nil
}

// RecipesByAuthor returns the newest recipes of each author, at most limit
// per author (negative for no limit), and each author's total recipe count.
// Only the columns of the short recipe form are loaded.
func (s *Service) RecipesByAuthor(ctx context.Context, authorIDs []uint, limit int) (map[uint][]models.Recipe, map[uint]int64, error) {
	recipes := make(map[uint][]models.Recipe, len(authorIDs))
	counts := make(map[uint]int64, len(authorIDs))
	if len(authorIDs) == 0 {
		return recipes, counts, nil
	}

	var rows []struct {
		AuthorID uint
		Total    int64
	}
	err := s.db.WithContext(ctx).Model(&models.Recipe{}).
		Select("author_id, COUNT(*) AS total").
		Where("author_id IN ?", authorIDs).
		Group("author_id").
		Scan(&rows).Error
	if err != nil {
		return nil, nil, fmt.Errorf("count author recipes: %w", err)
	}
	for _, row := range rows {
		counts[row.AuthorID] = row.Total
	}
	if limit == 0 {
		return recipes, counts, nil
	}

	q := s.db.WithContext(ctx).Model(&models.Recipe{}).
		Select("id, author_id, name, image, cooking_time, pub_date").
		Where("author_id IN ?", authorIDs)
	if limit > 0 {
		ranked := s.db.Model(&models.Recipe{}).
			Select("id, ROW_NUMBER() OVER (PARTITION BY author_id ORDER BY pub_date DESC, id DESC) AS rn").
			Where("author_id IN ?", authorIDs)
		q = q.Where("id IN (?)", s.db.Table("(?) AS ranked", ranked).Select("id").Where("rn <= ?", limit))
	}

	var all []models.Recipe
	if err := q.Order("pub_date DESC, id DESC").Find(&all).Error; err != nil {
		return nil, nil, fmt.Errorf("load author recipes: %w", err)
	}
	for _, r := range all {
		recipes[r.AuthorID] = append(recipes[r.AuthorID], r)
	}
	return recipes, counts, nil
}

func (s *Service) author(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, apierr.OrNotFound(err, "User not found")
	}
	return &user, nil
}
