// Package relations implements the unique "owner -> target" pair used for
// favorites, shopping carts and subscriptions. Each relation keeps its own
// table; Store only knows the two column names.
package relations

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/metrics"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"gorm.io/gorm"
)

// Store manages rows of T, one per (owner, target) pair.
type Store[T any] struct {
	db        *gorm.DB
	kind      string
	ownerCol  string
	targetCol string
	newRow    func(ownerID, targetID uint) *T

	// messages
	exists  string
	missing string
}

// Favorites returns the store for favorite recipes.
func Favorites(db *gorm.DB) *Store[models.Favorite] {
	return &Store[models.Favorite]{
		db: db, kind: "favorite", ownerCol: "user_id", targetCol: "recipe_id",
		newRow: func(u, r uint) *models.Favorite {
			return &models.Favorite{UserID: u, RecipeID: r}
		},
		exists:  "Recipe is already in favorites",
		missing: "Recipe is not in favorites",
	}
}

// ShoppingCart returns the store for shopping cart items.
func ShoppingCart(db *gorm.DB) *Store[models.ShoppingCartItem] {
	return &Store[models.ShoppingCartItem]{
		db: db, kind: "shopping_cart", ownerCol: "user_id", targetCol: "recipe_id",
		newRow: func(u, r uint) *models.ShoppingCartItem {
			return &models.ShoppingCartItem{UserID: u, RecipeID: r}
		},
		exists:  "Recipe is already in the shopping cart",
		missing: "Recipe is not in the shopping cart",
	}
}

// Subscriptions returns the store for user -> author subscriptions.
func Subscriptions(db *gorm.DB) *Store[models.Subscription] {
	return &Store[models.Subscription]{
		db: db, kind: "subscription", ownerCol: "user_id", targetCol: "author_id",
		newRow: func(u, a uint) *models.Subscription {
			return &models.Subscription{UserID: u, AuthorID: a}
		},
		exists:  "Already subscribed to this author",
		missing: "Not subscribed to this author",
	}
}

// Kind names the relation for logs and metrics.
func (s *Store[T]) Kind() string { return s.kind }

// Add creates the pair. An existing pair is a Conflict.
func (s *Store[T]) Add(ctx context.Context, ownerID, targetID uint) error {
	exists, err := s.Exists(ctx, ownerID, targetID)
	if err != nil {
		return err
	}
	if exists {
		return apierr.Conflict(s.exists)
	}

	if err := s.db.WithContext(ctx).Create(s.newRow(ownerID, targetID)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apierr.Conflict(s.exists)
		}
		return fmt.Errorf("add %s: %w", s.kind, err)
	}
	metrics.RecordRelation(s.kind, "add")
	return nil
}

// Remove deletes the pair. A missing pair is NotFound.
func (s *Store[T]) Remove(ctx context.Context, ownerID, targetID uint) error {
	result := s.db.WithContext(ctx).
		Where(s.ownerCol+" = ? AND "+s.targetCol+" = ?", ownerID, targetID).
		Delete(new(T))
	if result.Error != nil {
		return fmt.Errorf("remove %s: %w", s.kind, result.Error)
	}
	if result.RowsAffected == 0 {
		return apierr.NotFound(s.missing)
	}
	metrics.RecordRelation(s.kind, "remove")
	return nil
}

// Exists reports whether the pair is present. Anonymous owners (0) never have pairs.
func (s *Store[T]) Exists(ctx context.Context, ownerID, targetID uint) (bool, error) {
	if ownerID == 0 {
		return false, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(new(T)).
		Where(s.ownerCol+" = ? AND "+s.targetCol+" = ?", ownerID, targetID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check %s: %w", s.kind, err)
	}
	return count > 0, nil
}

// Marked returns which of targetIDs are paired with ownerID.
func (s *Store[T]) Marked(ctx context.Context, ownerID uint, targetIDs []uint) (map[uint]bool, error) {
	marked := make(map[uint]bool, len(targetIDs))
	if ownerID == 0 || len(targetIDs) == 0 {
		return marked, nil
	}
	var ids []uint
	err := s.db.WithContext(ctx).Model(new(T)).
		Where(s.ownerCol+" = ? AND "+s.targetCol+" IN ?", ownerID, targetIDs).
		Pluck(s.targetCol, &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load %s flags: %w", s.kind, err)
	}
	for _, id := range ids {
		marked[id] = true
	}
	return marked, nil
}

// TargetIDs returns a subquery selecting every target paired with ownerID,
// for use in "id IN ?" filters.
func (s *Store[T]) TargetIDs(ctx context.Context, ownerID uint) *gorm.DB {
	return s.db.WithContext(ctx).Model(new(T)).
		Select(s.targetCol).
		Where(s.ownerCol+" = ?", ownerID)
}

// CountByOwner returns how many pairs ownerID has.
func (s *Store[T]) CountByOwner(ctx context.Context, ownerID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(new(T)).Where(s.ownerCol+" = ?", ownerID).Count(&count).Error
	return count, err
}

// DeleteTarget removes every pair pointing at targetID using tx.
func (s *Store[T]) DeleteTarget(tx *gorm.DB, targetID uint) error {
	return tx.Where(s.targetCol+" = ?", targetID).Delete(new(T)).Error
}

// DeleteOwner removes every pair owned by ownerID using tx.
func (s *Store[T]) DeleteOwner(tx *gorm.DB, ownerID uint) error {
	return tx.Where(s.ownerCol+" = ?", ownerID).Delete(new(T)).Error
}
