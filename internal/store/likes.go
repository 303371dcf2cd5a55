package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sujalbistaa/retroboard/internal/models"
)

var errLikeRace = errors.New("like row changed during toggle")

// ToggleLike flips the (itemID, userID) pair between liked and not liked.
//
// Toggles on the same pair are serialized by a per-pair lock. The item row is
// locked for the rest of the transaction, so toggles by different users on
// one item recount in turn and like_count always equals the number of ledger
// rows for the item.
func (s *Store) ToggleLike(ctx context.Context, itemID uint, userID string) (models.LikeChange, error) {
	if err := models.ValidateUserID(userID); err != nil {
		return models.LikeChange{}, err
	}

	unlock := s.locks.Lock(fmt.Sprintf("%d:%s", itemID, userID))
	defer unlock()

	change := models.LikeChange{ActingUserID: userID}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.Item
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&item, itemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("item %d: %w", itemID, models.ErrNotFound)
			}
			return models.Persistence("load item", err)
		}

		res := tx.Where("item_id = ? AND user_id = ?", itemID, userID).Delete(&models.Like{})
		if res.Error != nil {
			return models.Persistence("delete like", res.Error)
		}
		change.Action = models.ActionUnliked

		if res.RowsAffected == 0 {
			like := models.Like{ItemID: itemID, UserID: userID, CreatedAt: s.now()}
			res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like)
			if res.Error != nil {
				return models.Persistence("insert like", res.Error)
			}
			if res.RowsAffected == 0 {
				return models.Persistence("insert like", errLikeRace)
			}
			change.Action = models.ActionLiked
		}

		count := tx.Model(&models.Like{}).Select("count(*)").Where("item_id = ?", itemID)
		if err := tx.Model(&models.Item{}).Where("id = ?", itemID).Update("like_count", count).Error; err != nil {
			return models.Persistence("update like count", err)
		}

		if err := tx.First(&change.Item, itemID).Error; err != nil {
			return models.Persistence("reload item", err)
		}
		return nil
	})
	if err != nil {
		return models.LikeChange{}, err
	}
	return change, nil
}

// LikedItemIDs returns the ids of items userID currently likes, ascending.
// Unknown users get an empty set.
func (s *Store) LikedItemIDs(ctx context.Context, userID string) ([]uint, error) {
	ids := make([]uint, 0)
	err := s.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ?", userID).
		Order("item_id").
		Pluck("item_id", &ids).Error
	if err != nil {
		return nil, models.Persistence("list liked items", err)
	}
	return ids, nil
}
