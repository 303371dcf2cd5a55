package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/sujalbistaa/retroboard/internal/models"
)

// rankedOrder is the canonical feed order; id breaks exact timestamp ties.
const rankedOrder = "like_count desc, created_at desc, id desc"

// CreateItem validates and stores a new note.
func (s *Store) CreateItem(ctx context.Context, in models.NewItemInput) (models.Item, error) {
	category, text, err := in.Validate()
	if err != nil {
		return models.Item{}, err
	}

	item := models.Item{
		Category:  category,
		Text:      text,
		LikeCount: 0,
		CreatedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return models.Item{}, models.Persistence("create item", err)
	}
	return item, nil
}

// GetItem returns a single item by id.
func (s *Store) GetItem(ctx context.Context, id uint) (models.Item, error) {
	var item models.Item
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Item{}, fmt.Errorf("item %d: %w", id, models.ErrNotFound)
		}
		return models.Item{}, models.Persistence("get item", err)
	}
	return item, nil
}

// ListItems returns every item ordered by likes, then recency.
func (s *Store) ListItems(ctx context.Context) ([]models.Item, error) {
	items := make([]models.Item, 0)
	if err := s.db.WithContext(ctx).Order(rankedOrder).Find(&items).Error; err != nil {
		return nil, models.Persistence("list items", err)
	}
	return items, nil
}
