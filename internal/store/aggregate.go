package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sujalbistaa/retroboard/internal/models"
)

// latestAggregateID is the primary key of the single persisted aggregate row.
const latestAggregateID = 1

// AggregateRecord is the persisted form of the latest AggregateResult.
type AggregateRecord struct {
	ID            uint                        `gorm:"primarykey"`
	Summary       string                      `gorm:"type:text;not null"`
	Overall       string                      `gorm:"type:varchar(16);not null"`
	PositiveRatio float64                     `gorm:"not null"`
	KeyEmotions   datatypes.JSONSlice[string] `gorm:"not null"`
	VibeImage     []byte
	VibeImageType string    `gorm:"type:varchar(64)"`
	GeneratedAt   time.Time `gorm:"not null"`
}

func (AggregateRecord) TableName() string { return "aggregate_results" }

// SaveAggregate replaces the persisted aggregate.
func (s *Store) SaveAggregate(ctx context.Context, r models.AggregateResult) error {
	rec := AggregateRecord{
		ID:            latestAggregateID,
		Summary:       r.Summary,
		Overall:       r.Sentiment.Overall,
		PositiveRatio: r.Sentiment.PositiveRatio,
		KeyEmotions:   datatypes.NewJSONSlice(r.Sentiment.Normalize().KeyEmotions),
		VibeImage:     r.VibeImage,
		VibeImageType: r.VibeImageType,
		GeneratedAt:   r.GeneratedAt,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
	if err != nil {
		return models.Persistence("save aggregate", err)
	}
	return nil
}

// LoadAggregate returns the persisted aggregate, if any.
func (s *Store) LoadAggregate(ctx context.Context) (models.AggregateResult, bool, error) {
	var rec AggregateRecord
	if err := s.db.WithContext(ctx).First(&rec, latestAggregateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.AggregateResult{}, false, nil
		}
		return models.AggregateResult{}, false, models.Persistence("load aggregate", err)
	}

	return models.AggregateResult{
		Summary: rec.Summary,
		Sentiment: models.Sentiment{
			Overall:       rec.Overall,
			PositiveRatio: rec.PositiveRatio,
			KeyEmotions:   rec.KeyEmotions,
		}.Normalize(),
		VibeImage:     rec.VibeImage,
		VibeImageType: rec.VibeImageType,
		GeneratedAt:   rec.GeneratedAt.UTC(),
	}, true, nil
}
