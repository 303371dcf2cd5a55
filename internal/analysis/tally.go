package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/sujalbistaa/retroboard/internal/models"
)

// Tally is the offline summarizer used when no AI provider is configured.
// Each item weighs 1 plus its like count; the positive ratio compares the
// weight of "good" items against "good" plus "improve".
type Tally struct{}

func (Tally) Summarize(_ context.Context, items []models.Item) (Analysis, error) {
	counts := make(map[models.Category]int)
	weights := make(map[models.Category]int)
	var top *models.Item
	for i := range items {
		it := &items[i]
		counts[it.Category]++
		weights[it.Category] += 1 + it.LikeCount
		if it.LikeCount > 0 && (top == nil || it.LikeCount > top.LikeCount) {
			top = it
		}
	}

	good, improve := weights[models.CategoryGood], weights[models.CategoryImprove]
	sentiment := models.NeutralSentiment()
	if good+improve > 0 {
		ratio := float64(good) / float64(good+improve)
		sentiment.PositiveRatio = ratio
		switch {
		case ratio >= 0.65:
			sentiment.Overall = models.SentimentPositive
		case ratio <= 0.35:
			sentiment.Overall = models.SentimentNegative
		default:
			sentiment.Overall = models.SentimentMixed
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d notes: %d went well, %d to improve, %d feedback.",
		len(items), counts[models.CategoryGood], counts[models.CategoryImprove], counts[models.CategoryFeedback])
	if top != nil {
		fmt.Fprintf(&b, "\n\nMost liked (%d): %s", top.LikeCount, top.Text)
	}

	return Analysis{Summary: b.String(), Sentiment: sentiment.Normalize()}, nil
}
