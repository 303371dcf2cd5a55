package models

import "time"

// Overall sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentMixed    = "mixed"
	SentimentNeutral  = "neutral"
)

// Sentiment is the mood derived from the whole board.
type Sentiment struct {
	Overall       string   `json:"overall"`
	PositiveRatio float64  `json:"positiveRatio"`
	KeyEmotions   []string `json:"keyEmotions"`
}

// Normalize clamps the ratio into [0,1] and maps unknown labels to neutral.
func (s Sentiment) Normalize() Sentiment {
	switch s.Overall {
	case SentimentPositive, SentimentNegative, SentimentMixed, SentimentNeutral:
	default:
		s.Overall = SentimentNeutral
	}
	if s.PositiveRatio < 0 {
		s.PositiveRatio = 0
	}
	if s.PositiveRatio > 1 {
		s.PositiveRatio = 1
	}
	if s.KeyEmotions == nil {
		s.KeyEmotions = []string{}
	}
	return s
}

// NeutralSentiment is used when there is nothing to analyze.
func NeutralSentiment() Sentiment {
	return Sentiment{Overall: SentimentNeutral, PositiveRatio: 0.5, KeyEmotions: []string{}}
}

// AggregateResult is the latest AI-derived summary of the board.
type AggregateResult struct {
	Summary       string    `json:"summary"`
	Sentiment     Sentiment `json:"sentiment"`
	VibeImage     []byte    `json:"vibeImage,omitempty"`
	VibeImageType string    `json:"vibeImageType,omitempty"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

// HasImage reports whether the vibe image step produced an image.
func (r AggregateResult) HasImage() bool { return len(r.VibeImage) > 0 }

// PlaceholderAggregate is published for an empty board.
func PlaceholderAggregate(now time.Time) AggregateResult {
	return AggregateResult{
		Summary:     "",
		Sentiment:   NeutralSentiment(),
		GeneratedAt: now,
	}
}
