package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxTextLength   = 1000
	MaxUserIDLength = 128
)

// Category is the column a note is posted into.
type Category string

const (
	CategoryGood     Category = "good"
	CategoryImprove  Category = "improve"
	CategoryFeedback Category = "feedback"
)

// Categories lists the closed set of columns in board order.
var Categories = []Category{CategoryGood, CategoryImprove, CategoryFeedback}

// ParseCategory normalizes raw input into a Category.
// "bad" is what older clients send for the improve column.
func ParseCategory(raw string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "good":
		return CategoryGood, true
	case "improve", "bad":
		return CategoryImprove, true
	case "feedback":
		return CategoryFeedback, true
	}
	return "", false
}

// Item is a single feedback note on the board.
type Item struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Category  Category  `gorm:"type:varchar(16);not null;index" json:"category"`
	Text      string    `gorm:"not null" json:"text"`
	LikeCount int       `gorm:"not null;default:0;index" json:"likeCount"`
	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
	Likes     []Like    `gorm:"foreignKey:ItemID" json:"-"`
}

// Like is one user's endorsement of one item. (ItemID, UserID) is unique.
type Like struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	ItemID    uint      `gorm:"not null;uniqueIndex:idx_like_item_user,priority:1" json:"itemId"`
	UserID    string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_like_item_user,priority:2;index" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// LikeAction is the state a toggle moved a (item, user) pair into.
type LikeAction string

const (
	ActionLiked   LikeAction = "liked"
	ActionUnliked LikeAction = "unliked"
)

// LikeChange is the result of a toggle.
type LikeChange struct {
	Item         Item       `json:"item"`
	ActingUserID string     `json:"actingUserId"`
	Action       LikeAction `json:"action"`
}

// NewItemInput is the raw create request.
type NewItemInput struct {
	Category string `json:"category"`
	Text     string `json:"text"`
}

// Validate checks the input and returns the normalized category and text.
func (in NewItemInput) Validate() (Category, string, error) {
	var errs []FieldError

	category, ok := ParseCategory(in.Category)
	if !ok {
		errs = append(errs, FieldError{Field: "category", Message: "must be one of good, improve, feedback"})
	}

	text := strings.TrimSpace(in.Text)
	switch {
	case text == "":
		errs = append(errs, FieldError{Field: "text", Message: "required"})
	case utf8.RuneCountInString(text) > MaxTextLength:
		errs = append(errs, FieldError{Field: "text", Message: "too long"})
	}

	if len(errs) > 0 {
		return "", "", NewValidationErrors(errs)
	}
	return category, text, nil
}

// ValidateUserID checks an anonymous client identity token.
func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return NewValidationError("userId", "required")
	}
	if len(userID) > MaxUserIDLength {
		return NewValidationError("userId", "too long")
	}
	return nil
}
