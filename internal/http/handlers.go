package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sujalbistaa/retroboard/internal/board"
	"github.com/sujalbistaa/retroboard/internal/models"
)

// --- Structs for request binding ---

type CreateItemInput struct {
	Category string `json:"category" binding:"required"`
	Text     string `json:"text" binding:"required"`
}

type LikeInput struct {
	UserID string `json:"userId" binding:"required"`
}

// SessionCounter reports connected socket sessions.
type SessionCounter interface {
	Sessions() int
}

// --- Handlers ---

type Env struct {
	Board    *board.Service
	Sessions SessionCounter
	Log      *slog.Logger
}

func (e *Env) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": e.Sessions.Sessions()})
}

func (e *Env) GetItems(c *gin.Context) {
	items, err := e.Board.Items(c.Request.Context())
	if err != nil {
		e.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, board.ItemsPayload{Items: items})
}

func (e *Env) GetItem(c *gin.Context) {
	itemID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}
	item, err := e.Board.Item(c.Request.Context(), uint(itemID))
	if err != nil {
		e.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, board.ItemPayload{Item: item})
}

func (e *Env) CreateItem(c *gin.Context) {
	var input CreateItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	item, err := e.Board.CreateItem(c.Request.Context(), models.NewItemInput{
		Category: input.Category,
		Text:     input.Text,
	})
	if err != nil {
		e.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, board.ItemPayload{Item: item})
}

func (e *Env) ToggleLike(c *gin.Context) {
	itemID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}
	var input LikeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	change, err := e.Board.ToggleLike(c.Request.Context(), uint(itemID), input.UserID)
	if err != nil {
		e.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, change)
}

func (e *Env) GetUserLikes(c *gin.Context) {
	userID := c.Param("userId")
	ids, err := e.Board.UserLikes(c.Request.Context(), userID)
	if err != nil {
		e.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, board.UserLikesPayload{UserID: userID, ItemIDs: ids})
}

func (e *Env) GetAggregate(c *gin.Context) {
	r, ok := e.Board.Aggregate()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No aggregate yet"})
		return
	}
	c.JSON(http.StatusOK, r)
}

func (e *Env) TriggerAggregation(c *gin.Context) {
	queued := e.Board.TriggerAggregation()
	c.JSON(http.StatusAccepted, gin.H{"queued": queued})
}

func (e *Env) writeError(c *gin.Context, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "fields": verr.Errors})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
	default:
		e.Log.Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("request_id", c.GetString(requestIDKey)),
			slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
