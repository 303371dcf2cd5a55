// Package board runs client requests against the item store and announces
// every committed change through the broadcaster.
package board

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sujalbistaa/retroboard/internal/models"
	"github.com/sujalbistaa/retroboard/internal/ws"
)

// Store is the durable item and like state.
type Store interface {
	CreateItem(ctx context.Context, in models.NewItemInput) (models.Item, error)
	ListItems(ctx context.Context) ([]models.Item, error)
	GetItem(ctx context.Context, id uint) (models.Item, error)
	ToggleLike(ctx context.Context, itemID uint, userID string) (models.LikeChange, error)
	LikedItemIDs(ctx context.Context, userID string) ([]uint, error)
}

// Aggregator exposes the current aggregate and accepts run requests.
type Aggregator interface {
	Current() (models.AggregateResult, bool)
	Trigger() bool
}

// ItemsPayload is the initial-items frame.
type ItemsPayload struct {
	Items []models.Item `json:"items"`
}

// ItemPayload is the item-created frame.
type ItemPayload struct {
	Item models.Item `json:"item"`
}

// UserLikesPayload is the user-likes frame.
type UserLikesPayload struct {
	UserID  string `json:"userId"`
	ItemIDs []uint `json:"itemIds"`
}

// ToggleLikeRequest is the toggle-like frame.
type ToggleLikeRequest struct {
	ItemID uint   `json:"itemId"`
	UserID string `json:"userId"`
}

// UserLikesRequest is the get-user-likes frame.
type UserLikesRequest struct {
	UserID string `json:"userId"`
}

// Service is shared by the socket and REST surfaces.
type Service struct {
	store       Store
	broadcaster *Broadcaster
	aggregator  Aggregator
	log         *slog.Logger
}

// NewService creates the board service.
func NewService(store Store, broadcaster *Broadcaster, aggregator Aggregator, log *slog.Logger) *Service {
	return &Service{store: store, broadcaster: broadcaster, aggregator: aggregator, log: log}
}

// Items returns the ranked item list.
func (s *Service) Items(ctx context.Context) ([]models.Item, error) {
	return s.store.ListItems(ctx)
}

// Item returns one item.
func (s *Service) Item(ctx context.Context, id uint) (models.Item, error) {
	return s.store.GetItem(ctx, id)
}

// CreateItem stores a new item and broadcasts it.
func (s *Service) CreateItem(ctx context.Context, in models.NewItemInput) (models.Item, error) {
	item, err := s.store.CreateItem(ctx, in)
	if err != nil {
		return models.Item{}, err
	}
	s.broadcaster.ItemCreated(item)
	return item, nil
}

// ToggleLike flips a like and broadcasts the new count.
func (s *Service) ToggleLike(ctx context.Context, itemID uint, userID string) (models.LikeChange, error) {
	change, err := s.store.ToggleLike(ctx, itemID, userID)
	if err != nil {
		return models.LikeChange{}, err
	}
	s.broadcaster.LikeChanged(change)
	return change, nil
}

// UserLikes returns the ids of the items userID likes.
func (s *Service) UserLikes(ctx context.Context, userID string) ([]uint, error) {
	if err := models.ValidateUserID(userID); err != nil {
		return nil, err
	}
	return s.store.LikedItemIDs(ctx, userID)
}

// Aggregate returns the current aggregate, if one has been published.
func (s *Service) Aggregate() (models.AggregateResult, bool) {
	return s.aggregator.Current()
}

// TriggerAggregation asks the scheduler for a run. It reports false when a
// request is already pending.
func (s *Service) TriggerAggregation() bool {
	return s.aggregator.Trigger()
}

// Welcome builds the frames a joining session receives.
func (s *Service) Welcome(ctx context.Context) ([]ws.Message, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	first, err := ws.NewMessage(ws.EventInitialItems, ItemsPayload{Items: items})
	if err != nil {
		return nil, err
	}
	out := []ws.Message{first}

	if r, ok := s.aggregator.Current(); ok {
		msg, err := ws.NewMessage(ws.EventAggregateUpdated, r)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// Handle serves one socket request. Successful mutations reach the sender
// through the broadcast like everybody else; only errors and user-likes
// are returned directly.
func (s *Service) Handle(ctx context.Context, msg ws.Message) []ws.Message {
	switch msg.Type {
	case ws.EventCreateItem:
		var in models.NewItemInput
		if err := msg.Decode(&in); err != nil {
			return badRequest(msg.Type, err)
		}
		if _, err := s.CreateItem(ctx, in); err != nil {
			return s.failure(msg.Type, err)
		}
		return nil

	case ws.EventToggleLike:
		var req ToggleLikeRequest
		if err := msg.Decode(&req); err != nil {
			return badRequest(msg.Type, err)
		}
		if _, err := s.ToggleLike(ctx, req.ItemID, req.UserID); err != nil {
			return s.failure(msg.Type, err)
		}
		return nil

	case ws.EventGetUserLikes:
		var req UserLikesRequest
		if err := msg.Decode(&req); err != nil {
			return badRequest(msg.Type, err)
		}
		ids, err := s.UserLikes(ctx, req.UserID)
		if err != nil {
			return s.failure(msg.Type, err)
		}
		reply, err := ws.NewMessage(ws.EventUserLikes, UserLikesPayload{UserID: req.UserID, ItemIDs: ids})
		if err != nil {
			return s.failure(msg.Type, err)
		}
		return []ws.Message{reply}

	case ws.EventTriggerAggregation:
		if !s.TriggerAggregation() {
			s.log.Debug("aggregation already pending")
		}
		return nil

	default:
		return []ws.Message{ws.ErrorMessage(msg.Type, ws.CodeBadRequest, "unknown event")}
	}
}

func badRequest(event string, err error) []ws.Message {
	return []ws.Message{ws.ErrorMessage(event, ws.CodeBadRequest, err.Error())}
}

func (s *Service) failure(event string, err error) []ws.Message {
	switch {
	case errors.Is(err, models.ErrValidation):
		return []ws.Message{ws.ErrorMessage(event, ws.CodeValidation, err.Error())}
	case errors.Is(err, models.ErrNotFound):
		return []ws.Message{ws.ErrorMessage(event, ws.CodeNotFound, "item not found")}
	case errors.Is(err, models.ErrPersistence):
		s.log.Error("request failed", slog.String("event", event), slog.Any("error", err))
		return []ws.Message{ws.ErrorMessage(event, ws.CodePersistence, "could not save, please retry")}
	default:
		s.log.Error("request failed", slog.String("event", event), slog.Any("error", err))
		return []ws.Message{ws.ErrorMessage(event, ws.CodeInternal, "internal error")}
	}
}
