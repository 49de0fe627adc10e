package order

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/fafa-store/internal/common"
	"github.com/noah-isme/fafa-store/internal/events"
)

// Emitter records domain events.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// Service exposes order reads and back office transitions.
type Service struct {
	Store  Store
	Events Emitter
	Logger zerolog.Logger
	Now    func() time.Time
}

// Page is one page of orders.
type Page struct {
	Items []Order
	Total int64
}

// DeliveredPayload is the body of order.delivered events.
type DeliveredPayload struct {
	OrderID     string    `json:"orderId"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Get returns the order when v may see it. Foreign orders look missing.
func (s *Service) Get(ctx context.Context, v Viewer, id string) (Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Order{}, ErrNotFound
	}
	o, err := s.Store.ByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !v.CanSee(o) {
		return Order{}, ErrNotFound
	}
	return o, nil
}

// ListMine returns the caller's orders.
func (s *Service) ListMine(ctx context.Context, userID string, page, perPage int) (Page, error) {
	if strings.TrimSpace(userID) == "" {
		return Page{}, common.NewAppError("UNAUTHORIZED", "sign in to see your orders", http.StatusUnauthorized, nil)
	}
	items, total, err := s.Store.ListByUser(ctx, userID, perPage, common.Offset(page, perPage))
	if err != nil {
		return Page{}, err
	}
	return Page{Items: items, Total: total}, nil
}

// List returns all orders for the back office.
func (s *Service) List(ctx context.Context, page, perPage int) (Page, error) {
	items, total, err := s.Store.List(ctx, perPage, common.Offset(page, perPage))
	if err != nil {
		return Page{}, err
	}
	return Page{Items: items, Total: total}, nil
}

// MarkDelivered flags one order. Delivering an already delivered order is a no-op.
func (s *Service) MarkDelivered(ctx context.Context, id string) (Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Order{}, ErrNotFound
	}
	o, err := s.Store.ByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if o.IsDelivered {
		return o, nil
	}
	at := s.now()
	changed, err := s.Store.MarkDelivered(ctx, []string{id}, at)
	if err != nil {
		return Order{}, err
	}
	if len(changed) == 1 {
		o.IsDelivered = true
		o.DeliveredAt = &at
		s.emitDelivered(ctx, changed, at)
	}
	return o, nil
}

// MarkDeliveredBatch flags every listed order and returns the ids that changed.
func (s *Service) MarkDeliveredBatch(ctx context.Context, ids []string) ([]string, error) {
	clean := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return nil, &common.AppError{
				Code:       "VALIDATION_ERROR",
				Message:    "invalid order id",
				HTTPStatus: http.StatusUnprocessableEntity,
				Details:    map[string]string{"ids": id},
			}
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		clean = append(clean, id)
	}
	if len(clean) == 0 {
		return []string{}, nil
	}
	at := s.now()
	changed, err := s.Store.MarkDelivered(ctx, clean, at)
	if err != nil {
		return nil, err
	}
	s.emitDelivered(ctx, changed, at)
	return changed, nil
}

// Delete removes an order.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}
	s.emit(ctx, events.TopicOrderDeleted, id, map[string]string{"orderId": id})
	return nil
}

func (s *Service) emitDelivered(ctx context.Context, ids []string, at time.Time) {
	for _, id := range ids {
		s.emit(ctx, events.TopicOrderDelivered, id, DeliveredPayload{OrderID: id, DeliveredAt: at})
	}
}

// emit never fails the caller: persisted events are retried by the relay.
func (s *Service) emit(ctx context.Context, topic, id string, payload any) {
	if s.Events == nil {
		return
	}
	aggID, err := uuid.Parse(id)
	if err != nil {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, aggID, payload); err != nil {
		s.Logger.Warn().Err(err).Str("topic", topic).Str("order_id", id).Msg("order event emit failed")
	}
}
