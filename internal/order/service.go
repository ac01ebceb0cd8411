package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vendhub/marketplace/internal/event"
	"github.com/vendhub/marketplace/internal/product"
)

var (
	ErrNoItems              = errors.New("order must contain at least one item")
	ErrInvalidQuantity      = errors.New("order item quantity must be at least one")
	ErrProductUnavailable   = errors.New("one or more products are unavailable")
	ErrMultipleVendors      = errors.New("order items must belong to a single vendor")
	ErrTransitionNotAllowed = errors.New("status transition not allowed for this role")
)

type Service interface {
	Create(ctx context.Context, userID uuid.UUID, items []ItemInput) (*Order, error)
	GetByID(ctx context.Context, actor Actor, orderID uuid.UUID) (*Order, error)
	List(ctx context.Context, actor Actor, filter ListFilter) ([]Order, int, error)
	ToggleStatus(ctx context.Context, actor Actor, orderID uuid.UUID, newStatus Status) (*Order, error)
}

type service struct {
	repo      Repository
	products  product.Repository
	publisher event.Publisher
}

func NewService(repo Repository, products product.Repository, publisher event.Publisher) Service {
	return &service{repo: repo, products: products, publisher: publisher}
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, items []ItemInput) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	quantities := make(map[uuid.UUID]int, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidQuantity, item.ProductID)
		}
		if _, ok := quantities[item.ProductID]; !ok {
			ids = append(ids, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}

	products, err := s.products.GetEligibleByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service: failed to fetch products: %w", err)
	}

	// Any missing or ineligible product fails the whole order; there is no
	// partial fulfillment.
	if len(products) != len(ids) {
		return nil, ErrProductUnavailable
	}

	vendors := make(map[uuid.UUID]bool)
	for _, p := range products {
		if p.Stock < quantities[p.ID] {
			return nil, fmt.Errorf("%w: product %s", ErrInsufficientStock, p.ID)
		}
		vendors[p.VendorID] = true
	}

	// One payout recipient per order.
	if len(vendors) > 1 {
		return nil, ErrMultipleVendors
	}

	o := &Order{
		UserID:        userID,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		Lines:         make([]Line, 0, len(products)),
	}
	for _, p := range products {
		qty := quantities[p.ID]
		o.TotalPrice += p.Price * float64(qty)
		o.Lines = append(o.Lines, Line{
			ProductID: p.ID,
			Price:     p.Price,
			Quantity:  qty,
		})
	}

	if err := s.repo.Create(ctx, o); err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			return nil, ErrInsufficientStock
		}
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to create order")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().Stringer("order_id", o.ID).Stringer("user_id", userID).Float64("total_price", o.TotalPrice).Msg("service: order created")

	s.publisher.Publish(ctx, event.TypeOrderCreated, o.ID.String(), event.OrderCreatedPayload{
		OrderID:    o.ID,
		UserID:     userID,
		TotalPrice: o.TotalPrice,
	})

	return s.withProductDetail(ctx, o)
}

func (s *service) GetByID(ctx context.Context, actor Actor, orderID uuid.UUID) (*Order, error) {
	o, err := s.repo.GetForActor(ctx, actor, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to fetch order")
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}
	return s.withProductDetail(ctx, o)
}

func (s *service) List(ctx context.Context, actor Actor, filter ListFilter) ([]Order, int, error) {
	orders, total, err := s.repo.List(ctx, actor, filter)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list orders")
		return nil, 0, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return orders, total, nil
}

// ToggleStatus is the single status machine shared by all three roles. The
// permission table decides which target statuses an actor may set; the
// repository scope decides which orders the actor may see at all.
func (s *service) ToggleStatus(ctx context.Context, actor Actor, orderID uuid.UUID, newStatus Status) (*Order, error) {
	if !allowedTargets[actor.Role][newStatus] {
		return nil, ErrTransitionNotAllowed
	}

	current, err := s.repo.GetForActor(ctx, actor, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to fetch order for status toggle")
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}

	if newStatus.RestoresStock() {
		restored, err := s.repo.UpdateStatusRestoringStock(ctx, actor, orderID, newStatus)
		if err != nil {
			if errors.Is(err, ErrOrderNotFound) {
				return nil, ErrOrderNotFound
			}
			log.Error().Err(err).Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("service: failed to update order status")
			return nil, fmt.Errorf("service: failed to update order status: %w", err)
		}
		if !restored {
			log.Info().Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("service: order already in a restored status, stock untouched")
		}
	} else {
		if err := s.repo.UpdateStatus(ctx, actor, orderID, newStatus); err != nil {
			if errors.Is(err, ErrOrderNotFound) {
				return nil, ErrOrderNotFound
			}
			log.Error().Err(err).Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("service: failed to update order status")
			return nil, fmt.Errorf("service: failed to update order status: %w", err)
		}
	}

	log.Info().Stringer("order_id", orderID).Stringer("old_status", current.Status).Stringer("new_status", newStatus).Msg("service: order status updated")

	s.publisher.Publish(ctx, event.TypeOrderStatusChanged, orderID.String(), event.OrderStatusChangedPayload{
		OrderID:   orderID,
		OldStatus: current.Status.String(),
		NewStatus: newStatus.String(),
	})

	updated, err := s.repo.GetForActor(ctx, actor, orderID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to reload order: %w", err)
	}
	return s.withProductDetail(ctx, updated)
}

// withProductDetail attaches product detail to each line. The lookup is
// unfiltered: a product soft-deleted after purchase still shows on the
// orders that bought it.
func (s *service) withProductDetail(ctx context.Context, o *Order) (*Order, error) {
	if len(o.Lines) == 0 {
		return o, nil
	}

	ids := make([]uuid.UUID, 0, len(o.Lines))
	for _, line := range o.Lines {
		ids = append(ids, line.ProductID)
	}

	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service: failed to fetch line products: %w", err)
	}

	byID := make(map[uuid.UUID]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	for i := range o.Lines {
		o.Lines[i].Product = byID[o.Lines[i].ProductID]
	}
	return o, nil
}
