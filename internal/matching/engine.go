// Package matching рассылает заказы исполнителям и закрепляет победителя.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"printmatch/internal/callback"
	"printmatch/internal/dispatch"
	"printmatch/models"
)

var (
	ErrOrderNotFound   = errors.New("order not found or not owned by requester")
	ErrAlreadyAssigned = errors.New("order already assigned")
	ErrBidNotFound     = errors.New("provider has no bid on this order")
	ErrNoOpenOrders    = errors.New("no open orders with bids")
	ErrNoBids          = errors.New("open orders have no bids")
)

// Catalog - запросы к каталогу, нужные движку
type Catalog interface {
	ProviderRecipients(ctx context.Context, city string) ([]int64, error)
	GetOwnedOrder(ctx context.Context, id, owner int64) (*models.Order, error)
	AssignExecutor(ctx context.Context, orderID, owner, providerID int64) error
	LatestBid(ctx context.Context, orderID, providerID int64) (*models.BidView, error)
	OtherBidders(ctx context.Context, orderID, exclude int64) ([]int64, error)
	BidsForOrder(ctx context.Context, orderID int64) ([]models.BidView, error)
	OpenOrdersWithBids(ctx context.Context, owner int64) ([]models.Order, error)
	BidsForOpenOrders(ctx context.Context, orderIDs []int64) ([]models.BidView, error)
}

type Engine struct {
	store   Catalog
	gateway dispatch.Gateway
	fanout  *dispatch.Broadcaster
	logger  *slog.Logger
}

func NewEngine(store Catalog, gateway dispatch.Gateway, parallelism int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   store,
		gateway: gateway,
		fanout:  &dispatch.Broadcaster{Gateway: gateway, Parallelism: parallelism, Logger: logger},
		logger:  logger,
	}
}

// FanOutReport - итог рассылки нового заказа
type FanOutReport struct {
	Candidates int
	Delivered  int
	Failed     int
}

// FanOut отправляет заказ всем исполнителям его города. Заказ уже сохранен:
// неудачная доставка одному исполнителю не влияет ни на заказ, ни на остальных.
func (e *Engine) FanOut(ctx context.Context, order models.Order) (FanOutReport, error) {
	recipients, err := e.store.ProviderRecipients(ctx, order.City)
	if err != nil {
		return FanOutReport{}, fmt.Errorf("provider lookup for order %d: %w", order.ID, err)
	}

	offer := dispatch.WithButtons(offerText(order),
		dispatch.Button{Text: "Respond to this order", Data: callback.Respond(order.ID)})
	tally := e.fanout.Broadcast(ctx, recipients, func(int64) dispatch.Message { return offer })

	e.logger.Info("order fan-out",
		"order", order.ID, "city", order.City,
		"candidates", tally.Attempted, "delivered", tally.Delivered, "failed", tally.Failed)

	return FanOutReport{Candidates: tally.Attempted, Delivered: tally.Delivered, Failed: tally.Failed}, nil
}

func offerText(o models.Order) string {
	return fmt.Sprintf("📦 New Order Received!\n\n"+
		"Order ID: %d\n"+
		"Customer ID: %d\n"+
		"Description: %s\n"+
		"City: %s\n\n"+
		"Click the button below to respond to this order.",
		o.ID, o.ParticipantID, o.Description, o.City)
}

// NotifyBids присылает заказчику все предложения по заказу с кнопкой на каждое.
// Для назначенного заказа ничего не отправляется.
func (e *Engine) NotifyBids(ctx context.Context, order models.Order) (bool, error) {
	if order.Assigned() {
		return false, nil
	}
	bids, err := e.store.BidsForOrder(ctx, order.ID)
	if err != nil {
		return false, fmt.Errorf("bids for order %d: %w", order.ID, err)
	}
	if len(bids) == 0 {
		return false, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📦 New Response(s) for Your Order! #%d\n\n", order.ID)
	fmt.Fprintf(&sb, "Order: %s\n\nAvailable Providers:\n\n", order.Description)

	buttons := make([]dispatch.Button, 0, len(bids))
	for i, b := range bids {
		label := b.ProviderLabel()
		fmt.Fprintf(&sb, "%d. %s\n   Price: %s\n   Details: %s\n\n", i+1, label, b.Price, b.Details)
		buttons = append(buttons, dispatch.Button{Text: label, Data: callback.Select(order.ID, b.ProviderID)})
	}
	sb.WriteString("Click a button below to choose a provider:")

	if err := e.gateway.Send(ctx, order.ParticipantID, dispatch.WithButtons(sb.String(), buttons...)); err != nil {
		e.logger.Warn("customer notification failed", "order", order.ID, "customer", order.ParticipantID, "error", err)
		return false, nil
	}
	return true, nil
}
