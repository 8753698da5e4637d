package matching

import (
	"context"
	"fmt"

	"printmatch/models"
)

// OrderBids - открытый заказ и предложения по нему в порядке поступления
type OrderBids struct {
	Order models.Order
	Bids  []models.BidView
}

// ListOpen возвращает заказы владельца без исполнителя, у которых есть предложения.
// ErrNoOpenOrders - таких заказов нет; ErrNoBids - заказы нашлись, но предложений
// к моменту второго запроса не осталось.
func (e *Engine) ListOpen(ctx context.Context, owner int64) ([]OrderBids, error) {
	orders, err := e.store.OpenOrdersWithBids(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("open orders of %d: %w", owner, err)
	}
	if len(orders) == 0 {
		return nil, ErrNoOpenOrders
	}

	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	bids, err := e.store.BidsForOpenOrders(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("bids of open orders: %w", err)
	}
	if len(bids) == 0 {
		return nil, ErrNoBids
	}

	byOrder := make(map[int64][]models.BidView, len(orders))
	for _, b := range bids {
		byOrder[b.OrderID] = append(byOrder[b.OrderID], b)
	}

	out := make([]OrderBids, 0, len(orders))
	for _, o := range orders {
		if len(byOrder[o.ID]) == 0 {
			continue
		}
		out = append(out, OrderBids{Order: o, Bids: byOrder[o.ID]})
	}
	if len(out) == 0 {
		return nil, ErrNoBids
	}
	return out, nil
}
