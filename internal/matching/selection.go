package matching

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"printmatch/db"
	"printmatch/internal/dispatch"
	"printmatch/models"
)

// Selection - результат выбора исполнителя
type Selection struct {
	Order  models.Order
	Bid    models.BidView
	Winner dispatch.Tally
	Losers dispatch.Tally
}

// Select закрепляет за заказом chooser'а исполнителя providerID.
// Проверки владельца и пустого executor_id повторяются на момент клика;
// окончательное решение принимает условный UPDATE в каталоге.
func (e *Engine) Select(ctx context.Context, chooser, orderID, providerID int64) (*Selection, error) {
	order, err := e.store.GetOwnedOrder(ctx, orderID, chooser)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read order %d: %w", orderID, err)
	}
	if order.Assigned() {
		return nil, ErrAlreadyAssigned
	}

	bid, err := e.store.LatestBid(ctx, orderID, providerID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrBidNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read bid on order %d: %w", orderID, err)
	}

	err = e.store.AssignExecutor(ctx, orderID, chooser, providerID)
	if errors.Is(err, db.ErrAlreadyAssigned) {
		return nil, ErrAlreadyAssigned
	}
	if err != nil {
		return nil, fmt.Errorf("assign order %d: %w", orderID, err)
	}
	order.ExecutorID = sql.NullInt64{Int64: providerID, Valid: true}
	e.logger.Info("executor assigned", "order", orderID, "provider", providerID, "customer", chooser)

	sel := &Selection{Order: *order, Bid: *bid}

	winner := dispatch.WithButtons(selectedText(orderID, bid),
		dispatch.Button{Text: "Open Customer Profile", URL: ProfileURL(chooser)})
	sel.Winner = e.fanout.Broadcast(ctx, []int64{providerID}, func(int64) dispatch.Message { return winner })

	others, err := e.store.OtherBidders(ctx, orderID, providerID)
	if err != nil {
		// назначение уже состоялось; отказы просто не будут разосланы
		e.logger.Warn("other bidders lookup failed", "order", orderID, "error", err)
		return sel, nil
	}
	notice := dispatch.Text(fmt.Sprintf("ℹ️ Order Update\n\n"+
		"Order ID: #%d has been assigned to another provider.\n"+
		"Thank you for your response!", orderID))
	sel.Losers = e.fanout.Broadcast(ctx, others, func(int64) dispatch.Message { return notice })

	return sel, nil
}

func selectedText(orderID int64, bid *models.BidView) string {
	return fmt.Sprintf("✅ Your Response Has Been Selected!\n\n"+
		"Order ID: #%d\n"+
		"Customer has chosen you to fulfill this order.\n\n"+
		"Price: %s\n"+
		"Details: %s\n\n"+
		"Click the button below to contact the customer:",
		orderID, bid.Price, bid.Details)
}

// ProfileURL - ссылка на профиль участника в чате
func ProfileURL(participant int64) string {
	return fmt.Sprintf("tg://user?id=%d", participant)
}
