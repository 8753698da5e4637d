package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"printmatch/db"
	"printmatch/internal/callback"
	"printmatch/internal/dispatch"
	"printmatch/internal/session"
	"printmatch/models"
)

const (
	BidWaitingOrderID State = "waiting_for_order_id"
	BidWaitingPrice   State = "waiting_for_price"
	BidWaitingDetails State = "waiting_for_details"
)

const bidPrompt = "📝 Respond to Order\n\nPlease enter the Order ID you want to respond to:"

type bidIntake struct {
	catalog StorageInterface
	matcher Matcher
	logger  *slog.Logger
}

func newBidIntake(store session.Store, catalog StorageInterface, matcher Matcher, logger *slog.Logger) *Machine {
	b := &bidIntake{catalog: catalog, matcher: matcher, logger: logger}
	return newMachine(session.KeyBid, "response", store, logger).
		on(BidWaitingOrderID, b.orderID, BidWaitingPrice).
		on(BidWaitingPrice, b.price, BidWaitingDetails).
		on(BidWaitingDetails, b.details, Idle)
}

func (b *bidIntake) orderID(ctx context.Context, in Input) Result {
	// синтаксическая проверка до любого запроса к каталогу
	id, err := callback.PositiveID(in.Text)
	if err != nil {
		return stay(dispatch.Text("❌ Invalid order ID. Please enter a valid positive number.\n\n" +
			"Please enter the order ID or use /cancel_response to cancel:"))
	}

	order, err := b.catalog.GetOrder(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return stay(dispatch.Text(fmt.Sprintf("❌ Order with ID %d does not exist.\n\n"+
			"Please enter a valid order ID or use /cancel_response to cancel:", id)))
	}
	if err != nil {
		b.logger.Error("read order", "order", id, "error", err)
		return reset(dispatch.Text("❌ Error checking order. Please try again with /response"))
	}

	in.Data["order_id"] = strconv.FormatInt(id, 10)

	var sb strings.Builder
	if order.Assigned() {
		fmt.Fprintf(&sb, "⚠️ Warning: This order (ID: %d) has already been assigned to another provider.\n"+
			"You can still submit a response, but the customer will not be notified "+
			"since they have already made their choice.\n\n", id)
	}
	fmt.Fprintf(&sb, "✅ Order found!\n\nOrder ID: %d\nDescription: %s\nCity: %s\n\n"+
		"Please enter the approximate price for your service:", order.ID, order.Description, order.City)
	return advance(dispatch.Text(sb.String()))
}

func (b *bidIntake) price(_ context.Context, in Input) Result {
	if in.Text == "" {
		return stay(dispatch.Text("❌ Please enter a valid price.\n\n" +
			"Please enter the approximate price or use /cancel_response to cancel:"))
	}
	in.Data["price"] = in.Text
	return advance(dispatch.Text("✅ Price saved!\n\nNow please provide any additional details or information about this order:"))
}

func (b *bidIntake) details(ctx context.Context, in Input) Result {
	if in.Text == "" {
		return stay(dispatch.Text("Please provide the details or use /cancel_response to cancel:"))
	}

	orderID, err := strconv.ParseInt(in.Data["order_id"], 10, 64)
	if err != nil {
		// данные сессии повреждены; начинать заново
		return reset(dispatch.Text("❌ Error saving response. Please try again with /response"))
	}

	bid := &models.Bid{
		OrderID:    orderID,
		ProviderID: in.Participant,
		Price:      in.Data["price"],
		Details:    in.Text,
	}
	if err := b.catalog.CreateBid(ctx, bid); err != nil {
		b.logger.Error("create bid", "order", orderID, "provider", in.Participant, "error", err)
		return reset(dispatch.Text("❌ Error saving response. Please try again with /response"))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ Response submitted successfully! 🎉\n\nOrder ID: %d\nPrice: %s\nDetails: %s\n\n",
		bid.OrderID, bid.Price, bid.Details)

	// предложение уже сохранено; ошибки уведомления только меняют текст ответа
	order, err := b.catalog.GetOrder(ctx, orderID)
	switch {
	case err != nil:
		b.logger.Warn("re-read order after bid", "order", orderID, "error", err)
		sb.WriteString("⚠️ Note: The customer could not be notified right now.")
	case order.Assigned():
		sb.WriteString("⚠️ Note: This order has already been assigned to another provider, so the customer was not notified.")
	default:
		notified, err := b.matcher.NotifyBids(ctx, *order)
		if err != nil {
			b.logger.Warn("notify customer", "order", orderID, "error", err)
		}
		if notified {
			sb.WriteString("The customer has been notified of your response.")
		} else {
			sb.WriteString("⚠️ Note: The customer could not be notified right now.")
		}
	}
	return advance(dispatch.Text(sb.String()))
}
