package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"printmatch/internal/callback"
	"printmatch/internal/dispatch"
	"printmatch/internal/matching"
	"printmatch/internal/session"
)

// selection управляется только кнопками: текстовых шагов у машины нет
type selection struct {
	machine *Machine
	matcher Matcher
	logger  *slog.Logger
}

func newSelection(store session.Store, matcher Matcher, logger *slog.Logger) *selection {
	return &selection{
		machine: newMachine(session.KeySelection, "selection", store, logger),
		matcher: matcher,
		logger:  logger,
	}
}

// browse показывает открытые заказы участника с кнопкой на каждое предложение
func (s *selection) browse(ctx context.Context, owner int64) (dispatch.Message, error) {
	if err := s.machine.store.Clear(ctx, owner, s.machine.key); err != nil {
		return dispatch.Message{}, err
	}

	list, err := s.matcher.ListOpen(ctx, owner)
	switch {
	case errors.Is(err, matching.ErrNoOpenOrders):
		return dispatch.Text("❌ You don't have any orders with provider responses yet.\n\n" +
			"Please wait for providers to respond to your orders, or create a new order with /order."), nil
	case errors.Is(err, matching.ErrNoBids):
		return dispatch.Text("❌ No provider responses found for your orders.\n\n" +
			"Please wait for providers to respond to your orders."), nil
	case err != nil:
		s.logger.Error("list open orders", "owner", owner, "error", err)
		return dispatch.Text("❌ Error loading providers. Please try again later."), nil
	}

	var sb strings.Builder
	sb.WriteString("🔍 Choose a Provider\n\nAvailable providers that responded to your orders:\n\n")
	var buttons []dispatch.Button
	n := 0
	for _, ob := range list {
		fmt.Fprintf(&sb, "📦 Order #%d\n   Description: %s\n   City: %s\n\n", ob.Order.ID, ob.Order.Description, ob.Order.City)
		for _, b := range ob.Bids {
			n++
			label := b.ProviderLabel()
			city := ob.Order.City
			if b.ProviderCity.Valid && strings.TrimSpace(b.ProviderCity.String) != "" {
				city = strings.TrimSpace(b.ProviderCity.String)
			}
			fmt.Fprintf(&sb, "%d. %s, %s\n   Price: %s\n", n, label, city, b.Price)
			if b.Details != "" {
				fmt.Fprintf(&sb, "   Details: %s\n", b.Details)
			}
			sb.WriteString("\n")
			buttons = append(buttons, dispatch.Button{
				Text: fmt.Sprintf("#%d %s", ob.Order.ID, label),
				Data: callback.Select(ob.Order.ID, b.ProviderID),
			})
		}
	}
	sb.WriteString("Click a button below to select a provider:")
	return dispatch.WithButtons(sb.String(), buttons...), nil
}

// choose обрабатывает нажатие кнопки выбора исполнителя
func (s *selection) choose(ctx context.Context, chooser, orderID, providerID int64) dispatch.Message {
	sel, err := s.matcher.Select(ctx, chooser, orderID, providerID)
	switch {
	case errors.Is(err, matching.ErrOrderNotFound):
		return dispatch.Text("❌ Order not found or you don't have access to it.")
	case errors.Is(err, matching.ErrAlreadyAssigned):
		return dispatch.Text("❌ This order has already been assigned to another provider. You cannot change the selection.")
	case errors.Is(err, matching.ErrBidNotFound):
		return dispatch.Text("❌ Provider response not found.")
	case err != nil:
		s.logger.Error("select provider", "order", orderID, "provider", providerID, "error", err)
		return dispatch.Text("❌ Error processing your selection. Please try again or use /cancel_selection to cancel.")
	}

	return dispatch.WithButtons(fmt.Sprintf("✅ Provider Selected! 🎉\n\n"+
		"You have chosen: %s\nOrder ID: #%d\nPrice: %s\nDetails: %s\n\n"+
		"Click the button below to contact the provider:",
		sel.Bid.ProviderLabel(), orderID, sel.Bid.Price, sel.Bid.Details),
		dispatch.Button{Text: "Open Provider Profile", URL: matching.ProfileURL(providerID)})
}
