package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"printmatch/db"
	"printmatch/internal/dispatch"
	"printmatch/internal/session"
	"printmatch/models"
)

const (
	OrderWaitingDescription State = "waiting_for_description"
	OrderWaitingCity        State = "waiting_for_city"
)

const orderPrompt = "Let's create a new 3D print order! 🖨️\n\n" +
	"Please provide a description of your order. Include details such as:\n" +
	"• Sizes (dimensions)\n" +
	"• Material (PLA, ABS, PETG, etc.)\n" +
	"• Color preferences\n" +
	"• Any other specifications\n\n" +
	"Type your description:"

type orderIntake struct {
	catalog StorageInterface
	matcher Matcher
	logger  *slog.Logger
}

func newOrderIntake(store session.Store, catalog StorageInterface, matcher Matcher, logger *slog.Logger) *Machine {
	o := &orderIntake{catalog: catalog, matcher: matcher, logger: logger}
	return newMachine(session.KeyOrder, "order", store, logger).
		on(OrderWaitingDescription, o.description, OrderWaitingCity).
		on(OrderWaitingCity, o.city, Idle)
}

func (o *orderIntake) description(_ context.Context, in Input) Result {
	if in.Text == "" {
		return stay(dispatch.Text("Please provide a description of your order:"))
	}
	in.Data["description"] = in.Text
	return advance(dispatch.Text("Great! Now please enter your city:"))
}

func (o *orderIntake) city(ctx context.Context, in Input) Result {
	city := in.Text
	if city == "" {
		return stay(dispatch.Text("Please enter your city or use /cancel_order to cancel this order:"))
	}

	exists, err := o.catalog.CityHasProviders(ctx, city)
	if err != nil {
		o.logger.Error("city check", "city", city, "error", err)
		return reset(dispatch.Text("Sorry, there was an error saving the order. Please try again with /order"))
	}
	if !exists {
		return stay(dispatch.Text(fmt.Sprintf("❌ Sorry, we don't have any providers in %q.\n\n"+
			"Please try another city name or use /cancel_order to cancel this order.", city)))
	}

	order := models.Order{ParticipantID: in.Participant, Description: in.Data["description"], City: city}
	if err := o.catalog.CreateOrder(ctx, &order); err != nil {
		o.logger.Error("create order", "participant", in.Participant, "error", err)
		if db.IsUndefinedTable(err) {
			return reset(dispatch.Text("❌ Database error: Orders table not found. Please contact the administrator.\n\nOrder cancelled."))
		}
		return reset(dispatch.Text("Sorry, there was an error saving the order. Please try again with /order"))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ Order created successfully! 🎉\n\n"+
		"Description: %s\nCity: %s\nOrder ID: %d\nCreated: %s\n\n",
		order.Description, order.City, order.ID, order.CreatedAt.Format("2006-01-02 15:04"))

	report, err := o.matcher.FanOut(ctx, order)
	switch {
	case err != nil:
		o.logger.Error("fan-out", "order", order.ID, "error", err)
		sb.WriteString("⚠️ Providers could not be notified right now. Your order is saved.")
	case report.Candidates == 0:
		fmt.Fprintf(&sb, "⚠️ Warning: No providers found in %s to notify.", city)
	case report.Delivered == 0:
		fmt.Fprintf(&sb, "⚠️ Found %d provider(s) in %s, but none of them could be notified.", report.Candidates, city)
	default:
		fmt.Fprintf(&sb, "Your order has been sent to %d provider(s) in %s.", report.Delivered, city)
		if report.Failed > 0 {
			fmt.Fprintf(&sb, "\n⚠️ Note: %d provider(s) could not be notified.", report.Failed)
		}
	}
	return advance(dispatch.Text(sb.String()))
}
