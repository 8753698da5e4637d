package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"printmatch/internal/dispatch"
	"printmatch/internal/session"
	"printmatch/models"
)

const (
	RegWaitingName    State = "waiting_for_name"
	RegWaitingCity    State = "waiting_for_city"
	RegWaitingContact State = "waiting_for_contact"
)

const registrationPrompt = "Let's register a new provider!\n\nPlease enter the provider name:"

type registration struct {
	catalog StorageInterface
	logger  *slog.Logger
}

func newRegistration(store session.Store, catalog StorageInterface, logger *slog.Logger) *Machine {
	r := &registration{catalog: catalog, logger: logger}
	return newMachine(session.KeyRegistration, "registration", store, logger).
		on(RegWaitingName, r.name, RegWaitingCity).
		on(RegWaitingCity, r.city, RegWaitingContact).
		on(RegWaitingContact, r.contact, Idle)
}

func (r *registration) name(_ context.Context, in Input) Result {
	if in.Text == "" {
		return stay(dispatch.Text("Please enter the provider name:"))
	}
	in.Data["name"] = in.Text
	return advance(dispatch.Text("Great! Now please enter the city:"))
}

func (r *registration) city(_ context.Context, in Input) Result {
	if in.Text == "" {
		return stay(dispatch.Text("Please enter the city:"))
	}
	in.Data["city"] = in.Text
	return advance(dispatch.Text("Good! Now please enter the contact information:"))
}

func (r *registration) contact(ctx context.Context, in Input) Result {
	if in.Text == "" {
		return stay(dispatch.Text("Please enter the contact information:"))
	}

	p := &models.Provider{
		ParticipantID: in.Participant,
		Name:          in.Data["name"],
		City:          in.Data["city"],
		Contact:       in.Text,
	}
	if err := r.catalog.CreateProvider(ctx, p); err != nil {
		r.logger.Error("create provider", "participant", in.Participant, "error", err)
		return reset(dispatch.Text("Sorry, there was an error saving the provider. Please try again with /register"))
	}

	return advance(dispatch.Text(fmt.Sprintf("✅ Provider registered successfully!\n\n"+
		"Name: %s\nCity: %s\nContact: %s\nRegistered: %s",
		p.Name, p.City, p.Contact, p.CreatedAt.Format("2006-01-02 15:04"))))
}
