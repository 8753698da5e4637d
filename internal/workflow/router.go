package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"printmatch/internal/callback"
	"printmatch/internal/dispatch"
	"printmatch/internal/session"

	"github.com/google/uuid"
)

var ErrBadCallback = errors.New("unsupported callback")

// Event - входящее событие от транспорта: текст или данные нажатой кнопки
type Event struct {
	Participant int64  `json:"participantId"`
	Text        string `json:"text,omitempty"`
	Callback    string `json:"callback,omitempty"`
	// Untrusted - участник назван вызывающей стороной, а не транспортом.
	// Такие события не получают админских прав.
	Untrusted bool `json:"-"`
}

// adminCommands открывают админский сценарий
var adminCommands = map[string]bool{
	"admin":            true,
	"admin_rename":     true,
	"admin_add_column": true,
	"add_column":       true,
}

type Router struct {
	store  session.Store
	admins AdminSet
	locks  *participantLocks
	logger *slog.Logger

	registration *Machine
	order        *Machine
	bid          *Machine
	admin        *Machine
	selection    *selection

	// порядок, в котором сценарии пробуют забрать текст
	claims []*Machine
}

func NewRouter(store session.Store, catalog StorageInterface, matcher Matcher, admins AdminSet, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		store:        store,
		admins:       admins,
		locks:        newParticipantLocks(),
		logger:       logger,
		registration: newRegistration(store, catalog, logger),
		order:        newOrderIntake(store, catalog, matcher, logger),
		bid:          newBidIntake(store, catalog, matcher, logger),
		admin:        newSchemaAdmin(store, catalog, admins, logger),
		selection:    newSelection(store, matcher, logger),
	}
	r.claims = []*Machine{r.admin, r.bid, r.order, r.registration, r.selection.machine}
	return r
}

// Dispatch обрабатывает одно событие до конца. События одного участника
// выполняются строго по очереди, разных участников - параллельно.
func (r *Router) Dispatch(ctx context.Context, ev Event) (dispatch.Message, error) {
	unlock := r.locks.lock(ev.Participant)
	defer unlock()

	log := r.logger.With("trace", uuid.NewString(), "participant", ev.Participant)
	log.Debug("event", "text", ev.Text, "callback", ev.Callback)

	var (
		reply dispatch.Message
		err   error
	)
	switch name, arg, isCommand := parseCommand(ev.Text); {
	case ev.Callback != "":
		reply, err = r.onCallback(ctx, ev.Participant, ev.Callback)
	case isCommand && ev.Untrusted && adminCommands[name]:
		reply, err = r.deny(ctx, ev.Participant)
	case isCommand:
		var handled bool
		reply, handled, err = r.onCommand(ctx, ev.Participant, name, arg)
		if err == nil && !handled {
			reply, err = r.onText(ctx, ev)
		}
	default:
		reply, err = r.onText(ctx, ev)
	}
	if err != nil {
		log.Error("event failed", "error", err)
	}
	return reply, err
}

// onText - первый сценарий, забравший текст, отвечает; иначе подсказка /start
func (r *Router) onText(ctx context.Context, ev Event) (dispatch.Message, error) {
	for _, m := range r.claims {
		if m == r.admin && ev.Untrusted {
			continue
		}
		reply, handled, err := m.Handle(ctx, ev.Participant, ev.Text)
		if err != nil {
			return dispatch.Message{}, fmt.Errorf("%s: %w", m.Key(), err)
		}
		if handled {
			return reply, nil
		}
	}
	return dispatch.Text(fallback), nil
}

func (r *Router) onCommand(ctx context.Context, p int64, name, arg string) (dispatch.Message, bool, error) {
	var (
		reply dispatch.Message
		err   error
	)
	switch name {
	case "start", "help":
		err = session.ResetAll(ctx, r.store, p)
		reply = dispatch.WithButtons(welcome, dispatch.Button{Text: "Order", Data: callback.StartOrder()})
	case "reset":
		err = session.ResetAll(ctx, r.store, p)
		reply = dispatch.Text(resetDone)

	case "register", "new":
		reply, err = r.begin(ctx, r.registration, p, RegWaitingName, registrationPrompt)
	case "cancel_registration":
		reply, err = r.registration.Cancel(ctx, p)

	case "order", "print":
		reply, err = r.begin(ctx, r.order, p, OrderWaitingDescription, orderPrompt)
	case "cancel_order":
		reply, err = r.order.Cancel(ctx, p)

	case "response":
		if arg == "" {
			reply, err = r.begin(ctx, r.bid, p, BidWaitingOrderID, bidPrompt)
		} else {
			reply, err = r.beginBid(ctx, p, arg)
		}
	case "cancel_response":
		reply, err = r.bid.Cancel(ctx, p)

	case "choose", "select":
		reply, err = r.selection.browse(ctx, p)
	case "cancel_selection":
		reply, err = r.selection.machine.Cancel(ctx, p)

	case "admin", "admin_rename":
		reply, err = r.beginAdmin(ctx, p, AdminWaitingTable, adminRenamePrompt)
	case "admin_add_column", "add_column":
		reply, err = r.beginAdmin(ctx, p, AdminWaitingAddTable, adminAddPrompt)
	case "cancel_admin":
		if !r.admins.Contains(p) {
			reply, err = r.deny(ctx, p)
		} else {
			reply, err = r.admin.Cancel(ctx, p)
		}

	default:
		return dispatch.Message{}, false, nil
	}
	if err != nil {
		return dispatch.Message{}, true, fmt.Errorf("command /%s: %w", name, err)
	}
	return reply, true, nil
}

func (r *Router) onCallback(ctx context.Context, p int64, data string) (dispatch.Message, error) {
	cb, err := callback.Parse(data)
	if err != nil {
		return dispatch.Message{}, fmt.Errorf("%w: %v", ErrBadCallback, err)
	}
	switch cb.Action {
	case callback.ActionStartOrder:
		return r.begin(ctx, r.order, p, OrderWaitingDescription, orderPrompt)
	case callback.ActionRespond:
		if err := r.bid.Begin(ctx, p, BidWaitingOrderID); err != nil {
			return dispatch.Message{}, err
		}
		reply, _, err := r.bid.Handle(ctx, p, fmt.Sprint(cb.Args[0]))
		return reply, err
	case callback.ActionSelect:
		return r.selection.choose(ctx, p, cb.Args[0], cb.Args[1]), nil
	}
	return dispatch.Message{}, fmt.Errorf("%w: %s", ErrBadCallback, cb.Action)
}

func (r *Router) begin(ctx context.Context, m *Machine, p int64, state State, prompt string) (dispatch.Message, error) {
	if err := m.Begin(ctx, p, state); err != nil {
		return dispatch.Message{}, err
	}
	return dispatch.Text(prompt), nil
}

// beginBid - "/response <id>": аргумент проверяется до запроса к каталогу,
// затем сразу выполняется шаг ввода номера заказа
func (r *Router) beginBid(ctx context.Context, p int64, arg string) (dispatch.Message, error) {
	if _, err := callback.PositiveID(arg); err != nil {
		return dispatch.Text("❌ Invalid order ID. Please use /response <order_id> with a valid number."), nil
	}
	if err := r.bid.Begin(ctx, p, BidWaitingOrderID); err != nil {
		return dispatch.Message{}, err
	}
	reply, _, err := r.bid.Handle(ctx, p, arg)
	return reply, err
}

func (r *Router) beginAdmin(ctx context.Context, p int64, state State, prompt string) (dispatch.Message, error) {
	if !r.admins.Contains(p) {
		return r.deny(ctx, p)
	}
	return r.begin(ctx, r.admin, p, state, prompt)
}

// deny сбрасывает админский слот и отвечает отказом, не раскрывая шаг
func (r *Router) deny(ctx context.Context, p int64) (dispatch.Message, error) {
	if err := r.store.Clear(ctx, p, session.KeyAdmin); err != nil {
		return dispatch.Message{}, err
	}
	r.logger.Warn("admin access denied", "participant", p)
	return dispatch.Text(accessDenied), nil
}
