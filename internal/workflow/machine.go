package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"printmatch/internal/dispatch"
	"printmatch/internal/session"
)

// State - тег состояния сценария. Допустимые состояния каждого сценария
// перечислены в его таблице переходов.
type State string

const Idle State = session.Idle

// Outcome - чем закончился шаг
type Outcome int

const (
	// Advance - переход в следующее состояние по таблице
	Advance Outcome = iota
	// Stay - повторный запрос того же шага, данные не меняются
	Stay
	// Reset - принудительный сброс в Idle
	Reset
)

// Input - один текстовый ввод участника
type Input struct {
	Participant int64
	Text        string
	// Data - копия данных сессии; изменения сохраняются только при Advance
	Data session.Data
}

type Result struct {
	Outcome Outcome
	Reply   dispatch.Message
}

func advance(reply dispatch.Message) Result { return Result{Outcome: Advance, Reply: reply} }
func stay(reply dispatch.Message) Result    { return Result{Outcome: Stay, Reply: reply} }
func reset(reply dispatch.Message) Result   { return Result{Outcome: Reset, Reply: reply} }

type Step func(ctx context.Context, in Input) Result

type transition struct {
	next State
	step Step
}

// Machine - линейный сценарий: Idle -> шаги из таблицы -> Idle
type Machine struct {
	key    session.Key
	name   string
	store  session.Store
	table  map[State]transition
	guard  func(participant int64) bool
	logger *slog.Logger
}

func newMachine(key session.Key, name string, store session.Store, logger *slog.Logger) *Machine {
	return &Machine{
		key:    key,
		name:   name,
		store:  store,
		table:  make(map[State]transition),
		logger: logger.With("workflow", string(key)),
	}
}

// on регистрирует шаг для состояния from с переходом в next
func (m *Machine) on(from State, step Step, next State) *Machine {
	m.table[from] = transition{next: next, step: step}
	return m
}

func (m *Machine) Key() session.Key { return m.key }

// Next возвращает состояние после успешного шага в from
func (m *Machine) Next(from State) (State, bool) {
	tr, ok := m.table[from]
	return tr.next, ok
}

// States - все состояния ожидания ввода
func (m *Machine) States() []State {
	out := make([]State, 0, len(m.table))
	for s := range m.table {
		out = append(out, s)
	}
	return out
}

// Begin переводит сценарий в начальный шаг с пустыми данными
func (m *Machine) Begin(ctx context.Context, participant int64, state State) error {
	return m.store.Set(ctx, participant, m.key, session.Session{State: string(state), Data: session.Data{}})
}

// Current - текущее состояние сценария участника
func (m *Machine) Current(ctx context.Context, participant int64) (State, error) {
	s, err := m.store.Get(ctx, participant, m.key)
	return State(s.State), err
}

// Cancel сбрасывает сценарий; в Idle ничего не меняет
func (m *Machine) Cancel(ctx context.Context, participant int64) (dispatch.Message, error) {
	s, err := m.store.Get(ctx, participant, m.key)
	if err != nil {
		return dispatch.Message{}, err
	}
	if State(s.State) == Idle {
		return dispatch.Text(fmt.Sprintf("There is no active %s to cancel.", m.name)), nil
	}
	if err := m.store.Clear(ctx, participant, m.key); err != nil {
		return dispatch.Message{}, err
	}
	return dispatch.Text(capitalize(m.name) + " cancelled."), nil
}

// Handle пытается обработать текст. handled=false - сценарий не активен
// и текст нужно передать дальше.
func (m *Machine) Handle(ctx context.Context, participant int64, text string) (dispatch.Message, bool, error) {
	s, err := m.store.Get(ctx, participant, m.key)
	if err != nil {
		return dispatch.Message{}, false, err
	}
	state := State(s.State)
	if state == Idle {
		return dispatch.Message{}, false, nil
	}

	if m.guard != nil && !m.guard(participant) {
		if err := m.store.Clear(ctx, participant, m.key); err != nil {
			return dispatch.Message{}, false, err
		}
		return dispatch.Text(accessDenied), true, nil
	}

	tr, ok := m.table[state]
	if !ok {
		m.logger.Warn("unknown state, resetting", "participant", participant, "state", state)
		return dispatch.Message{}, false, m.store.Clear(ctx, participant, m.key)
	}

	data := maps.Clone(s.Data)
	if data == nil {
		data = session.Data{}
	}
	res := tr.step(ctx, Input{Participant: participant, Text: strings.TrimSpace(text), Data: data})

	switch res.Outcome {
	case Advance:
		s.State = string(tr.next)
		s.Data = data
		if tr.next == Idle {
			s.Data = session.Data{}
		}
	case Reset:
		s = session.Session{State: session.Idle, Data: session.Data{}}
	case Stay:
	}

	if err := m.store.Set(ctx, participant, m.key, s); err != nil {
		return dispatch.Message{}, false, err
	}
	m.logger.Debug("step", "participant", participant, "from", state, "to", s.State)
	return res.Reply, true, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
