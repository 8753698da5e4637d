// Package session хранит состояние диалогов: для каждого участника и каждого
// сценария - тег состояния и набор промежуточных данных.
package session

import (
	"context"
	"maps"
)

// Key - имя слота сценария
type Key string

const (
	KeyRegistration Key = "registration"
	KeyOrder        Key = "order"
	KeyBid          Key = "bid"
	KeySelection    Key = "selection"
	KeyAdmin        Key = "admin"
)

// Keys - все слоты; /reset очищает каждый из них
var Keys = []Key{KeyRegistration, KeyOrder, KeyBid, KeySelection, KeyAdmin}

// Idle - начальное и конечное состояние любого сценария
const Idle = "idle"

// Data - промежуточные данные шага
type Data map[string]string

// Session - состояние одного слота
type Session struct {
	State string `cbor:"1,keyasint"`
	Data  Data   `cbor:"2,keyasint"`
}

func idle() Session {
	return Session{State: Idle, Data: Data{}}
}

func (s Session) clone() Session {
	out := Session{State: s.State, Data: Data{}}
	maps.Copy(out.Data, s.Data)
	return out
}

// Store хранит сессии. Get никогда не возвращает "нет записи": при первом
// обращении слот создается в состоянии Idle с пустыми данными.
type Store interface {
	Get(ctx context.Context, participant int64, key Key) (Session, error)
	Set(ctx context.Context, participant int64, key Key, s Session) error
	Clear(ctx context.Context, participant int64, key Key) error
}

// ResetAll сбрасывает все слоты участника
func ResetAll(ctx context.Context, store Store, participant int64) error {
	for _, key := range Keys {
		if err := store.Clear(ctx, participant, key); err != nil {
			return err
		}
	}
	return nil
}
