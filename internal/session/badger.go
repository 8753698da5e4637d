package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

// BadgerStore хранит сессии на диске, они переживают перезапуск процесса
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// OpenBadger открывает каталог dir; пустой dir - режим в памяти
func OpenBadger(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	return badger.Open(opts)
}

func storageKey(participant int64, key Key) []byte {
	return fmt.Appendf(nil, "session/%d/%s", participant, key)
}

func (b *BadgerStore) Get(_ context.Context, participant int64, key Key) (Session, error) {
	s := idle()
	k := storageKey(participant, key)

	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if errors.Is(err, badger.ErrKeyNotFound) {
			raw, err := cbor.Marshal(s)
			if err != nil {
				return err
			}
			return txn.Set(k, raw)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &s)
		})
	})
	if err != nil {
		return Session{}, fmt.Errorf("session get %s: %w", k, err)
	}
	if s.State == "" {
		s.State = Idle
	}
	if s.Data == nil {
		s.Data = Data{}
	}
	return s, nil
}

func (b *BadgerStore) Set(_ context.Context, participant int64, key Key, s Session) error {
	if s.State == "" {
		s.State = Idle
	}
	raw, err := cbor.Marshal(s.clone())
	if err != nil {
		return err
	}
	k := storageKey(participant, key)
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, raw)
	}); err != nil {
		return fmt.Errorf("session set %s: %w", k, err)
	}
	return nil
}

func (b *BadgerStore) Clear(ctx context.Context, participant int64, key Key) error {
	return b.Set(ctx, participant, key, idle())
}
