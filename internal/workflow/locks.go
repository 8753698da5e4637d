package workflow

import "sync"

// participantLocks не дает шагам одного участника выполняться одновременно
type participantLocks struct {
	mu    sync.Mutex
	locks map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newParticipantLocks() *participantLocks {
	return &participantLocks{locks: make(map[int64]*lockEntry)}
}

// lock возвращает функцию разблокировки
func (p *participantLocks) lock(participant int64) func() {
	p.mu.Lock()
	e, ok := p.locks[participant]
	if !ok {
		e = &lockEntry{}
		p.locks[participant] = e
	}
	e.refs++
	p.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		p.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(p.locks, participant)
		}
		p.mu.Unlock()
	}
}
