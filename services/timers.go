package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Timers fires onExpire once per armed game after the game duration.
type Timers struct {
	mu       sync.Mutex
	duration time.Duration
	pending  map[uuid.UUID]*time.Timer
	onExpire func(uuid.UUID)
	log      *zap.SugaredLogger
}

func NewTimers(d time.Duration, onExpire func(uuid.UUID), log *zap.SugaredLogger) *Timers {
	return &Timers{
		duration: d,
		pending:  make(map[uuid.UUID]*time.Timer),
		onExpire: onExpire,
		log:      log,
	}
}

func (t *Timers) Arm(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.pending[id]; ok {
		old.Stop()
	}
	t.pending[id] = time.AfterFunc(t.duration, func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
		t.log.Debugf("[Game %s] countdown finished", id)
		t.onExpire(id)
	})
}

func (t *Timers) Cancel(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.pending[id]; ok {
		timer.Stop()
		delete(t.pending, id)
	}
}

func (t *Timers) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.pending {
		timer.Stop()
		delete(t.pending, id)
	}
}

func (t *Timers) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
