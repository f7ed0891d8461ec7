package worker

import (
	"context"
	"sync"
	"time"
)

// RunRegistry хранит функции отмены активных запусков этого воркера.
// Отмена, пришедшая раньше самой задачи, запоминается на tombstoneTTL,
// и такой запуск стартует уже отмененным.
type RunRegistry struct {
	mu           sync.Mutex
	runs         map[string]context.CancelFunc
	tombstones   map[string]time.Time
	tombstoneTTL time.Duration
	now          func() time.Time
}

func NewRunRegistry(tombstoneTTL time.Duration) *RunRegistry {
	return &RunRegistry{
		runs:         make(map[string]context.CancelFunc),
		tombstones:   make(map[string]time.Time),
		tombstoneTTL: tombstoneTTL,
		now:          time.Now,
	}
}

// Start регистрирует запуск и возвращает его контекст. done обязательно вызвать по завершении.
func (r *RunRegistry) Start(parent context.Context, taskID string) (ctx context.Context, done func()) {
	ctx, cancel := context.WithCancel(parent)

	r.mu.Lock()
	r.pruneLocked()
	if _, cancelled := r.tombstones[taskID]; cancelled {
		delete(r.tombstones, taskID)
		cancel()
	}
	r.runs[taskID] = cancel
	r.mu.Unlock()

	return ctx, func() {
		r.mu.Lock()
		delete(r.runs, taskID)
		r.mu.Unlock()
		cancel()
	}
}

// Cancel отменяет запуск. Возвращает true, если запуск выполняется на этом воркере.
func (r *RunRegistry) Cancel(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cancel, ok := r.runs[taskID]; ok {
		cancel()
		return true
	}
	r.pruneLocked()
	r.tombstones[taskID] = r.now()
	return false
}

// Active - число выполняющихся запусков.
func (r *RunRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func (r *RunRegistry) pruneLocked() {
	cutoff := r.now().Add(-r.tombstoneTTL)
	for id, at := range r.tombstones {
		if at.Before(cutoff) {
			delete(r.tombstones, id)
		}
	}
}
