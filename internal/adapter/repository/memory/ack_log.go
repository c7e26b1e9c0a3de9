package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// AckLog is an in-process domain.AckLog
type AckLog struct {
	mu   sync.RWMutex
	acks map[uuid.UUID]struct{}
}

// NewAckLog creates an empty AckLog
func NewAckLog() *AckLog {
	return &AckLog{acks: make(map[uuid.UUID]struct{})}
}

func (l *AckLog) Ack(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acks[id] = struct{}{}
	return nil
}

func (l *AckLog) IsAcked(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.acks[id]
	return ok, nil
}

func (l *AckLog) Forget(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.acks, id)
	return nil
}
