package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"CasaBid/internal/core/ports"
)

// StatusFeed delivers status changes to waiters in the same process.
type StatusFeed struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[int]chan ports.StatusChange
	next int
}

var _ ports.StatusFeed = (*StatusFeed)(nil)

func NewStatusFeed() *StatusFeed {
	return &StatusFeed{subs: make(map[uuid.UUID]map[int]chan ports.StatusChange)}
}

// Publish never blocks; a waiter that has not consumed its previous change
// already knows it must re-read.
func (f *StatusFeed) Publish(ctx context.Context, change ports.StatusChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs[change.VerificationID] {
		select {
		case ch <- change:
		default:
		}
	}
	return nil
}

func (f *StatusFeed) Subscribe(ctx context.Context, verificationID uuid.UUID) (<-chan ports.StatusChange, func(), error) {
	ch := make(chan ports.StatusChange, 1)

	f.mu.Lock()
	f.next++
	key := f.next
	if f.subs[verificationID] == nil {
		f.subs[verificationID] = make(map[int]chan ports.StatusChange)
	}
	f.subs[verificationID][key] = ch
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs[verificationID], key)
			if len(f.subs[verificationID]) == 0 {
				delete(f.subs, verificationID)
			}
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel, nil
}
