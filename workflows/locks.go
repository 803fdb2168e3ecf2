package workflows

import (
	"sync"

	"github.com/google/uuid"
)

// conversationLocks enforces the single-writer rule: no two turns may run
// concurrently for the same conversation, because each model call's context
// is exactly "all messages appended so far". Acquisition is non-blocking; a
// losing caller gets a busy error instead of queueing.
type conversationLocks struct {
	mu     sync.Mutex
	active map[uuid.UUID]struct{}
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{active: make(map[uuid.UUID]struct{})}
}

func (l *conversationLocks) TryAcquire(id uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.active[id]; held {
		return false
	}
	l.active[id] = struct{}{}
	return true
}

func (l *conversationLocks) Release(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, id)
}
