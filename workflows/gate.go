package workflows

import (
	"errors"
	"sync"
	"time"

	"charforge/models"

	"github.com/google/uuid"
)

var (
	// ErrConfirmationPending means a gated tool is already awaiting a
	// decision for this conversation; the turn cannot proceed until the
	// client resolves it.
	ErrConfirmationPending = errors.New("a tool confirmation is already pending for this conversation")
	// ErrNoPendingConfirmation means there is nothing to resolve: no pending
	// request, a mismatched tool call id, or an expired request.
	ErrNoPendingConfirmation = errors.New("no matching pending confirmation")
)

// PendingConfirmation holds a gated tool invocation awaiting a boolean
// decision. At most one exists per conversation and it is never persisted;
// a process restart simply drops it and the client starts a fresh turn.
type PendingConfirmation struct {
	Invocation models.ToolInvocation
	CreatedAt  time.Time
}

// ConfirmationGate is the pending-request table keyed by conversation id.
// Entries expire after the configured TTL so an abandoned confirmation never
// wedges a conversation.
type ConfirmationGate struct {
	mu      sync.Mutex
	ttl     time.Duration
	pending map[uuid.UUID]PendingConfirmation
}

func NewConfirmationGate(ttl time.Duration) *ConfirmationGate {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ConfirmationGate{
		ttl:     ttl,
		pending: make(map[uuid.UUID]PendingConfirmation),
	}
}

// Register records a pending confirmation for the conversation. A live
// earlier request is a caller error; an expired one is silently replaced.
func (g *ConfirmationGate) Register(conversationID uuid.UUID, inv models.ToolInvocation) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.pending[conversationID]; ok {
		if time.Since(existing.CreatedAt) < g.ttl {
			return ErrConfirmationPending
		}
	}
	g.pending[conversationID] = PendingConfirmation{
		Invocation: inv,
		CreatedAt:  time.Now(),
	}
	return nil
}

// Outstanding reports whether a live confirmation is pending.
func (g *ConfirmationGate) Outstanding(conversationID uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing, ok := g.pending[conversationID]
	return ok && time.Since(existing.CreatedAt) < g.ttl
}

// Take removes and returns the pending confirmation matching the tool call
// id. The entry is cleared unconditionally on a match, whatever the decision
// turns out to be.
func (g *ConfirmationGate) Take(conversationID uuid.UUID, toolCallID string) (PendingConfirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing, ok := g.pending[conversationID]
	if !ok || existing.Invocation.ID != toolCallID {
		return PendingConfirmation{}, ErrNoPendingConfirmation
	}
	delete(g.pending, conversationID)
	if time.Since(existing.CreatedAt) >= g.ttl {
		return PendingConfirmation{}, ErrNoPendingConfirmation
	}
	return existing, nil
}
