package workflows

import (
	"testing"
	"time"

	"charforge/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invocation(id string) models.ToolInvocation {
	return models.ToolInvocation{
		ID:        id,
		Name:      "assign_class",
		Arguments: map[string]any{"class_name": "Wizard"},
	}
}

func TestGateRegisterAndTake(t *testing.T) {
	gate := NewConfirmationGate(time.Minute)
	convID := uuid.New()

	require.NoError(t, gate.Register(convID, invocation("call_1")))
	assert.True(t, gate.Outstanding(convID))

	pending, err := gate.Take(convID, "call_1")
	require.NoError(t, err)
	assert.Equal(t, "assign_class", pending.Invocation.Name)
	assert.Equal(t, "Wizard", pending.Invocation.Arguments["class_name"])

	// Taking clears the entry.
	assert.False(t, gate.Outstanding(convID))
	_, err = gate.Take(convID, "call_1")
	assert.ErrorIs(t, err, ErrNoPendingConfirmation)
}

func TestGateRejectsSecondRegistration(t *testing.T) {
	gate := NewConfirmationGate(time.Minute)
	convID := uuid.New()

	require.NoError(t, gate.Register(convID, invocation("call_1")))
	err := gate.Register(convID, invocation("call_2"))
	assert.ErrorIs(t, err, ErrConfirmationPending)

	// The original entry survives the rejected attempt.
	pending, err := gate.Take(convID, "call_1")
	require.NoError(t, err)
	assert.Equal(t, "call_1", pending.Invocation.ID)
}

func TestGateConversationsAreIndependent(t *testing.T) {
	gate := NewConfirmationGate(time.Minute)
	first := uuid.New()
	second := uuid.New()

	require.NoError(t, gate.Register(first, invocation("call_1")))
	require.NoError(t, gate.Register(second, invocation("call_2")))

	assert.True(t, gate.Outstanding(first))
	assert.True(t, gate.Outstanding(second))

	_, err := gate.Take(first, "call_1")
	require.NoError(t, err)
	assert.True(t, gate.Outstanding(second))
}

func TestGateTakeRequiresMatchingCallID(t *testing.T) {
	gate := NewConfirmationGate(time.Minute)
	convID := uuid.New()

	require.NoError(t, gate.Register(convID, invocation("call_1")))

	_, err := gate.Take(convID, "call_other")
	assert.ErrorIs(t, err, ErrNoPendingConfirmation)

	// A mismatched id does not consume the entry.
	assert.True(t, gate.Outstanding(convID))
}

func TestGateEntriesExpire(t *testing.T) {
	gate := NewConfirmationGate(10 * time.Millisecond)
	convID := uuid.New()

	require.NoError(t, gate.Register(convID, invocation("call_1")))
	time.Sleep(25 * time.Millisecond)

	assert.False(t, gate.Outstanding(convID))
	_, err := gate.Take(convID, "call_1")
	assert.ErrorIs(t, err, ErrNoPendingConfirmation)
}

func TestGateExpiredEntryIsReplaceable(t *testing.T) {
	gate := NewConfirmationGate(10 * time.Millisecond)
	convID := uuid.New()

	require.NoError(t, gate.Register(convID, invocation("call_1")))
	time.Sleep(25 * time.Millisecond)

	require.NoError(t, gate.Register(convID, invocation("call_2")))
	pending, err := gate.Take(convID, "call_2")
	require.NoError(t, err)
	assert.Equal(t, "call_2", pending.Invocation.ID)
}

func TestLocksAreExclusivePerConversation(t *testing.T) {
	locks := newConversationLocks()
	first := uuid.New()
	second := uuid.New()

	require.True(t, locks.TryAcquire(first))
	assert.False(t, locks.TryAcquire(first))
	assert.True(t, locks.TryAcquire(second), "other conversations are unaffected")

	locks.Release(first)
	assert.True(t, locks.TryAcquire(first))
}
