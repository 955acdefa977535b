package outbox

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/virtupay-ledger/internal/domain/audit"
	"github.com/virtupay-ledger/internal/domain/shared"
)

func TestNewMessage(t *testing.T) {
	event := audit.NewEvent(uuid.New(), audit.ActionAccountFunded, audit.ResourceAccount, uuid.New(),
		map[string]any{"amount": 100000}).By(uuid.New()).Correlated("corr-1")

	before := time.Now()
	msg, err := NewMessage(event)
	require.NoError(t, err)

	assert.Equal(t, event.ID, msg.EventID)
	assert.Equal(t, "account_balance", msg.AggregateType)
	assert.Equal(t, event.ResourceID, msg.AggregateID)
	assert.Equal(t, "account.funded", msg.EventType)
	assert.Equal(t, shared.OutboxStatusPending, msg.Status)
	assert.Zero(t, msg.Attempts)
	assert.Nil(t, msg.LastAttemptAt)
	assert.WithinDuration(t, before, msg.CreatedAt, time.Second)

	decoded, err := msg.AuditEvent()
	require.NoError(t, err)
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, event.OrganizationID, decoded.OrganizationID)
	assert.Equal(t, *event.ActorMembershipID, *decoded.ActorMembershipID)
	assert.Equal(t, "corr-1", decoded.CorrelationID)
	assert.EqualValues(t, 100000, decoded.Changes["amount"])
	assert.True(t, event.CreatedAt.Equal(decoded.CreatedAt))
}

func TestMessage_StatusChanges(t *testing.T) {
	earlier := time.Now().Add(-time.Hour)

	t.Run("IncrementAttempts", func(t *testing.T) {
		msg := &Message{Attempts: 1, LastAttemptAt: &earlier}
		msg.IncrementAttempts()

		assert.Equal(t, 2, msg.Attempts)
		require.NotNil(t, msg.LastAttemptAt)
		assert.True(t, msg.LastAttemptAt.After(earlier))
	})

	t.Run("MarkAsProcessed", func(t *testing.T) {
		msg := &Message{Status: shared.OutboxStatusPending, LastAttemptAt: &earlier}
		msg.MarkAsProcessed()

		assert.Equal(t, shared.OutboxStatusProcessed, msg.Status)
		assert.True(t, msg.LastAttemptAt.After(earlier))
	})

	t.Run("MarkAsFailed", func(t *testing.T) {
		msg := &Message{Status: shared.OutboxStatusPending, LastAttemptAt: &earlier}
		msg.MarkAsFailed()

		assert.Equal(t, shared.OutboxStatusFailedToPublish, msg.Status)
		assert.True(t, msg.LastAttemptAt.After(earlier))
	})
}

func TestMessage_AuditEventRejectsGarbage(t *testing.T) {
	msg := &Message{Payload: []byte("not json")}
	_, err := msg.AuditEvent()
	assert.Error(t, err)
}
