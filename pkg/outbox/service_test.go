package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloramarket/velora-backend/pkg/db/models"
	"github.com/veloramarket/velora-backend/pkg/enums"
	"github.com/veloramarket/velora-backend/pkg/outbox/payloads"
)

func TestEmitWritesEnvelopedRow(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)

	userID := uuid.New()
	lotID := uuid.New()
	occurred := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.EventCoinsEarned,
		AggregateType: enums.AggregateCoinLot,
		AggregateID:   lotID,
		Data: payloads.CoinsEarnedEvent{
			UserID: userID,
			LotID:  lotID,
			Coins:  120,
		},
		Version:    1,
		OccurredAt: occurred,
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, enums.EventCoinsEarned, row.EventType)
	assert.Equal(t, enums.AggregateCoinLot, row.AggregateType)
	assert.Equal(t, lotID, row.AggregateID)
	assert.Nil(t, row.PublishedAt)
	assert.Zero(t, row.AttemptCount)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	assert.True(t, envelope.OccurredAt.Equal(occurred))

	var data payloads.CoinsEarnedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, userID, data.UserID)
	assert.Equal(t, 120, data.Coins)
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{})
	require.Error(t, err)
}
