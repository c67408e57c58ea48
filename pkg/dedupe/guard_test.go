package dedupe

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/campushive/flowkit/pkg/mocks"
	"github.com/campushive/flowkit/pkg/models"
)

func TestReserve_FirstClaimWins(t *testing.T) {
	scope := "trigger"

	var record *models.NodeDedupeRecord

	store := &mocks.MockDedupeStore{}
	store.On("Reserve", mock.Anything, mock.Anything).Return(true, nil).Once().Run(func(args mock.Arguments) {
		record = args.Get(1).(*models.NodeDedupeRecord)
	})
	store.On("Reserve", mock.Anything, mock.Anything).Return(false, nil)

	guard := NewGuard(slog.Default(), store)

	reserved, err := guard.Reserve(context.Background(), "wf-1", nil, &scope, nil, "fee-receipt-991", time.Hour)
	require.NoError(t, err)
	assert.True(t, reserved)

	require.NotNil(t, record)
	assert.Equal(t, "wf-1//trigger/fee-receipt-991", record.LogicalKey())
	assert.Equal(t, time.Hour, record.TTL)
	assert.Nil(t, record.ScheduleRunID)

	reserved, err = guard.Reserve(context.Background(), "wf-1", nil, &scope, nil, "fee-receipt-991", time.Hour)
	require.NoError(t, err)
	assert.False(t, reserved)
}

func TestReserve_StoreErrorSurfaces(t *testing.T) {
	store := &mocks.MockDedupeStore{}
	store.On("Reserve", mock.Anything, mock.Anything).Return(false, errors.New("connection refused"))

	guard := NewGuard(slog.Default(), store)

	reserved, err := guard.Reserve(context.Background(), "wf-1", nil, nil, nil, "op", 0)
	require.Error(t, err)
	assert.False(t, reserved)
	assert.Contains(t, err.Error(), "dedupe reserve failed")
}
