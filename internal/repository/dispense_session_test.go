package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispenseSessionRepository_CreateAndComplete(t *testing.T) {
	db := TestDB(t)
	repo := NewDispenseSessionRepository(db)
	ctx := context.Background()

	session := CreateTestDispenseSession(500, "cup")
	require.NoError(t, repo.Create(ctx, session))
	assert.True(t, session.IsOpen())

	require.NoError(t, repo.Complete(ctx, session.SessionID, 500.0, 225))

	found, err := repo.FindBySessionID(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "done", found.Status)
	assert.InDelta(t, 500.0, found.DispensedML, 0.01)
	assert.Equal(t, int64(225), found.FlowPulses)
	assert.NotNil(t, found.EndedAt)
	assert.False(t, found.IsOpen())
}

func TestDispenseSessionRepository_StopEarly(t *testing.T) {
	db := TestDB(t)
	repo := NewDispenseSessionRepository(db)
	ctx := context.Background()

	session := CreateTestDispenseSession(500, "cup")
	require.NoError(t, repo.Create(ctx, session))

	require.NoError(t, repo.StopEarly(ctx, session.SessionID, 200.0, 300.0, 90))

	found, err := repo.FindBySessionID(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "stopped", found.Status)
	assert.InDelta(t, 200.0, found.DispensedML, 0.01)
	assert.InDelta(t, 300.0, found.RefundedML, 0.01)
}

func TestDispenseSessionRepository_CompleteOnlyTouchesActive(t *testing.T) {
	db := TestDB(t)
	repo := NewDispenseSessionRepository(db)
	ctx := context.Background()

	session := CreateTestDispenseSession(500, "manual")
	require.NoError(t, repo.Create(ctx, session))
	require.NoError(t, repo.StopEarly(ctx, session.SessionID, 100.0, 400.0, 45))

	// 已终止的会话不能再被完成
	require.NoError(t, repo.Complete(ctx, session.SessionID, 500.0, 225))
	found, err := repo.FindBySessionID(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "stopped", found.Status)
}

func TestDispenseSessionRepository_CloseStale(t *testing.T) {
	db := TestDB(t)
	repo := NewDispenseSessionRepository(db)
	ctx := context.Background()

	// 两个遗留的进行中会话，一个已完成
	require.NoError(t, repo.Create(ctx, CreateTestDispenseSession(500, "cup")))
	require.NoError(t, repo.Create(ctx, CreateTestDispenseSession(250, "cup")))
	done := CreateTestDispenseSession(100, "manual")
	require.NoError(t, repo.Create(ctx, done))
	require.NoError(t, repo.Complete(ctx, done.SessionID, 100.0, 45))

	n, err := repo.CloseStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	open, err := repo.FindOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestDispenseSessionRepository_Statistics(t *testing.T) {
	db := TestDB(t)
	repo := NewDispenseSessionRepository(db)
	ctx := context.Background()

	s1 := CreateTestDispenseSession(500, "cup")
	require.NoError(t, repo.Create(ctx, s1))
	require.NoError(t, repo.Complete(ctx, s1.SessionID, 500.0, 225))

	s2 := CreateTestDispenseSession(500, "cup")
	require.NoError(t, repo.Create(ctx, s2))
	require.NoError(t, repo.StopEarly(ctx, s2.SessionID, 200.0, 300.0, 90))

	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)
	stats, err := repo.GetDispenseStatistics(ctx, start, end)
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.TotalSessions)
	assert.Equal(t, int64(1), stats.DoneSessions)
	assert.Equal(t, int64(1), stats.StoppedSessions)
	assert.InDelta(t, 700.0, stats.TotalDispenseML, 0.01)
	assert.InDelta(t, 300.0, stats.TotalRefundML, 0.01)
}
