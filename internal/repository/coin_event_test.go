package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoinEventRepository_Create(t *testing.T) {
	db := TestDB(t)
	repo := NewCoinEventRepository(db)
	ctx := context.Background()

	event := CreateTestCoinEvent(10, 5, 500, "water", true)
	err := repo.Create(ctx, event)
	require.NoError(t, err)
	assert.NotZero(t, event.ID)

	found, err := repo.FindByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, found.Peso)
	assert.Equal(t, 500, found.CreditML)
	assert.True(t, found.Accepted)
}

func TestCoinEventRepository_ListRecent(t *testing.T) {
	db := TestDB(t)
	repo := NewCoinEventRepository(db)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		event := CreateTestCoinEvent(1, 1, 50, "water", true)
		event.SeenAt = time.Now().Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, event))
	}

	p := NewPagination(1, 10)
	events, err := repo.ListRecent(ctx, p)
	require.NoError(t, err)
	assert.Len(t, events, 10)
	assert.Equal(t, int64(15), p.Total)
	// 按时间倒序
	assert.True(t, events[0].SeenAt.After(events[1].SeenAt))
}

func TestCoinEventRepository_ListByMode(t *testing.T) {
	db := TestDB(t)
	repo := NewCoinEventRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, CreateTestCoinEvent(1, 1, 50, "water", true)))
	require.NoError(t, repo.Create(ctx, CreateTestCoinEvent(5, 3, 0, "charge", true)))
	require.NoError(t, repo.Create(ctx, CreateTestCoinEvent(10, 5, 0, "charge", true)))

	p := NewPagination(1, 10)
	events, err := repo.ListByMode(ctx, "charge", p)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, int64(2), p.Total)
}

func TestCoinEventRepository_Statistics(t *testing.T) {
	db := TestDB(t)
	repo := NewCoinEventRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, CreateTestCoinEvent(10, 5, 500, "water", true)))
	require.NoError(t, repo.Create(ctx, CreateTestCoinEvent(5, 3, 250, "water", true)))
	require.NoError(t, repo.Create(ctx, CreateTestCoinEvent(0, 8, 0, "water", false)))

	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)
	stats, err := repo.GetCoinStatistics(ctx, start, end)
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.TotalCoins)
	assert.Equal(t, int64(2), stats.AcceptedCoins)
	assert.Equal(t, int64(1), stats.RejectedCoins)
	assert.Equal(t, int64(15), stats.TotalPesos)
	assert.Equal(t, int64(750), stats.TotalCreditML)
}
