package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/water-vendor/internal/repository"
	"github.com/wfunc/water-vendor/internal/vending"
	"go.uber.org/zap"
)

func newJournal(t *testing.T) (*DBJournal, repository.CoinEventRepository, repository.DispenseSessionRepository, repository.CalibrationRecordRepository) {
	db := repository.TestDB(t)
	coinRepo := repository.NewCoinEventRepository(db)
	sessionRepo := repository.NewDispenseSessionRepository(db)
	calRepo := repository.NewCalibrationRecordRepository(db)
	j := NewDBJournal("test-device", coinRepo, sessionRepo, calRepo, zap.NewNop())
	return j, coinRepo, sessionRepo, calRepo
}

func TestJournalCoinSeen(t *testing.T) {
	j, coinRepo, _, _ := newJournal(t)

	j.CoinSeen(10, 5, 500, vending.ModeWater, true)
	j.CoinSeen(0, 8, 0, vending.ModeWater, false)

	p := repository.NewPagination(1, 10)
	events, err := coinRepo.ListRecent(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestJournalSessionLifecycle(t *testing.T) {
	j, _, sessionRepo, _ := newJournal(t)
	ctx := context.Background()

	j.SessionStarted("sess-1", 500, 225, "cup")
	j.SessionDone("sess-1", 500.0, 225)

	found, err := sessionRepo.FindBySessionID(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "done", found.Status)
	assert.Equal(t, "cup", found.Trigger)
	assert.Equal(t, int64(225), found.TargetPulses)
	assert.Equal(t, int64(225), found.FlowPulses)

	j.SessionStarted("sess-2", 500, 225, "manual")
	j.SessionStopped("sess-2", 200.0, 300.0, 90)

	found, err = sessionRepo.FindBySessionID(ctx, "sess-2")
	require.NoError(t, err)
	assert.Equal(t, "stopped", found.Status)
	assert.InDelta(t, 300.0, found.RefundedML, 0.01)
	assert.Equal(t, int64(90), found.FlowPulses)
}

func TestJournalCalibrationSaved(t *testing.T) {
	j, _, _, calRepo := newJournal(t)

	cal := &vending.Calibration{
		Coin1Pulses: 2, Coin5Pulses: 4, Coin10Pulses: 6,
		PulsesPerLiter: 600,
	}
	j.CalibrationSaved("coin", cal)

	latest, err := calRepo.Latest(context.Background(), "coin")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Coin1Pulses)
	assert.Equal(t, 600.0, latest.PulsesPerLiter)
}

func TestReportingDailySummary(t *testing.T) {
	db := repository.TestDB(t)
	coinRepo := repository.NewCoinEventRepository(db)
	sessionRepo := repository.NewDispenseSessionRepository(db)
	svc := NewReportingService(coinRepo, sessionRepo, zap.NewNop())
	j := NewDBJournal("test-device", coinRepo, sessionRepo,
		repository.NewCalibrationRecordRepository(db), zap.NewNop())

	j.CoinSeen(10, 5, 500, vending.ModeWater, true)
	j.SessionStarted("sess-1", 500, 225, "cup")
	j.SessionDone("sess-1", 500.0, 225)

	summary, err := svc.GetDailySummary(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Coins.AcceptedCoins)
	assert.Equal(t, int64(1), summary.Dispense.DoneSessions)
	assert.InDelta(t, 500.0, summary.Dispense.TotalDispenseML, 0.01)
}
