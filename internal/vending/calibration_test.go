package vending

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/water-vendor/internal/config"
	"github.com/wfunc/water-vendor/internal/storage"
)

func TestLoadCalibrationDefaults(t *testing.T) {
	cfg := config.Default()
	store := storage.NewMemStore()

	cal := LoadCalibration(context.Background(), store, &cfg.Vending)
	assert.Equal(t, 1, cal.Coin1Pulses)
	assert.Equal(t, 3, cal.Coin5Pulses)
	assert.Equal(t, 5, cal.Coin10Pulses)
	assert.Equal(t, 450.0, cal.PulsesPerLiter)
}

func TestLoadCalibrationFromStore(t *testing.T) {
	cfg := config.Default()
	store := storage.NewMemStore()
	ctx := context.Background()

	require.NoError(t, store.PutInt(ctx, storage.AddrCoin1Pulses, 2))
	require.NoError(t, store.PutInt(ctx, storage.AddrCoin5Pulses, 4))
	require.NoError(t, store.PutInt(ctx, storage.AddrCoin10Pulses, 6))
	require.NoError(t, store.PutFloat(ctx, storage.AddrPulsesPerLiter, 600))

	cal := LoadCalibration(ctx, store, &cfg.Vending)
	assert.Equal(t, 2, cal.Coin1Pulses)
	assert.Equal(t, 4, cal.Coin5Pulses)
	assert.Equal(t, 6, cal.Coin10Pulses)
	assert.Equal(t, 600.0, cal.PulsesPerLiter)
}

func TestLoadCalibrationClampsFlowFactor(t *testing.T) {
	cfg := config.Default()
	ctx := context.Background()

	// 越界值视为存储损坏，回落默认
	for _, bad := range []float64{50, 5000, -1} {
		store := storage.NewMemStore()
		require.NoError(t, store.PutFloat(ctx, storage.AddrPulsesPerLiter, bad))
		cal := LoadCalibration(ctx, store, &cfg.Vending)
		assert.Equal(t, 450.0, cal.PulsesPerLiter, "stored=%v", bad)
	}

	// 边界值有效
	for _, ok := range []float64{200, 1000} {
		store := storage.NewMemStore()
		require.NoError(t, store.PutFloat(ctx, storage.AddrPulsesPerLiter, ok))
		cal := LoadCalibration(ctx, store, &cfg.Vending)
		assert.Equal(t, ok, cal.PulsesPerLiter)
	}
}

func TestCoinCalibrationFlow(t *testing.T) {
	f := newFixture(t)

	f.command("CAL")
	require.Equal(t, StateCoinCal, f.m.State())
	assert.Equal(t, "CAL_PROMPT 1", f.lastEvent("CAL_PROMPT"))

	f.insertCoin(2)
	f.advance(time.Second)
	assert.Equal(t, "CAL_COIN 1 2", f.lastEvent("CAL_COIN"))
	assert.Equal(t, "CAL_PROMPT 5", f.lastEvent("CAL_PROMPT"))

	f.insertCoin(4)
	f.advance(time.Second)
	assert.Equal(t, "CAL_COIN 5 4", f.lastEvent("CAL_COIN"))
	assert.Equal(t, "CAL_PROMPT 10", f.lastEvent("CAL_PROMPT"))

	f.insertCoin(6)
	f.advance(time.Second)
	assert.Equal(t, "CAL_DONE 1=2 5=4 10=6", f.lastEvent("CAL_DONE"))
	assert.Equal(t, StateIdle, f.m.State())

	// 新签名已持久化
	ctx := context.Background()
	v, err := f.store.GetInt(ctx, storage.AddrCoin1Pulses)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	v, err = f.store.GetInt(ctx, storage.AddrCoin10Pulses)
	require.NoError(t, err)
	assert.Equal(t, 6, v)

	// 识别器立即使用新签名：6脉冲现在是10比索
	f.insertCoinAndSettle(6)
	assert.Equal(t, "COIN_INSERTED 10", f.lastEvent("COIN_INSERTED"))
	assert.Equal(t, "COIN_WATER 500", f.lastEvent("COIN_WATER"))
}

func TestCoinCalibrationTimeoutKeepsOldSignature(t *testing.T) {
	f := newFixture(t)

	f.command("CAL")
	require.Equal(t, StateCoinCal, f.m.State())

	// 三个面额全部超时，签名不变
	f.advance(3 * (f.cfg.Vending.Calibration.CoinWaitTimeout + time.Second))
	assert.Equal(t, 3, f.countEvents("CAL_TIMEOUT"))
	assert.Equal(t, StateIdle, f.m.State())
	assert.Equal(t, "CAL_DONE 1=1 5=3 10=5", f.lastEvent("CAL_DONE"))
}

func TestFlowCalibration(t *testing.T) {
	f := newFixture(t)

	f.command("FLOWCAL")
	require.Equal(t, StateFlowCal, f.m.State())
	assert.True(t, f.hasEvent("FLOWCAL_START"))
	assert.True(t, f.pair.IsOpen())

	// 一升水流过，观测到1000个脉冲
	f.feedFlow(1000)
	f.command("DONE")

	assert.Equal(t, "FLOWCAL_DONE 1000", f.lastEvent("FLOWCAL_DONE"))
	assert.Equal(t, StateIdle, f.m.State())
	assert.False(t, f.pair.IsOpen())
	assert.Equal(t, 1000.0, f.m.Calibration().PulsesPerLiter)

	v, err := f.store.GetFloat(context.Background(), storage.AddrPulsesPerLiter)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, v)

	// 后续出水立即用新系数：100ml = 100脉冲
	f.command("ADD100")
	f.placeCup()
	f.advance(200 * time.Millisecond)
	f.advance(3 * time.Second)
	f.feedFlow(100)
	f.tick()
	assert.Equal(t, "DISPENSE_DONE 100.0", f.lastEvent("DISPENSE_DONE"))
}

func TestFlowCalibrationNoPulsesFails(t *testing.T) {
	f := newFixture(t)

	f.command("FLOWCAL")
	f.command("DONE")
	assert.True(t, f.hasEvent("ERROR"))
	// 旧系数保留
	assert.Equal(t, 450.0, f.m.Calibration().PulsesPerLiter)
	assert.Equal(t, StateIdle, f.m.State())
}

func TestDoneOutsideFlowCal(t *testing.T) {
	f := newFixture(t)

	f.command("DONE")
	assert.True(t, f.hasEvent("ERROR"))
}
