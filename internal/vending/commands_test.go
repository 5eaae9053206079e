package vending

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/water-vendor/internal/config"
	apperrors "github.com/wfunc/water-vendor/internal/errors"
)

func TestManualStartAndStop(t *testing.T) {
	f := newFixture(t)

	f.command("ADD500")
	assert.Equal(t, "ADDED_CREDIT 500", f.lastEvent("ADDED_CREDIT"))
	require.Equal(t, 500, f.m.CreditML())

	// 手动启动跳过放杯和倒计时
	f.command("START")
	assert.True(t, f.hasEvent("MANUAL_START"))
	assert.Equal(t, StateDispensing, f.m.State())
	assert.True(t, f.pair.IsOpen())

	f.feedFlow(45) // 100ml
	f.command("STOP")
	assert.True(t, f.hasEvent("MANUAL_STOP"))
	assert.Equal(t, "CREDIT_LEFT 400.0", f.lastEvent("CREDIT_LEFT"))
	assert.Equal(t, 400, f.m.CreditML())
	assert.Equal(t, StateIdle, f.m.State())
	assert.False(t, f.pair.IsOpen())
}

func TestStartGuards(t *testing.T) {
	f := newFixture(t)

	// 余额为零
	f.command("START")
	assert.True(t, f.hasEvent("ERROR"))
	assert.Equal(t, StateIdle, f.m.State())

	// 充电模式
	f.ch.ClearSent()
	f.command("MODE CHARGE")
	f.command("START")
	assert.True(t, f.hasEvent("ERROR"))

	// 重复启动
	f.ch.ClearSent()
	f.command("MODE WATER")
	f.command("ADD100")
	f.command("START")
	require.Equal(t, StateDispensing, f.m.State())
	f.command("START")
	assert.True(t, f.hasEvent("ERROR"))
}

func TestStopWithoutSession(t *testing.T) {
	f := newFixture(t)

	f.command("STOP")
	assert.True(t, f.hasEvent("ERROR"))
}

func TestAddCreditRejectedInChargeMode(t *testing.T) {
	f := newFixture(t)

	f.command("MODE CHARGE")
	f.command("ADD100")
	assert.True(t, f.hasEvent("ERROR"))
	assert.Equal(t, 0, f.m.CreditML())
}

func TestStatusReport(t *testing.T) {
	f := newFixture(t)

	f.command("ADD100")
	f.command("STATUS")

	assert.Equal(t, "STATUS_MODE WATER", f.lastEvent("STATUS_MODE"))
	assert.Equal(t, "STATUS_STATE idle", f.lastEvent("STATUS_STATE"))
	assert.Equal(t, "STATUS_CREDIT_ML 100", f.lastEvent("STATUS_CREDIT_ML"))
	assert.Equal(t, "STATUS_DISPENSING NO", f.lastEvent("STATUS_DISPENSING"))
	assert.Equal(t, "STATUS_CUP NO", f.lastEvent("STATUS_CUP"))
	assert.Equal(t, "STATUS_LATCH NO", f.lastEvent("STATUS_LATCH"))
	assert.Equal(t, "STATUS_PPL 450.0", f.lastEvent("STATUS_PPL"))
}

func TestUnknownCommandNeverSilent(t *testing.T) {
	f := newFixture(t)

	f.command("FROBNICATE")
	line := f.lastEvent("ERROR")
	require.NotEmpty(t, line)
	assert.True(t, strings.Contains(line, "FROBNICATE"))
}

func TestCommandCaseInsensitive(t *testing.T) {
	f := newFixture(t)

	f.command("add100")
	assert.Equal(t, 100, f.m.CreditML())
	f.command("mode charge")
	assert.Equal(t, ModeCharge, f.m.Mode())
}

func TestResetClearsEverything(t *testing.T) {
	f := newFixture(t)

	f.command("ADD500")
	f.command("START")
	require.Equal(t, StateDispensing, f.m.State())

	f.command("RESET")
	assert.True(t, f.hasEvent("SYSTEM_RESET"))
	assert.Equal(t, 0, f.m.CreditML())
	assert.Equal(t, StateIdle, f.m.State())
	assert.False(t, f.m.Latched())
	assert.False(t, f.pair.IsOpen())
}

type stubPIN struct {
	pin string
}

func (s *stubPIN) VerifyPIN(pin string) error {
	if s.pin == "" {
		return apperrors.New(apperrors.ErrPINNotSet, "PIN未设置")
	}
	if pin != s.pin {
		return apperrors.New(apperrors.ErrPINInvalid, "PIN错误")
	}
	return nil
}

func TestCalRequiresPIN(t *testing.T) {
	f := newFixtureOpts(t, func(c *config.Config) {
		c.Maintenance.RequirePIN = true
	}, &stubPIN{pin: "1234"})

	// 缺PIN
	f.command("CAL")
	assert.True(t, f.hasEvent("ERROR"))
	assert.Equal(t, StateIdle, f.m.State())

	// 错PIN
	f.ch.ClearSent()
	f.command("CAL 0000")
	assert.True(t, f.hasEvent("ERROR"))
	assert.Equal(t, StateIdle, f.m.State())

	// 对PIN
	f.ch.ClearSent()
	f.command("CAL 1234")
	assert.Equal(t, StateCoinCal, f.m.State())
	assert.Equal(t, "CAL_PROMPT 1", f.lastEvent("CAL_PROMPT"))
}
