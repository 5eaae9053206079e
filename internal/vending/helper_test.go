package vending

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/wfunc/water-vendor/internal/config"
	"github.com/wfunc/water-vendor/internal/hardware"
	"github.com/wfunc/water-vendor/internal/storage"
)

// fixture 状态机测试夹具：全套模拟硬件加可控时钟
type fixture struct {
	t     *testing.T
	cfg   *config.Config
	ch    *hardware.MockChannel
	coins *hardware.CoinCounter
	flow  *hardware.FlowCounter
	pump  *hardware.MockActuator
	valve *hardware.MockActuator
	pair  *hardware.ActuatorPair
	rf    *hardware.MockRangefinder
	store *storage.MemStore
	m     *Machine
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	return newFixtureOpts(t, nil, nil)
}

func newFixtureOpts(t *testing.T, mutate func(*config.Config), pins PINVerifier) *fixture {
	return newFixtureJournal(t, mutate, pins, nil)
}

func newFixtureJournal(t *testing.T, mutate func(*config.Config), pins PINVerifier, journal Journal) *fixture {
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	ch := hardware.NewMockChannel()
	coins := hardware.NewCoinCounter(cfg.Hardware.CoinRateFloor, cfg.Hardware.CoinDebounce)
	flow := hardware.NewFlowCounter()
	pump := hardware.NewMockActuator("pump")
	valve := hardware.NewMockActuator("valve")
	pair := &hardware.ActuatorPair{Pump: pump, Valve: valve}
	rf := hardware.NewMockRangefinder(0)
	store := storage.NewMemStore()

	m := NewMachine(context.Background(), cfg, Deps{
		Channel: ch,
		Coins:   coins,
		Flow:    flow,
		Pair:    pair,
		Ranger:  hardware.NewUltrasonicRanger(rf),
		Store:   store,
		Journal: journal,
		Pins:    pins,
	})

	return &fixture{
		t: t, cfg: cfg, ch: ch, coins: coins, flow: flow,
		pump: pump, valve: valve, pair: pair, rf: rf,
		store: store, m: m, now: time.Now(),
	}
}

// tick 推进一个控制周期
func (f *fixture) tick() {
	f.now = f.now.Add(f.cfg.Vending.TickInterval)
	f.m.Tick(f.now)
}

// advance 按周期推进指定时长
func (f *fixture) advance(d time.Duration) {
	steps := int(d / f.cfg.Vending.TickInterval)
	for i := 0; i < steps; i++ {
		f.tick()
	}
}

// insertCoin 模拟一串投币脉冲（脉冲间隔120ms）
func (f *fixture) insertCoin(pulses int) {
	for i := 0; i < pulses; i++ {
		f.coins.Edge(f.now)
		f.now = f.now.Add(120 * time.Millisecond)
	}
}

// insertCoinAndSettle 投币并推进到脉冲串识别完成
func (f *fixture) insertCoinAndSettle(pulses int) {
	f.insertCoin(pulses)
	f.advance(f.cfg.Vending.CoinQuietTime + 100*time.Millisecond)
}

// placeCup 放杯（8cm，阈值10cm以内）
func (f *fixture) placeCup() {
	f.rf.SetEchoes(hardware.EchoForCM(8))
}

// removeCup 取杯（无回波）
func (f *fixture) removeCup() {
	f.rf.SetEchoes(0)
}

// feedFlow 注入流量脉冲
func (f *fixture) feedFlow(pulses int) {
	for i := 0; i < pulses; i++ {
		f.flow.Edge()
	}
}

// command 下发一行上位机命令
func (f *fixture) command(line string) {
	f.m.HandleCommand(line, f.now)
}

// hasEvent 已写出行里是否有以prefix开头的行
func (f *fixture) hasEvent(prefix string) bool {
	for _, line := range f.ch.Sent() {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// lastEvent 最后一条以prefix开头的行
func (f *fixture) lastEvent(prefix string) string {
	var found string
	for _, line := range f.ch.Sent() {
		if strings.HasPrefix(line, prefix) {
			found = line
		}
	}
	return found
}

// countEvents 以prefix开头的行数
func (f *fixture) countEvents(prefix string) int {
	n := 0
	for _, line := range f.ch.Sent() {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}
