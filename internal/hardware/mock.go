package hardware

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/water-vendor/internal/logger"
	"go.uber.org/zap"
)

// MockChannel 内存行通道
//
// 调试模式和测试用：Inject模拟上位机下发命令，
// Sent返回固件已写出的全部行。
type MockChannel struct {
	lines  chan string
	mu     sync.Mutex
	sent   []string
	closed bool
}

// NewMockChannel 创建内存行通道
func NewMockChannel() *MockChannel {
	return &MockChannel{
		lines: make(chan string, 64),
	}
}

// Inject 模拟上位机下发一行命令
func (c *MockChannel) Inject(line string) {
	c.lines <- line
}

// Lines 接收行通道
func (c *MockChannel) Lines() <-chan string {
	return c.lines
}

// WriteLine 记录写出的行
func (c *MockChannel) WriteLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, line)
	return nil
}

// Sent 已写出行的快照
func (c *MockChannel) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	copy(out, c.sent)
	return out
}

// ClearSent 清空已写出行（测试分段断言用）
func (c *MockChannel) ClearSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}

// Close 关闭通道
func (c *MockChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.lines)
	}
	return nil
}

// MockActuator 模拟执行器
type MockActuator struct {
	mu      sync.Mutex
	name    string
	on      bool
	Toggles int // 状态切换次数
	FailOn  bool
	FailErr error
}

// NewMockActuator 创建模拟执行器
func NewMockActuator(name string) *MockActuator {
	return &MockActuator{name: name}
}

// On 打开
func (a *MockActuator) On() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailOn {
		return a.FailErr
	}
	if !a.on {
		a.on = true
		a.Toggles++
	}
	return nil
}

// Off 关闭
func (a *MockActuator) Off() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.on {
		a.on = false
		a.Toggles++
	}
	return nil
}

// IsOn 是否处于打开状态
func (a *MockActuator) IsOn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.on
}

// MockRangefinder 模拟超声波测距仪
//
// 返回预设的回波序列，播完后停留在最后一个值。
type MockRangefinder struct {
	mu     sync.Mutex
	echoes []time.Duration
	idx    int
}

// NewMockRangefinder 创建模拟测距仪
func NewMockRangefinder(echoes ...time.Duration) *MockRangefinder {
	return &MockRangefinder{echoes: echoes}
}

// EchoForCM 距离换算为回波持续时间（测试脚本用）
func EchoForCM(cm float64) time.Duration {
	return time.Duration(cm/cmPerMicrosecond) * time.Microsecond
}

// SetEchoes 重置回波序列
func (m *MockRangefinder) SetEchoes(echoes ...time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.echoes = echoes
	m.idx = 0
}

// Measure 按脚本返回下一个回波
func (m *MockRangefinder) Measure() (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.echoes) == 0 {
		return 0, nil
	}
	echo := m.echoes[m.idx]
	if m.idx < len(m.echoes)-1 {
		m.idx++
	}
	return echo, nil
}

// FlowSimulator 流量模拟器
//
// 调试模式用：出水通路打开期间按固定速率产生流量脉冲，
// 让完整的出水流程可以在没有硬件的机器上跑通。
type FlowSimulator struct {
	pair     *ActuatorPair
	flow     *FlowCounter
	interval time.Duration
}

// NewFlowSimulator 创建流量模拟器
func NewFlowSimulator(pair *ActuatorPair, flow *FlowCounter, pulsesPerSecond int) *FlowSimulator {
	if pulsesPerSecond <= 0 {
		pulsesPerSecond = 45
	}
	return &FlowSimulator{
		pair:     pair,
		flow:     flow,
		interval: time.Second / time.Duration(pulsesPerSecond),
	}
}

// Run 启动模拟协程，ctx取消后退出
func (s *FlowSimulator) Run(ctx context.Context) {
	logger.GetModuleLogger("hardware").Info("流量模拟器启动",
		zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.pair.IsOpen() {
				s.flow.Edge()
			}
		}
	}
}

// CoinSimulator 投币模拟器
//
// 调试模式用：按请求生成一串符合签名的投币边沿。
type CoinSimulator struct {
	counter *CoinCounter
	spacing time.Duration
}

// NewCoinSimulator 创建投币模拟器
func NewCoinSimulator(counter *CoinCounter, spacing time.Duration) *CoinSimulator {
	if spacing <= 0 {
		spacing = 120 * time.Millisecond
	}
	return &CoinSimulator{counter: counter, spacing: spacing}
}

// Insert 模拟投入一枚产生pulses个脉冲的硬币
func (s *CoinSimulator) Insert(pulses int) {
	go func() {
		for i := 0; i < pulses; i++ {
			s.counter.Edge(time.Now())
			time.Sleep(s.spacing)
		}
	}()
}
