package hardware

import "sync/atomic"

// FlowCounter 流量脉冲计数器
//
// 单调递增，控制循环只做快照和差值计算，从不回退；
// 仅流量校准会清零。
type FlowCounter struct {
	count atomic.Int64
}

// NewFlowCounter 创建流量脉冲计数器
func NewFlowCounter() *FlowCounter {
	return &FlowCounter{}
}

// Edge 处理一个流量传感器边沿
func (f *FlowCounter) Edge() {
	f.count.Add(1)
}

// Count 累计流量脉冲数
func (f *FlowCounter) Count() int64 {
	return f.count.Load()
}

// Reset 清零（仅用于流量校准）
func (f *FlowCounter) Reset() {
	f.count.Store(0)
}
