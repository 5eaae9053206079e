package hardware

import "time"

// Actuator 开关型执行器（泵、电磁阀的继电器）
type Actuator interface {
	On() error
	Off() error
	IsOn() bool
}

// Rangefinder 超声波测距仪
//
// Measure 触发一次测距并返回回波持续时间；
// 返回0表示在窗口内没有收到回波（前方无物体），不算错误。
type Rangefinder interface {
	Measure() (time.Duration, error)
}

// LineChannel 上位机行协议通道
//
// Lines 返回接收行的通道；通道关闭表示连接断开。
type LineChannel interface {
	Lines() <-chan string
	WriteLine(line string) error
	Close() error
}
