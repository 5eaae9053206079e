package hardware

import (
	"github.com/wfunc/water-vendor/internal/logger"
	"go.uber.org/zap"
)

// 声速换算：回波往返，0.034 cm/us 除以 2
const cmPerMicrosecond = 0.034 / 2

// UltrasonicRanger 超声波测距读数转换
type UltrasonicRanger struct {
	rf Rangefinder
}

// NewUltrasonicRanger 创建测距转换器
func NewUltrasonicRanger(rf Rangefinder) *UltrasonicRanger {
	return &UltrasonicRanger{rf: rf}
}

// DistanceCM 测量前方物体距离
//
// 第二个返回值为false表示没有收到回波（前方无物体或超时），
// 这不是故障，调用方应当按"无物体"处理。
func (u *UltrasonicRanger) DistanceCM() (float64, bool) {
	echo, err := u.rf.Measure()
	if err != nil {
		logger.GetModuleLogger("hardware").Debug("测距失败", zap.Error(err))
		return 0, false
	}
	if echo <= 0 {
		return 0, false
	}

	return float64(echo.Microseconds()) * cmPerMicrosecond, true
}
