package hardware

import (
	"sync/atomic"
	"time"
)

// CoinCounter 投币脉冲计数器
//
// Edge 由边沿采集协程调用（对应下位机的中断上下文），
// 其余方法由控制循环调用。计数与时间戳全部使用原子操作，
// 单写者多读者，无需加锁。
type CoinCounter struct {
	count        atomic.Int64
	lastRawNano  atomic.Int64 // 最近一次原始边沿（含被丢弃的）
	lastEdgeNano atomic.Int64 // 最近一次被接受的边沿
	rateFloor    time.Duration
	debounce     time.Duration
}

// NewCoinCounter 创建投币脉冲计数器
func NewCoinCounter(rateFloor, debounce time.Duration) *CoinCounter {
	return &CoinCounter{
		rateFloor: rateFloor,
		debounce:  debounce,
	}
}

// Edge 处理一个硬件边沿
//
// 快于rateFloor的边沿视为电噪声，直接丢弃；
// 距上一个被接受边沿不足debounce的边沿同样丢弃。
// 返回该边沿是否被计入。
func (c *CoinCounter) Edge(now time.Time) bool {
	nano := now.UnixNano()

	lastRaw := c.lastRawNano.Swap(nano)
	if lastRaw != 0 && nano-lastRaw < int64(c.rateFloor) {
		return false
	}

	lastEdge := c.lastEdgeNano.Load()
	if lastEdge != 0 && nano-lastEdge < int64(c.debounce) {
		return false
	}

	c.count.Add(1)
	c.lastEdgeNano.Store(nano)
	return true
}

// Count 当前脉冲串的累计脉冲数
func (c *CoinCounter) Count() int {
	return int(c.count.Load())
}

// LastEdge 最近一次被接受边沿的时间；零值表示尚无脉冲
func (c *CoinCounter) LastEdge() time.Time {
	nano := c.lastEdgeNano.Load()
	if nano == 0 {
		return time.Time{}
	}
	return time.Unix(0, nano)
}

// Reset 清空脉冲串（识别完成或被拒绝后调用）
func (c *CoinCounter) Reset() {
	c.count.Store(0)
}
