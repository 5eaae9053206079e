package vending

// Mode 工作模式
type Mode string

const (
	ModeWater  Mode = "WATER"  // 售水模式：投币累计水量，放杯出水
	ModeCharge Mode = "CHARGE" // 充电模式：只上报投币，不累计水量
)

// State 机器状态
type State string

const (
	StateIdle       State = "idle"       // 空闲，等待投币或放杯
	StateCountdown  State = "countdown"  // 放杯确认倒计时
	StateDispensing State = "dispensing" // 出水中
	StatePaused     State = "paused"     // 取杯暂停，宽限期内
	StateCoinCal    State = "coin_cal"   // 投币脉冲签名校准
	StateFlowCal    State = "flow_cal"   // 流量系数校准
)

// Denomination 硬币面额
type Denomination struct {
	Peso     int // 面值（比索）
	Pulses   int // 脉冲签名
	CreditML int // 兑换毫升数
}
