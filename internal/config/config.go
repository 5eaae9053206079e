package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	Serial      SerialConfig      `mapstructure:"serial"`
	Hardware    HardwareConfig    `mapstructure:"hardware"`
	Vending     VendingConfig     `mapstructure:"vending"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Log         LogConfig         `mapstructure:"log"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// SerialConfig 上位机串口配置
type SerialConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MockMode    bool          `mapstructure:"mock_mode"` // 调试模式（使用内存通道）
	Port        string        `mapstructure:"port"`
	BaudRate    int           `mapstructure:"baud_rate"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// HardwareConfig 硬件输入配置
type HardwareConfig struct {
	MockMode       bool          `mapstructure:"mock_mode"`        // 调试模式（使用模拟硬件）
	CoinRateFloor  time.Duration `mapstructure:"coin_rate_floor"`  // 快于该间隔的边沿视为电噪声
	CoinDebounce   time.Duration `mapstructure:"coin_debounce"`    // 投币脉冲去抖窗口
	CupThresholdCM float64       `mapstructure:"cup_threshold_cm"` // 杯子检测距离阈值
	CupStableCount int           `mapstructure:"cup_stable_count"` // 连续一致采样次数
	EchoTimeout    time.Duration `mapstructure:"echo_timeout"`     // 超声波回波超时
}

// VendingConfig 售水业务配置
type VendingConfig struct {
	Coins          CoinConfig    `mapstructure:"coins"`
	CoinQuietTime  time.Duration `mapstructure:"coin_quiet_time"` // 脉冲串静默判定窗口
	Countdown      time.Duration `mapstructure:"countdown"`       // 放杯确认倒计时
	GracePeriod    time.Duration `mapstructure:"grace_period"`    // 取杯宽限窗口
	InactivityTime time.Duration `mapstructure:"inactivity_time"` // 无操作复位超时
	ProgressEvery  time.Duration `mapstructure:"progress_every"`  // 出水进度事件节流间隔
	TickInterval   time.Duration `mapstructure:"tick_interval"`   // 控制循环周期
	Calibration    CalConfig     `mapstructure:"calibration"`
}

// CoinConfig 硬币面额配置
type CoinConfig struct {
	Coin1Pulses  int `mapstructure:"coin1_pulses"`  // 1比索默认脉冲签名
	Coin5Pulses  int `mapstructure:"coin5_pulses"`  // 5比索默认脉冲签名
	Coin10Pulses int `mapstructure:"coin10_pulses"` // 10比索默认脉冲签名
	Coin1ML      int `mapstructure:"coin1_ml"`      // 1比索兑换毫升数
	Coin5ML      int `mapstructure:"coin5_ml"`      // 5比索兑换毫升数
	Coin10ML     int `mapstructure:"coin10_ml"`     // 10比索兑换毫升数
	Tolerance    int `mapstructure:"tolerance"`     // 脉冲匹配容差
	MinPulses    int `mapstructure:"min_pulses"`    // 脉冲串合理下界
	MaxPulses    int `mapstructure:"max_pulses"`    // 脉冲串合理上界
}

// CalConfig 校准配置
type CalConfig struct {
	DefaultPulsesPerLiter float64       `mapstructure:"default_pulses_per_liter"` // 流量系数默认值
	MinPulsesPerLiter     float64       `mapstructure:"min_pulses_per_liter"`     // 流量系数合理下界
	MaxPulsesPerLiter     float64       `mapstructure:"max_pulses_per_liter"`     // 流量系数合理上界
	CoinWaitTimeout       time.Duration `mapstructure:"coin_wait_timeout"`        // 投币校准等待超时
}

// MaintenanceConfig 维护配置
type MaintenanceConfig struct {
	RequirePIN bool   `mapstructure:"require_pin"` // 校准命令是否需要操作员PIN
	DeviceID   string `mapstructure:"device_id"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init 初始化配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		v = viper.New()

		// 设置配置文件路径
		if configPath != "" {
			v.SetConfigFile(configPath)
		} else {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath("./config")
			v.AddConfigPath(".")
		}

		// 设置环境变量前缀
		v.SetEnvPrefix("WATER_VENDOR")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		// 设置默认值
		setDefaults(v)

		// 读取配置文件
		if err = v.ReadInConfig(); err != nil {
			// 如果配置文件不存在，使用默认配置
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return
			}
			err = nil
		}

		// 解析配置到结构体
		cfg = &Config{}
		if err = v.Unmarshal(cfg); err != nil {
			return
		}
	})

	return err
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 数据库默认配置
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/water-vendor.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)

	// 串口默认配置
	v.SetDefault("serial.enabled", true)
	v.SetDefault("serial.mock_mode", false)
	v.SetDefault("serial.port", "/dev/ttyUSB0")
	v.SetDefault("serial.baud_rate", 115200)
	v.SetDefault("serial.read_timeout", "50ms")

	// 硬件默认配置
	v.SetDefault("hardware.mock_mode", false)
	v.SetDefault("hardware.coin_rate_floor", "20ms")
	v.SetDefault("hardware.coin_debounce", "50ms")
	v.SetDefault("hardware.cup_threshold_cm", 10.0)
	v.SetDefault("hardware.cup_stable_count", 3)
	v.SetDefault("hardware.echo_timeout", "30ms")

	// 售水默认配置
	v.SetDefault("vending.coins.coin1_pulses", 1)
	v.SetDefault("vending.coins.coin5_pulses", 3)
	v.SetDefault("vending.coins.coin10_pulses", 5)
	v.SetDefault("vending.coins.coin1_ml", 50)
	v.SetDefault("vending.coins.coin5_ml", 250)
	v.SetDefault("vending.coins.coin10_ml", 500)
	v.SetDefault("vending.coins.tolerance", 1)
	v.SetDefault("vending.coins.min_pulses", 1)
	v.SetDefault("vending.coins.max_pulses", 10)
	v.SetDefault("vending.coin_quiet_time", "750ms")
	v.SetDefault("vending.countdown", "3s")
	v.SetDefault("vending.grace_period", "5s")
	v.SetDefault("vending.inactivity_time", "5m")
	v.SetDefault("vending.progress_every", "1s")
	v.SetDefault("vending.tick_interval", "50ms")
	v.SetDefault("vending.calibration.default_pulses_per_liter", 450.0)
	v.SetDefault("vending.calibration.min_pulses_per_liter", 200.0)
	v.SetDefault("vending.calibration.max_pulses_per_liter", 1000.0)
	v.SetDefault("vending.calibration.coin_wait_timeout", "12s")

	// 维护默认配置
	v.SetDefault("maintenance.require_pin", false)
	v.SetDefault("maintenance.device_id", "water-vendor-001")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "both")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "water-vendor.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Set 覆盖配置实例（仅用于测试）
func Set(c *Config) {
	mu.Lock()
	defer mu.Unlock()
	cfg = c
}

// Watch 监听配置文件变化
func Watch(callback func(*Config)) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()

		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}

		cfg = newCfg

		if callback != nil {
			callback(cfg)
		}
	})
}

// Default 返回一份带默认值的配置（用于测试与未初始化场景）
func Default() *Config {
	dv := viper.New()
	setDefaults(dv)
	c := &Config{}
	if err := dv.Unmarshal(c); err != nil {
		panic(err)
	}
	return c
}
