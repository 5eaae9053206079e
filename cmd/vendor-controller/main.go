package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/wfunc/water-vendor/internal/config"
	"github.com/wfunc/water-vendor/internal/database"
	"github.com/wfunc/water-vendor/internal/errors"
	"github.com/wfunc/water-vendor/internal/hardware"
	"github.com/wfunc/water-vendor/internal/logger"
	"github.com/wfunc/water-vendor/internal/service"
	"github.com/wfunc/water-vendor/internal/storage"
	"github.com/wfunc/water-vendor/internal/vending"
	"go.uber.org/zap"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Controller 控制器实例
type Controller struct {
	cfg    *config.Config
	logger *zap.Logger

	store    storage.Store
	channel  hardware.LineChannel
	machine  *vending.Machine
	loop     *vending.Loop
	services *service.Services

	// 调试模式组件
	flowSim *hardware.FlowSimulator

	// 关闭控制
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	// 命令行参数
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		mockMode    = flag.Bool("mock", false, "调试模式（模拟硬件和串口）")
		setPIN      = flag.String("set-pin", "", "设置维护操作员PIN后退出")
		reportDate  = flag.String("report", "", "输出指定日期的经营日报后退出（YYYY-MM-DD或today）")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}
	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	// 加载配置
	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()
	if *mockMode {
		cfg.Hardware.MockMode = true
		cfg.Serial.MockMode = true
	}

	// 初始化日志系统
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	// 设置操作员PIN后直接退出
	if *setPIN != "" {
		if err := runSetPIN(cfg, *setPIN); err != nil {
			logger.Fatal("设置PIN失败", zap.Error(err))
		}
		logger.Info("操作员PIN已设置")
		os.Exit(0)
	}

	// 输出经营日报后直接退出
	if *reportDate != "" {
		if err := runReport(cfg, *reportDate); err != nil {
			logger.Fatal("生成日报失败", zap.Error(err))
		}
		os.Exit(0)
	}

	printStartInfo(cfg)

	controller := NewController(cfg)

	if err := controller.Start(); err != nil {
		logger.Fatal("控制器启动失败", zap.Error(err))
	}

	controller.WaitForShutdown()

	if err := controller.Shutdown(); err != nil {
		logger.Error("控制器关闭失败", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("控制器已安全关闭")
}

// NewController 创建控制器实例
func NewController(cfg *config.Config) *Controller {
	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		cfg:    cfg,
		logger: logger.GetLogger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动控制器
func (c *Controller) Start() error {
	c.logger.Info("正在启动售水机控制器...",
		zap.String("version", Version),
		zap.String("device_id", c.cfg.Maintenance.DeviceID),
	)

	if err := c.initComponents(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "初始化组件失败")
	}

	c.startServices()

	// 监听配置变化
	config.Watch(func(newCfg *config.Config) {
		c.logger.Info("配置已更新，正在重新加载...")
		c.cfg = newCfg
	})

	c.logger.Info("控制器启动成功")
	return nil
}

// initComponents 初始化组件
func (c *Controller) initComponents() error {
	c.logger.Info("初始化组件...")

	// 初始化数据库
	if err := database.Init(&c.cfg.Database); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "初始化数据库连接失败")
	}
	if c.cfg.Database.AutoMigrate {
		c.logger.Info("执行数据库自动迁移...")
		if err := database.AutoMigrate(); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseConnect, "数据库迁移失败")
		}
	}
	if !database.IsConnected() {
		return errors.New(errors.ErrDatabaseConnect, "数据库连接检查失败")
	}

	// 初始化业务服务
	c.services = service.NewServices(database.GetDB(), c.cfg.Maintenance.DeviceID, c.logger)

	// 异常断电遗留的会话在启动时关闭
	if n, err := c.services.Journal.CloseStaleSessions(c.ctx); err != nil {
		c.logger.Warn("清理遗留会话失败", zap.Error(err))
	} else if n > 0 {
		c.logger.Info("已关闭遗留会话", zap.Int64("count", n))
	}

	// 初始化定值存储
	storePath := filepath.Join(filepath.Dir(c.cfg.Database.DSN), "constants.db")
	store, err := storage.NewSQLiteStore(c.ctx, storePath)
	if err != nil {
		return errors.Wrap(err, errors.ErrCalibrationData, "打开定值存储失败")
	}
	c.store = store

	// 初始化硬件
	coins := hardware.NewCoinCounter(c.cfg.Hardware.CoinRateFloor, c.cfg.Hardware.CoinDebounce)
	flow := hardware.NewFlowCounter()
	pump := hardware.NewMockActuator("pump")
	valve := hardware.NewMockActuator("valve")
	pair := &hardware.ActuatorPair{Pump: pump, Valve: valve}

	var rf hardware.Rangefinder
	if c.cfg.Hardware.MockMode {
		rf = hardware.NewMockRangefinder(0)
		c.flowSim = hardware.NewFlowSimulator(pair, flow, 45)
		c.logger.Info("硬件调试模式")
	} else {
		rf = hardware.NewMockRangefinder(0)
		c.logger.Warn("GPIO驱动未接入，超声波使用空读数")
		c.logger.Warn("GPIO驱动未接入，水泵和电磁阀为空动作")
	}

	// 初始化上位机通道
	if c.cfg.Serial.MockMode || !c.cfg.Serial.Enabled {
		c.channel = hardware.NewMockChannel()
		c.logger.Info("串口调试模式（内存通道）")
	} else {
		ch, err := hardware.NewSerialChannel(&c.cfg.Serial)
		if err != nil {
			return err
		}
		c.channel = ch
	}

	// 初始化状态机与控制循环
	var pins vending.PINVerifier
	if c.cfg.Maintenance.RequirePIN {
		pins = c.services.Maintenance
	}
	c.machine = vending.NewMachine(c.ctx, c.cfg, vending.Deps{
		Channel: c.channel,
		Coins:   coins,
		Flow:    flow,
		Pair:    pair,
		Ranger:  hardware.NewUltrasonicRanger(rf),
		Store:   c.store,
		Journal: c.services.Journal,
		Pins:    pins,
	})
	c.loop = vending.NewLoop(c.machine, c.cfg.Vending.TickInterval)

	c.logger.Info("所有组件初始化完成")
	return nil
}

// startServices 启动服务协程
func (c *Controller) startServices() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.loop.Run(c.ctx); err != nil && err != context.Canceled {
			c.logger.Error("控制循环退出", zap.Error(err))
		}
	}()

	if c.flowSim != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.flowSim.Run(c.ctx)
		}()
	}

	c.logger.Info("所有服务启动完成")
}

// WaitForShutdown 等待关闭信号
func (c *Controller) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	sig := <-sigCh
	c.logger.Info("收到退出信号", zap.String("signal", sig.String()))
}

// Shutdown 优雅关闭控制器
func (c *Controller) Shutdown() error {
	c.logger.Info("正在优雅关闭控制器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 取消主上下文，触发所有协程退出
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("所有服务已正常关闭")
	case <-shutdownCtx.Done():
		c.logger.Warn("关闭超时，强制退出")
		return errors.New(errors.ErrTimeout, "关闭超时")
	}

	return c.closeComponents()
}

// closeComponents 关闭组件
func (c *Controller) closeComponents() error {
	c.logger.Info("关闭组件...")

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Error("关闭串口失败", zap.Error(err))
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.logger.Error("关闭定值存储失败", zap.Error(err))
		}
	}
	if err := database.Close(); err != nil {
		c.logger.Error("关闭数据库失败", zap.Error(err))
	}

	if err := logger.Sync(); err != nil {
		fmt.Printf("同步日志失败: %v\n", err)
	}

	c.logger.Info("所有组件已关闭")
	return nil
}

// runSetPIN 初始化数据库并设置操作员PIN
func runSetPIN(cfg *config.Config, pin string) error {
	if err := database.Init(&cfg.Database); err != nil {
		return err
	}
	defer database.Close()
	if err := database.AutoMigrate(); err != nil {
		return err
	}

	services := service.NewServices(database.GetDB(), cfg.Maintenance.DeviceID, logger.GetLogger())
	return services.Maintenance.SetPIN(context.Background(), "admin", pin)
}

// runReport 初始化数据库并打印单日经营汇总
func runReport(cfg *config.Config, date string) error {
	day := time.Now()
	if date != "today" {
		parsed, err := time.ParseInLocation("2006-01-02", date, time.Local)
		if err != nil {
			return fmt.Errorf("日期格式应为 YYYY-MM-DD 或 today: %w", err)
		}
		day = parsed
	}

	if err := database.Init(&cfg.Database); err != nil {
		return err
	}
	defer database.Close()
	if err := database.AutoMigrate(); err != nil {
		return err
	}

	services := service.NewServices(database.GetDB(), cfg.Maintenance.DeviceID, logger.GetLogger())
	summary, err := services.Reporting.GetDailySummary(context.Background(), day)
	if err != nil {
		return err
	}

	fmt.Printf("日期: %s  设备: %s\n", summary.Date, cfg.Maintenance.DeviceID)
	fmt.Printf("投币: 共%d枚  接受%d枚  拒绝%d枚  金额%d比索  兑换水量%dml\n",
		summary.Coins.TotalCoins, summary.Coins.AcceptedCoins, summary.Coins.RejectedCoins,
		summary.Coins.TotalPesos, summary.Coins.TotalCreditML)
	fmt.Printf("出水: 共%d次  完成%d次  提前终止%d次  累计%.1fml  退回%.1fml\n",
		summary.Dispense.TotalSessions, summary.Dispense.DoneSessions, summary.Dispense.StoppedSessions,
		summary.Dispense.TotalDispenseML, summary.Dispense.TotalRefundML)
	return nil
}

// printStartInfo 打印启动信息
func printStartInfo(cfg *config.Config) {
	fmt.Println("========================================")
	fmt.Println("  投币售水机控制器")
	fmt.Printf("  版本: %s\n", Version)
	fmt.Printf("  设备: %s\n", cfg.Maintenance.DeviceID)
	fmt.Printf("  串口: %s @ %d\n", cfg.Serial.Port, cfg.Serial.BaudRate)
	fmt.Println("========================================")
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("投币售水机控制器\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("投币售水机控制器")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  vendor-controller [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  WATER_VENDOR_*         覆盖同名配置项（如 WATER_VENDOR_SERIAL_PORT）")
}
