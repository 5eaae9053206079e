package vending

import (
	"context"
	"time"

	"github.com/wfunc/water-vendor/internal/logger"
	"go.uber.org/zap"
)

// Loop 控制循环
//
// 每个周期先排空待处理命令再推进状态机，保证同一周期内
// 命令先于投币处理，事件顺序可预测。
type Loop struct {
	machine  *Machine
	interval time.Duration
	log      *zap.Logger
}

// NewLoop 创建控制循环
func NewLoop(machine *Machine, interval time.Duration) *Loop {
	return &Loop{
		machine:  machine,
		interval: interval,
		log:      logger.GetModuleLogger("vending"),
	}
}

// Run 运行控制循环直到ctx取消
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("控制循环启动", zap.Duration("interval", l.interval))

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	lines := l.machine.channel.Lines()
	for {
		select {
		case <-ctx.Done():
			l.machine.resetAll(time.Now())
			l.log.Info("控制循环退出")
			return ctx.Err()

		case now := <-ticker.C:
			l.drainCommands(now, lines)
			l.machine.Tick(now)
		}
	}
}

// drainCommands 排空当前已到达的命令行
func (l *Loop) drainCommands(now time.Time, lines <-chan string) {
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			l.machine.HandleCommand(line, now)
		default:
			return
		}
	}
}
