package hardware

import (
	"bufio"
	"strings"
	"sync"

	"github.com/tarm/serial"
	"github.com/wfunc/water-vendor/internal/config"
	apperrors "github.com/wfunc/water-vendor/internal/errors"
	"github.com/wfunc/water-vendor/internal/logger"
	"go.uber.org/zap"
)

// SerialChannel 上位机串口通道
//
// 读协程逐行推送到Lines通道；写操作加锁保证整行原子写出。
type SerialChannel struct {
	port    *serial.Port
	lines   chan string
	writeMu sync.Mutex
	closed  chan struct{}
	once    sync.Once
	log     *zap.Logger
}

// NewSerialChannel 打开串口并启动读协程
func NewSerialChannel(cfg *config.SerialConfig) (*SerialChannel, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.BaudRate,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrSerialPortOpen, "打开串口失败: %s", cfg.Port)
	}

	c := &SerialChannel{
		port:   port,
		lines:  make(chan string, 16),
		closed: make(chan struct{}),
		log:    logger.GetModuleLogger("serial"),
	}
	go c.readLoop()
	return c, nil
}

// readLoop 逐行读取，通道关闭前持续运行
func (c *SerialChannel) readLoop() {
	defer close(c.lines)

	scanner := bufio.NewScanner(c.port)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		logger.LogHostLine("recv", line)
		select {
		case c.lines <- line:
		case <-c.closed:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case <-c.closed:
		default:
			c.log.Error("串口读取失败", zap.Error(err))
		}
	}
}

// Lines 接收行通道
func (c *SerialChannel) Lines() <-chan string {
	return c.lines
}

// WriteLine 写出一行（自动追加换行）
func (c *SerialChannel) WriteLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	logger.LogHostLine("send", line)
	if _, err := c.port.Write([]byte(line + "\n")); err != nil {
		return apperrors.Wrap(err, apperrors.ErrSerialPortWrite, "串口写入失败")
	}
	return nil
}

// Close 关闭串口
func (c *SerialChannel) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		err = c.port.Close()
	})
	return err
}
