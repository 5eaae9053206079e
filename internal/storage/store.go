package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// 定值存储地址分配（沿用下位机EEPROM布局）
const (
	AddrCoin1Pulses    = 0
	AddrCoin5Pulses    = 4
	AddrCoin10Pulses   = 8
	AddrPulsesPerLiter = 12
)

// ErrNotFound 地址尚未写入
var ErrNotFound = fmt.Errorf("storage: address not written")

// Store 按地址寻址的数值定值存储
//
// 下位机把校准常数放在EEPROM的固定偏移上，这里保持同样的
// 语义：按地址读写单个数值，掉电不丢。
type Store interface {
	GetInt(ctx context.Context, addr int) (int, error)
	PutInt(ctx context.Context, addr int, value int) error
	GetFloat(ctx context.Context, addr int) (float64, error)
	PutFloat(ctx context.Context, addr int, value float64) error
	Close() error
}

// SQLiteStore 单机版定值存储实现（SQLite）
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore 打开（必要时创建）定值存储
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	// SQLite不支持并发写入
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// 启用WAL模式以提高性能
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return s, nil
}

// initSchema 初始化表结构
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS constants (
			addr       INTEGER PRIMARY KEY,
			value      REAL NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// GetInt 读取整型定值
func (s *SQLiteStore) GetInt(ctx context.Context, addr int) (int, error) {
	f, err := s.GetFloat(ctx, addr)
	if err != nil {
		return 0, err
	}
	return int(math.Round(f)), nil
}

// PutInt 写入整型定值
func (s *SQLiteStore) PutInt(ctx context.Context, addr int, value int) error {
	return s.PutFloat(ctx, addr, float64(value))
}

// GetFloat 读取浮点定值
func (s *SQLiteStore) GetFloat(ctx context.Context, addr int) (float64, error) {
	query := `SELECT value FROM constants WHERE addr = ?`

	var value float64
	err := s.db.QueryRowContext(ctx, query, addr).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get constant: %w", err)
	}

	return value, nil
}

// PutFloat 写入浮点定值
func (s *SQLiteStore) PutFloat(ctx context.Context, addr int, value float64) error {
	query := `
		INSERT INTO constants (addr, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(addr) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, addr, value, time.Now()); err != nil {
		return fmt.Errorf("put constant: %w", err)
	}

	return nil
}

// Close 关闭存储
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// MemStore 内存版定值存储（用于测试）
type MemStore struct {
	mu     sync.RWMutex
	values map[int]float64
}

// NewMemStore 创建内存定值存储
func NewMemStore() *MemStore {
	return &MemStore{values: make(map[int]float64)}
}

// GetInt 读取整型定值
func (m *MemStore) GetInt(ctx context.Context, addr int) (int, error) {
	f, err := m.GetFloat(ctx, addr)
	if err != nil {
		return 0, err
	}
	return int(math.Round(f)), nil
}

// PutInt 写入整型定值
func (m *MemStore) PutInt(ctx context.Context, addr int, value int) error {
	return m.PutFloat(ctx, addr, float64(value))
}

// GetFloat 读取浮点定值
func (m *MemStore) GetFloat(ctx context.Context, addr int) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[addr]
	if !ok {
		return 0, ErrNotFound
	}
	return v, nil
}

// PutFloat 写入浮点定值
func (m *MemStore) PutFloat(ctx context.Context, addr int, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[addr] = value
	return nil
}

// Close 关闭存储
func (m *MemStore) Close() error {
	return nil
}
