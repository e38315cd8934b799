// Package store 基于SQLite的目标、文章和爬取历史存储
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store 实现 TargetProvider、ArticleStore 和 HistoryRecorder
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// pragmas 通过DSN设置, 对连接池中的每个连接都生效
const pragmas = "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)"

// Open 打开(必要时创建)数据库文件并初始化表结构
// path为 ":memory:" 时使用单连接内存数据库
func Open(path string) (*Store, error) {
	var dsn string
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("创建数据目录失败: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?%s", path, pragmas)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	if path == ":memory:" {
		// 每个连接都是独立的内存数据库
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New 在已打开的连接上初始化表结构
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// DB 底层连接
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
