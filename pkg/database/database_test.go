package database

import (
	"testing"

	"gorm.io/gorm/logger"
)

type testRow struct {
	ID   int64 `gorm:"primaryKey"`
	Name string
}

func TestOpen_SQLite(t *testing.T) {
	db, err := Open(Options{DSN: "sqlite::memory:", LogLevel: "silent"})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	defer Close(db)

	if err := Migrate(db, &testRow{}); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	if err := db.Create(&testRow{Name: "a"}).Error; err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	var count int64
	db.Model(&testRow{}).Count(&count)
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestOpen_EmptyDSN(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Error("空 DSN 应返回错误")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]logger.LogLevel{
		"silent": logger.Silent,
		"ERROR":  logger.Error,
		"info":   logger.Info,
		"":       logger.Warn,
		"warn":   logger.Warn,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
