package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNew_InvalidDriver(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "invalid"})
	if err == nil {
		t.Error("期望返回错误，但未返回")
	}
}

func TestLocalStore_PutGet(t *testing.T) {
	dir := t.TempDir()
	store, err := New(context.Background(), Config{Driver: "local", Dir: dir, Prefix: "pricing"})
	if err != nil {
		t.Fatalf("初始化失败: %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "raw/HETZNER/2025-01-01.json", []byte(`{"ok":true}`), "application/json"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "pricing", "raw", "HETZNER", "2025-01-01.json")); err != nil {
		t.Errorf("文件未写入预期路径: %v", err)
	}

	data, err := store.Get(ctx, "raw/HETZNER/2025-01-01.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("Get() = %s", data)
	}

	if err := store.Delete(ctx, "raw/HETZNER/2025-01-01.json"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "raw/HETZNER/2025-01-01.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("删除后 Get() error = %v, 期望 ErrNotFound", err)
	}
}

func TestLocalStore_PathTraversal(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewLocalStore(Config{Dir: filepath.Join(dir, "root")})
	ctx := context.Background()

	if err := store.Put(ctx, "../../escape.json", []byte("x"), ""); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	// 被限制在根目录内
	if _, err := os.Stat(filepath.Join(dir, "root", "escape.json")); err != nil {
		t.Errorf("对象应写入根目录内: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.json")); err == nil {
		t.Error("对象不应写到根目录外")
	}

	if err := store.Put(ctx, "", []byte("x"), ""); err == nil {
		t.Error("空 key 期望返回错误")
	}
}
