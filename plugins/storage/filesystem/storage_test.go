package filesystem

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdtangle/pkg/contract"
)

func write(t *testing.T, s *FS, p contract.Path, data string) {
	t.Helper()
	h, err := s.OpenAppend(context.Background(), p)
	require.NoError(t, err)
	_, err = io.WriteString(h, data)
	require.NoError(t, err)
	require.NoError(t, h.Close())
}

// TestOpenAppendCreatesDirs 按需创建父目录
func TestOpenAppendCreatesDirs(t *testing.T) {
	dir := t.TempDir()
	s, err := New(&Options{OutputDir: dir})
	require.NoError(t, err)
	write(t, s, "src/deep/main.rs", "fn main() {}\n")
	b, err := os.ReadFile(filepath.Join(dir, "src", "deep", "main.rs"))
	require.NoError(t, err)
	assert.Equal(t, "fn main() {}\n", string(b))
}

// TestTruncateOnFirstOpen 首次打开截断，其后追加
func TestTruncateOnFirstOpen(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello"), []byte("stale\n"), 0o644))
	s, err := New(&Options{OutputDir: dir})
	require.NoError(t, err)
	write(t, s, "hello", "1\n")
	write(t, s, "hi", "3\n")
	write(t, s, "hello", "4\n")
	b, _ := os.ReadFile(filepath.Join(dir, "hello"))
	assert.Equal(t, "1\n4\n", string(b))
}

// TestAppendOnly 显式关闭截断时保留已有内容
func TestAppendOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "out.txt"), []byte("old\n"), 0o644))
	off := false
	s, err := New(&Options{OutputDir: dir, TruncateOnFirstOpen: &off})
	require.NoError(t, err)
	write(t, s, "out.txt", "new\n")
	b, _ := os.ReadFile(filepath.Join(dir, "out.txt"))
	assert.Equal(t, "old\nnew\n", string(b))
}

// TestHandleBusy 同一时刻只允许一个句柄
func TestHandleBusy(t *testing.T) {
	s, err := New(&Options{OutputDir: t.TempDir()})
	require.NoError(t, err)
	h, err := s.OpenAppend(context.Background(), "a")
	require.NoError(t, err)
	_, err = s.OpenAppend(context.Background(), "b")
	assert.ErrorIs(t, err, contract.ErrHandleBusy)
	require.NoError(t, h.Close())
	// 重复关闭无副作用
	require.NoError(t, h.Close())
	_, err = h.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)
	h2, err := s.OpenAppend(context.Background(), "b")
	require.NoError(t, err)
	require.NoError(t, h2.Close())
}

// TestPathInvalid 路径越界
func TestPathInvalid(t *testing.T) {
	s, err := New(&Options{OutputDir: t.TempDir()})
	require.NoError(t, err)
	for _, p := range []contract.Path{"", "  ", ".", "../bad", "a/../../bad", "/etc/passwd"} {
		_, err := s.OpenAppend(context.Background(), p)
		if !errors.Is(err, contract.ErrPathInvalid) {
			t.Fatalf("%q: expect path invalid, got %v", p, err)
		}
	}
	// 内部 .. 可被清理为合法路径
	write(t, s, "a/../b.txt", "ok")
	_, err = os.Stat(filepath.Join(s.Root(), "b.txt"))
	require.NoError(t, err)
}

// TestCanceled 取消后拒绝打开与写入
func TestCanceled(t *testing.T) {
	s, err := New(&Options{OutputDir: t.TempDir()})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	h, err := s.OpenAppend(ctx, "a")
	require.NoError(t, err)
	cancel()
	_, err = h.Write([]byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, h.Close())
	_, err = s.OpenAppend(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRequiresOutputDir(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
	_, err = New(&Options{OutputDir: " "})
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
}

// TestOpenOnFileParent 父路径是普通文件时打开失败
func TestOpenOnFileParent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o644))
	s, err := New(&Options{OutputDir: dir})
	require.NoError(t, err)
	_, err = s.OpenAppend(context.Background(), "f/child")
	require.Error(t, err)
	// 失败不占用句柄
	write(t, s, "g", "ok")
}
