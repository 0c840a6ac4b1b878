//go:build !windows

package filesystem

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

// TestWalkDirNonRegular 非常规文件被忽略 (Unix only - uses mkfifo)
func TestWalkDirNonRegular(t *testing.T) {
	root := t.TempDir()
	if err := syscall.Mkfifo(filepath.Join(root, "fifo.md"), 0o644); err != nil {
		t.Fatalf("mkfifo: %v", err)
	}
	if got := names(t, NewWalker(nil), root); len(got) != 0 {
		t.Fatalf("non-regular should skip, visited %#v", got)
	}
}

// TestWalkSymlink 指向常规文件的符号链接被收录 (Unix only)
func TestWalkSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "t.md")
	mkfile(t, target, "ok")
	link := filepath.Join(dir, "l.md")
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if got := names(t, NewWalker(nil), link); len(got) != 1 || got[0] != "l.md" {
		t.Fatalf("symlink not visited: %#v", got)
	}
	if got := names(t, NewWalker(nil), dir); len(got) != 2 {
		t.Fatalf("dir walk should include link: %#v", got)
	}
}

// TestWalkSymlinkDir 符号链接指向目录时忽略 (Unix only)
func TestWalkSymlinkDir(t *testing.T) {
	root := t.TempDir()
	real := filepath.Join(t.TempDir(), "real")
	mkfile(t, filepath.Join(real, "x.md"), "")
	if err := os.Symlink(real, filepath.Join(root, "link")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if got := names(t, NewWalker(nil), root); len(got) != 0 {
		t.Fatalf("dir symlink should be ignored: %#v", got)
	}
	if got := names(t, NewWalker(nil), filepath.Join(root, "link")); len(got) != 0 {
		t.Fatalf("dir symlink root should be ignored: %#v", got)
	}
}
