package integration

import (
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/danieljhkim/fex-rootfs-generator/internal/config"
	"github.com/danieljhkim/fex-rootfs-generator/internal/engine"
)

// testFS is a filesystem implementation that tracks files in memory for testing
type testFS struct {
	files    map[string][]byte
	dirs     map[string]bool
	symlinks map[string]string
}

func newTestFS() *testFS {
	return &testFS{
		files:    make(map[string][]byte),
		dirs:     map[string]bool{"/": true},
		symlinks: make(map[string]string),
	}
}

// addDir creates path and all its parents.
func (fs *testFS) addDir(path string) {
	for p := filepath.Clean(path); ; p = filepath.Dir(p) {
		fs.dirs[p] = true
		if p == filepath.Dir(p) {
			return
		}
	}
}

// addFile creates a file, creating its parents.
func (fs *testFS) addFile(path string, data []byte) {
	fs.addDir(filepath.Dir(path))
	fs.files[path] = data
}

func (fs *testFS) info(path string) (os.FileInfo, bool) {
	name := filepath.Base(path)
	if _, ok := fs.symlinks[path]; ok {
		return &mockFileInfo{name: name, mode: os.ModeSymlink | 0777}, true
	}
	if fs.dirs[path] {
		return &mockFileInfo{name: name, mode: os.ModeDir | 0755, isDir: true}, true
	}
	if content, ok := fs.files[path]; ok {
		return &mockFileInfo{name: name, mode: 0644, size: int64(len(content))}, true
	}
	return nil, false
}

func (fs *testFS) Lstat(path string) (os.FileInfo, error) {
	if info, ok := fs.info(path); ok {
		return info, nil
	}
	return nil, &os.PathError{Op: "lstat", Path: path, Err: os.ErrNotExist}
}

func (fs *testFS) ReadDir(path string) ([]os.DirEntry, error) {
	if !fs.dirs[path] {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}

	var names []string
	seen := make(map[string]bool)
	collect := func(p string) {
		if p != path && filepath.Dir(p) == path && !seen[p] {
			seen[p] = true
			names = append(names, p)
		}
	}
	for p := range fs.files {
		collect(p)
	}
	for p := range fs.dirs {
		collect(p)
	}
	for p := range fs.symlinks {
		collect(p)
	}
	sort.Strings(names)

	entries := make([]os.DirEntry, 0, len(names))
	for _, p := range names {
		info, _ := fs.info(p)
		entries = append(entries, iofs.FileInfoToDirEntry(info))
	}
	return entries, nil
}

func (fs *testFS) Readlink(path string) (string, error) {
	if target, ok := fs.symlinks[path]; ok {
		return target, nil
	}
	return "", &os.PathError{Op: "readlink", Path: path, Err: os.ErrInvalid}
}

func (fs *testFS) MkdirAll(path string, perm os.FileMode) error {
	if _, ok := fs.files[path]; ok {
		return &os.PathError{Op: "mkdir", Path: path, Err: os.ErrExist}
	}
	fs.addDir(path)
	return nil
}

func (fs *testFS) Symlink(oldname, newname string) error {
	if _, exists := fs.info(newname); exists {
		return &os.LinkError{Op: "symlink", Old: oldname, New: newname, Err: os.ErrExist}
	}
	if !fs.dirs[filepath.Dir(newname)] {
		return &os.LinkError{Op: "symlink", Old: oldname, New: newname, Err: os.ErrNotExist}
	}
	fs.symlinks[newname] = oldname
	return nil
}

// AtomicWrite does not create parent directories, matching the real
// implementation.
func (fs *testFS) AtomicWrite(path string, data []byte, perm os.FileMode) error {
	if !fs.dirs[filepath.Dir(path)] {
		return &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	fs.files[path] = append([]byte(nil), data...)
	return nil
}

// mockFileInfo implements os.FileInfo
type mockFileInfo struct {
	name  string
	size  int64
	mode  os.FileMode
	isDir bool
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() os.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return time.Time{} }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() interface{}   { return nil }

const outputDir = "/run/systemd/generator"

func setupTestEngine(t *testing.T, policy config.DuplicatePolicy) (*engine.Engine, *testFS, *test.Hook) {
	t.Helper()

	fs := newTestFS()
	fs.addDir(outputDir)

	cfg := config.Default()
	cfg.OnDuplicate = policy
	fs.addDir(cfg.LayersDir)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	return engine.New(fs, *cfg, logger), fs, hook
}
