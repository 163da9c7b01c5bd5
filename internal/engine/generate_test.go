package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/fex-rootfs-generator/internal/config"
	"github.com/danieljhkim/fex-rootfs-generator/internal/fsops"
	"github.com/danieljhkim/fex-rootfs-generator/internal/layers"
	"github.com/danieljhkim/fex-rootfs-generator/internal/planner"
	"github.com/danieljhkim/fex-rootfs-generator/internal/unitname"
)

// faultFS fails selected operations on top of the real filesystem.
type faultFS struct {
	fsops.RealFS
	failWrite   string
	failMkdir   bool
	failSymlink bool
	writes      []string
}

func (fs *faultFS) AtomicWrite(path string, data []byte, perm os.FileMode) error {
	if fs.failWrite != "" && filepath.Base(path) == fs.failWrite {
		return errors.New("disk full")
	}
	fs.writes = append(fs.writes, filepath.Base(path))
	return fs.RealFS.AtomicWrite(path, data, perm)
}

func (fs *faultFS) MkdirAll(path string, perm os.FileMode) error {
	if fs.failMkdir {
		return errors.New("read-only filesystem")
	}
	return fs.RealFS.MkdirAll(path, perm)
}

func (fs *faultFS) Symlink(oldname, newname string) error {
	if fs.failSymlink {
		return errors.New("operation not permitted")
	}
	return fs.RealFS.Symlink(oldname, newname)
}

type fixture struct {
	cfg    config.Config
	outDir string
}

// newFixture creates a layers directory holding entries plus an empty
// output directory. Entries ending in "/" become directories.
func newFixture(t *testing.T, entries ...string) fixture {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths = config.Paths{
		LayersDir:   filepath.Join(root, "share", "layers"),
		MountsDir:   filepath.Join(root, "lib", "fex-emu", "layers"),
		RootfsDir:   filepath.Join(root, "lib", "fex-emu", "rootfs"),
		WritableDir: filepath.Join(root, "lib", "fex-emu", "writable"),
		WorkDir:     filepath.Join(root, "lib", "fex-emu", "workdir"),
	}
	require.NoError(t, os.MkdirAll(cfg.LayersDir, 0755))

	for _, entry := range entries {
		path := filepath.Join(cfg.LayersDir, entry)
		if strings.HasSuffix(entry, "/") {
			require.NoError(t, os.MkdirAll(path, 0755))
			continue
		}
		require.NoError(t, os.WriteFile(path, []byte("image"), 0644))
	}

	outDir := filepath.Join(root, "generator")
	require.NoError(t, os.MkdirAll(outDir, 0755))

	return fixture{cfg: *cfg, outDir: outDir}
}

func (f fixture) engine(fs fsops.FS) *Engine {
	log, _ := test.NewNullLogger()
	return New(fs, f.cfg, log)
}

func mountUnit(t *testing.T, path string) string {
	t.Helper()
	name, err := unitname.Mount(path)
	require.NoError(t, err)
	return name
}

func readUnit(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func TestGenerate(t *testing.T) {
	f := newFixture(t, "a/", "b.squashfs")
	eng := f.engine(fsops.NewRealFS())

	result, err := eng.Generate(&GenerateRequest{OutputDir: f.outDir})
	require.NoError(t, err)
	assert.Len(t, result.Applied, 5)
	assert.Empty(t, result.Skipped)

	mountA := filepath.Join(f.cfg.MountsDir, "a")
	mountB := filepath.Join(f.cfg.MountsDir, "b")
	unitA, unitB := mountUnit(t, mountA), mountUnit(t, mountB)
	rootUnit := mountUnit(t, f.cfg.RootfsDir)

	assert.Equal(t,
		"[Unit]\nDescription=FEX RootFS layer for a\n\n[Mount]\nWhat="+filepath.Join(f.cfg.LayersDir, "a")+"\nWhere="+mountA+"\n",
		readUnit(t, f.outDir, unitA))
	assert.Equal(t,
		"[Unit]\nDescription=FEX RootFS layer for b\n\n[Mount]\nWhat="+filepath.Join(f.cfg.LayersDir, "b.squashfs")+"\nWhere="+mountB+"\n",
		readUnit(t, f.outDir, unitB))

	root := readUnit(t, f.outDir, rootUnit)
	assert.Contains(t, root, "\nBindsTo="+unitA+" "+unitB+"\n")
	assert.Contains(t, root, "\nAfter="+unitA+" "+unitB+"\n")
	assert.Contains(t, root, "\nOptions=lowerdir="+mountB+":"+mountA+
		",upperdir="+f.cfg.WritableDir+",workdir="+f.cfg.WorkDir+"\n")
	assert.Contains(t, root, "\nWhere="+f.cfg.RootfsDir+"\n")
	assert.True(t, strings.HasSuffix(root, "[Install]\nWantedBy=multi-user.target\n"))

	link := filepath.Join(f.outDir, "multi-user.target.wants", rootUnit)
	target, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, "../"+rootUnit, target)

	// the relative link resolves to the unit file
	linked, err := os.ReadFile(link)
	require.NoError(t, err)
	assert.Equal(t, root, string(linked))
}

func TestGenerate_DependenciesMatchStack(t *testing.T) {
	f := newFixture(t, "30-vulkan.squashfs", "00-base.squashfs", "10-mesa/", "20-extra.erofs")
	eng := f.engine(fsops.NewRealFS())

	result, err := eng.Generate(&GenerateRequest{OutputDir: f.outDir})
	require.NoError(t, err)

	plan := result.Plan
	assert.Equal(t, []string{"00-base", "10-mesa", "20-extra", "30-vulkan"}, plan.Layers)
	require.Len(t, plan.Stack.Dependencies, 4)
	require.Len(t, plan.Stack.LowerDirs, 4)

	for i, dep := range plan.Stack.Dependencies {
		lower := plan.Stack.LowerDirs[len(plan.Stack.LowerDirs)-1-i]
		assert.Equal(t, mountUnit(t, lower), dep)

		// every dependency is a unit this run wrote
		_, err := os.Stat(filepath.Join(f.outDir, dep))
		assert.NoError(t, err)
	}
}

func TestGenerate_NoLayers(t *testing.T) {
	f := newFixture(t)
	eng := f.engine(fsops.NewRealFS())

	result, err := eng.Generate(&GenerateRequest{OutputDir: f.outDir})
	require.NoError(t, err)
	assert.Equal(t, []string{mountUnit(t, f.cfg.RootfsDir)}, result.Plan.Units())

	root := readUnit(t, f.outDir, mountUnit(t, f.cfg.RootfsDir))
	assert.Contains(t, root, "\nBindsTo=\nAfter=\n")
	assert.Contains(t, root, "\nOptions=lowerdir=,upperdir=")
}

func TestGenerate_Idempotent(t *testing.T) {
	f := newFixture(t, "a/", "b.squashfs", "c.img")
	eng := f.engine(fsops.NewRealFS())

	_, err := eng.Generate(&GenerateRequest{OutputDir: f.outDir})
	require.NoError(t, err)
	first := snapshotDir(t, f.outDir)

	t.Run("clean output directory", func(t *testing.T) {
		otherOut := t.TempDir()
		_, err := eng.Generate(&GenerateRequest{OutputDir: otherOut})
		require.NoError(t, err)
		assert.Equal(t, first, snapshotDir(t, otherOut))
	})

	t.Run("same output directory", func(t *testing.T) {
		result, err := eng.Generate(&GenerateRequest{OutputDir: f.outDir})
		require.NoError(t, err)

		// the link from the first run already exists
		require.Len(t, result.Skipped, 1)
		assert.Equal(t, planner.OpCreateSymlink, result.Skipped[0].Type)
		assert.Equal(t, first, snapshotDir(t, f.outDir))
	})
}

// snapshotDir maps regular file names in dir to their contents.
func snapshotDir(t *testing.T, dir string) map[string]string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	out := map[string]string{}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		out[entry.Name()] = readUnit(t, dir, entry.Name())
	}
	return out
}

func TestGenerate_OverwritesExistingUnits(t *testing.T) {
	f := newFixture(t, "a/")
	eng := f.engine(fsops.NewRealFS())

	unitA := mountUnit(t, filepath.Join(f.cfg.MountsDir, "a"))
	require.NoError(t, os.WriteFile(filepath.Join(f.outDir, unitA), []byte("stale"), 0644))

	_, err := eng.Generate(&GenerateRequest{OutputDir: f.outDir})
	require.NoError(t, err)
	assert.Contains(t, readUnit(t, f.outDir, unitA), "Description=FEX RootFS layer for a")
}

func TestGenerate_DryRun(t *testing.T) {
	f := newFixture(t, "a/", "b/")
	eng := f.engine(fsops.NewRealFS())

	result, err := eng.Generate(&GenerateRequest{OutputDir: f.outDir, DryRun: true})
	require.NoError(t, err)
	assert.Len(t, result.Plan.Operations, 5)
	assert.Empty(t, result.Applied)

	entries, err := os.ReadDir(f.outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerate_Errors(t *testing.T) {
	t.Run("missing output directory argument", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine(fsops.NewRealFS()).Generate(&GenerateRequest{})
		require.ErrorIs(t, err, ErrNoOutputDir)
	})

	t.Run("missing layers directory", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, os.RemoveAll(f.cfg.LayersDir))

		_, err := f.engine(fsops.NewRealFS()).Generate(&GenerateRequest{OutputDir: f.outDir})
		require.ErrorIs(t, err, layers.ErrDiscovery)

		entries, err := os.ReadDir(f.outDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("rejected duplicates", func(t *testing.T) {
		f := newFixture(t, "a.squashfs", "a.img")
		f.cfg.OnDuplicate = config.DuplicateReject

		_, err := f.engine(fsops.NewRealFS()).Generate(&GenerateRequest{OutputDir: f.outDir})
		require.ErrorIs(t, err, layers.ErrDuplicateLayer)
	})

	t.Run("unit write failure aborts without rollback", func(t *testing.T) {
		f := newFixture(t, "a/", "b/", "c/")
		unitB := mountUnit(t, filepath.Join(f.cfg.MountsDir, "b"))
		fs := &faultFS{failWrite: unitB}

		result, err := f.engine(fs).Generate(&GenerateRequest{OutputDir: f.outDir})
		require.ErrorIs(t, err, ErrEmit)

		// a was written before b failed and is left in place; c never ran
		unitA := mountUnit(t, filepath.Join(f.cfg.MountsDir, "a"))
		assert.Equal(t, []string{unitA}, fs.writes)
		require.Len(t, result.Applied, 1)
		_, statErr := os.Stat(filepath.Join(f.outDir, unitA))
		assert.NoError(t, statErr)
	})

	t.Run("wants directory failure is fatal", func(t *testing.T) {
		f := newFixture(t, "a/")
		_, err := f.engine(&faultFS{failMkdir: true}).Generate(&GenerateRequest{OutputDir: f.outDir})
		require.ErrorIs(t, err, ErrEmit)
	})

	t.Run("symlink failure is ignored", func(t *testing.T) {
		f := newFixture(t, "a/")
		result, err := f.engine(&faultFS{failSymlink: true}).Generate(&GenerateRequest{OutputDir: f.outDir})
		require.NoError(t, err)
		require.Len(t, result.Skipped, 1)
		assert.Equal(t, planner.OpCreateSymlink, result.Skipped[0].Type)
	})
}

// Entries whose names only differ by extension collapse into one layer.
// This documents the behavior under the default policy; the dropped entry
// is only reported through a warning.
func TestGenerate_DuplicateNamesCollapse(t *testing.T) {
	f := newFixture(t, "a.squashfs", "a.img")

	result, err := f.engine(fsops.NewRealFS()).Generate(&GenerateRequest{OutputDir: f.outDir})
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, result.Plan.Layers)
	unitA := mountUnit(t, filepath.Join(f.cfg.MountsDir, "a"))
	assert.Contains(t, readUnit(t, f.outDir, unitA), "What="+filepath.Join(f.cfg.LayersDir, "a.squashfs")+"\n")
}

func TestLayers(t *testing.T) {
	f := newFixture(t, "b.squashfs", "a/")

	result, err := f.engine(fsops.NewRealFS()).Layers()
	require.NoError(t, err)

	require.Len(t, result.Layers, 2)
	assert.Equal(t, "a", result.Layers[0].Name)
	assert.Equal(t, 2, result.Layers[0].Precedence)
	assert.Equal(t, "b", result.Layers[1].Name)
	assert.Equal(t, 1, result.Layers[1].Precedence)
	assert.Equal(t, filepath.Join(f.cfg.LayersDir, "b.squashfs"), result.Layers[1].SourcePath)
	assert.Equal(t, mountUnit(t, result.Layers[1].MountPoint), result.Layers[1].Unit)
	assert.Equal(t, mountUnit(t, f.cfg.RootfsDir), result.RootUnit)
	assert.Equal(t, []string{result.Layers[1].MountPoint, result.Layers[0].MountPoint}, result.LowerDirs)
}

func TestExecuteCreateSymlink_ExistingPath(t *testing.T) {
	f := newFixture(t)
	eng := f.engine(fsops.NewRealFS())

	op := planner.Operation{
		Type:     planner.OpCreateSymlink,
		Path:     filepath.Join(f.outDir, "root.mount"),
		Target:   "../root.mount",
		Optional: true,
	}

	t.Run("same link from an earlier run", func(t *testing.T) {
		require.NoError(t, eng.executeCreateSymlink(op))

		err := eng.executeCreateSymlink(op)
		require.ErrorIs(t, err, ErrAlreadyRegistered)
		assert.NotErrorIs(t, err, ErrRegister)
	})

	t.Run("link to another target", func(t *testing.T) {
		other := op
		other.Path = filepath.Join(f.outDir, "other.mount")
		require.NoError(t, os.Symlink("../elsewhere.mount", other.Path))

		err := eng.executeCreateSymlink(other)
		require.ErrorIs(t, err, ErrRegister)
		assert.NotErrorIs(t, err, ErrAlreadyRegistered)
	})

	t.Run("regular file in the way", func(t *testing.T) {
		file := op
		file.Path = filepath.Join(f.outDir, "file.mount")
		require.NoError(t, os.WriteFile(file.Path, []byte("x"), 0644))

		err := eng.executeCreateSymlink(file)
		require.ErrorIs(t, err, ErrRegister)
		assert.NotErrorIs(t, err, ErrAlreadyRegistered)
	})
}
