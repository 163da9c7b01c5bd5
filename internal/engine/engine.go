// Package engine provides the core logic of the generator.
//
// The engine is the orchestration layer between the CLI and lower-level
// operations. A run discovers layers, builds a plan of unit files and
// executes it against the output directory the service manager handed in.
//
// Key components:
//   - Engine: Main orchestrator that coordinates a generator run
//   - Generate: discover → plan → execute
//   - Layers: discovery and ordering without emitting anything
package engine

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/danieljhkim/fex-rootfs-generator/internal/config"
	"github.com/danieljhkim/fex-rootfs-generator/internal/fsops"
	"github.com/danieljhkim/fex-rootfs-generator/internal/layers"
	"github.com/danieljhkim/fex-rootfs-generator/internal/planner"
)

const (
	unitFilePerm = 0644
	dirPerm      = 0755
)

// Engine orchestrates generator runs.
// It is the main API surface called by the CLI.
type Engine struct {
	fs     fsops.FS
	config config.Config
	log    logrus.FieldLogger
}

// New creates a new Engine with the given dependencies.
func New(fs fsops.FS, cfg config.Config, log logrus.FieldLogger) *Engine {
	return &Engine{
		fs:     fs,
		config: cfg,
		log:    log,
	}
}

// Discover lists the layers directory using the configured duplicate
// policy.
func (e *Engine) Discover() (layers.Set, error) {
	return layers.Discover(e.fs, e.config.Paths, e.config.OnDuplicate, e.log)
}

// Layers returns the discovered layers with their plan, without writing
// anything.
func (e *Engine) Layers() (*LayersResult, error) {
	set, err := e.Discover()
	if err != nil {
		return nil, err
	}

	plan, err := planner.BuildPlan(set, e.config.Paths, "")
	if err != nil {
		return nil, fmt.Errorf("failed to build plan: %w", err)
	}

	result := &LayersResult{
		RootUnit:  plan.RootUnit,
		LowerDirs: plan.Stack.LowerDirs,
		Layers:    make([]LayerInfo, 0, len(plan.Layers)),
	}
	for i, name := range plan.Layers {
		result.Layers = append(result.Layers, LayerInfo{
			Name:       name,
			SourcePath: set[name].SourcePath,
			MountPoint: e.config.LayerMountPoint(name),
			Unit:       plan.Stack.Dependencies[i],
			Precedence: len(plan.Layers) - i,
		})
	}
	return result, nil
}

// executeOperation executes a single operation.
func (e *Engine) executeOperation(op planner.Operation) error {
	switch op.Type {
	case planner.OpWriteUnit:
		return e.executeWriteUnit(op)
	case planner.OpEnsureDir:
		return e.executeEnsureDir(op)
	case planner.OpCreateSymlink:
		return e.executeCreateSymlink(op)
	default:
		return fmt.Errorf("unknown operation type: %s", op.Type)
	}
}

// executeWriteUnit writes a unit file, replacing any existing one.
func (e *Engine) executeWriteUnit(op planner.Operation) error {
	if err := e.fs.AtomicWrite(op.Path, op.Data, unitFilePerm); err != nil {
		return fmt.Errorf("%w: failed to write %s: %w", ErrEmit, op.Unit, err)
	}
	return nil
}

// executeEnsureDir creates a directory if it is missing.
func (e *Engine) executeEnsureDir(op planner.Operation) error {
	if err := e.fs.MkdirAll(op.Path, dirPerm); err != nil {
		return fmt.Errorf("%w: failed to create directory %s: %w", ErrEmit, op.Path, err)
	}
	return nil
}

// executeCreateSymlink creates a symlink. When the path is already taken,
// an existing link to the same target is reported as ErrAlreadyRegistered
// and anything else as ErrRegister.
func (e *Engine) executeCreateSymlink(op planner.Operation) error {
	err := e.fs.Symlink(op.Target, op.Path)
	if err == nil {
		return nil
	}
	if e.isLinkTo(op.Path, op.Target) {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, op.Path)
	}
	return fmt.Errorf("%w: failed to link %s: %w", ErrRegister, op.Path, err)
}

// isLinkTo reports whether path is a symlink pointing at target.
func (e *Engine) isLinkTo(path, target string) bool {
	info, err := e.fs.Lstat(path)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return false
	}
	existing, err := e.fs.Readlink(path)
	return err == nil && existing == target
}
