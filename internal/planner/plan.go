package planner

import (
	"fmt"
	"path/filepath"

	"github.com/danieljhkim/fex-rootfs-generator/internal/config"
	"github.com/danieljhkim/fex-rootfs-generator/internal/layers"
	"github.com/danieljhkim/fex-rootfs-generator/internal/units"
)

// Plan represents the unit set to generate into an output directory.
type Plan struct {
	// OutputDir is the generator output directory the plan writes into
	OutputDir string

	// Layers is the layer order shared by dependencies and the overlay stack
	Layers []string

	// Stack is the root overlay's dependency list and lowerdir stack
	Stack units.Stack

	// RootUnit is the file name of the root overlay unit
	RootUnit string

	// Operations is the ordered list of operations to execute
	Operations []Operation
}

// Operation represents a single filesystem operation to execute.
type Operation struct {
	// Type is the operation type: "write_unit", "ensure_dir", "create_symlink"
	Type string

	// Path is the absolute destination path
	Path string

	// Unit is the unit name the operation concerns, if any
	Unit string

	// Data is the file content for write_unit
	Data []byte

	// Target is the link target for create_symlink
	Target string

	// Optional operations may fail without failing the run
	Optional bool
}

// Operation type constants
const (
	OpWriteUnit     = "write_unit"
	OpEnsureDir     = "ensure_dir"
	OpCreateSymlink = "create_symlink"
)

// NewPlan creates a new empty Plan.
func NewPlan(outputDir string) *Plan {
	return &Plan{
		OutputDir:  outputDir,
		Layers:     []string{},
		Operations: []Operation{},
	}
}

// AddOperation adds an operation to the plan.
func (p *Plan) AddOperation(op Operation) {
	p.Operations = append(p.Operations, op)
}

// Units returns the names of all units the plan writes, in plan order.
func (p *Plan) Units() []string {
	names := make([]string, 0, len(p.Operations))
	for _, op := range p.Operations {
		if op.Type == OpWriteUnit {
			names = append(names, op.Unit)
		}
	}
	return names
}

// WantsDir returns the directory that enables units for target.
func WantsDir(outputDir, target string) string {
	return filepath.Join(outputDir, target+".wants")
}

// BuildPlan generates the deterministic plan for set. Layer units are
// written in ascending layer order, followed by the root overlay, the
// .wants directory and the enabling symlink.
func BuildPlan(set layers.Set, paths config.Paths, outputDir string) (*Plan, error) {
	plan := NewPlan(outputDir)

	ordering := layers.Order(set)
	plan.Layers = ordering.Forward()

	for _, name := range plan.Layers {
		u, err := units.LayerMount(set[name], paths)
		if err != nil {
			return nil, err
		}
		if err := plan.addUnit(u); err != nil {
			return nil, err
		}
	}

	stack, err := units.NewStack(ordering, paths)
	if err != nil {
		return nil, err
	}
	plan.Stack = stack

	root, err := units.RootOverlay(stack, paths)
	if err != nil {
		return nil, err
	}
	if err := plan.addUnit(root); err != nil {
		return nil, err
	}
	plan.RootUnit = root.Name

	wantsDir := WantsDir(outputDir, units.WantedBy)
	plan.AddOperation(Operation{
		Type: OpEnsureDir,
		Path: wantsDir,
	})
	plan.AddOperation(Operation{
		Type:     OpCreateSymlink,
		Path:     filepath.Join(wantsDir, root.Name),
		Unit:     root.Name,
		Target:   filepath.Join("..", root.Name),
		Optional: true,
	})

	return plan, nil
}

func (p *Plan) addUnit(u *units.Unit) error {
	data, err := u.Bytes()
	if err != nil {
		return err
	}

	p.AddOperation(Operation{
		Type: OpWriteUnit,
		Path: filepath.Join(p.OutputDir, u.Name),
		Unit: u.Name,
		Data: data,
	})
	return nil
}

// String renders op for dry runs and logs.
func (op Operation) String() string {
	switch op.Type {
	case OpWriteUnit:
		return fmt.Sprintf("write %s", op.Path)
	case OpEnsureDir:
		return fmt.Sprintf("mkdir %s", op.Path)
	case OpCreateSymlink:
		return fmt.Sprintf("symlink %s -> %s", op.Path, op.Target)
	default:
		return fmt.Sprintf("%s %s", op.Type, op.Path)
	}
}
