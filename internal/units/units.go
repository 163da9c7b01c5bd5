// Package units builds the mount unit descriptions the generator emits.
//
// Units are assembled from go-systemd UnitOptions and rendered with
// unit.Serialize, which yields the "[Section]" / "Key=Value" layout
// systemd reads, sections separated by one blank line.
package units

import (
	"fmt"
	"io"
	"strings"

	"github.com/coreos/go-systemd/v22/unit"

	"github.com/danieljhkim/fex-rootfs-generator/internal/config"
	"github.com/danieljhkim/fex-rootfs-generator/internal/layers"
	"github.com/danieljhkim/fex-rootfs-generator/internal/unitname"
)

const (
	// WantedBy is the target the root overlay is installed into.
	WantedBy = "multi-user.target"

	// RootDescription describes the aggregate overlay mount.
	RootDescription = "FEX RootFS"
)

// Unit is one unit file to be written.
type Unit struct {
	// Name is the unit file name, e.g. "var-lib-fex\x2demu-rootfs.mount"
	Name string

	// Options are the unit's settings in file order
	Options []*unit.UnitOption
}

// Bytes renders the unit file contents.
func (u *Unit) Bytes() ([]byte, error) {
	data, err := io.ReadAll(unit.Serialize(u.Options))
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s: %w", u.Name, err)
	}
	return data, nil
}

// LayerMount describes the mount unit that mounts layer at its mount point
// under paths.MountsDir.
func LayerMount(layer layers.Layer, paths config.Paths) (*Unit, error) {
	where := paths.LayerMountPoint(layer.Name)
	name, err := unitname.Mount(where)
	if err != nil {
		return nil, fmt.Errorf("failed to name unit for layer %q: %w", layer.Name, err)
	}

	return &Unit{
		Name: name,
		Options: []*unit.UnitOption{
			unit.NewUnitOption("Unit", "Description", "FEX RootFS layer for "+layer.Name),
			unit.NewUnitOption("Mount", "What", layer.SourcePath),
			unit.NewUnitOption("Mount", "Where", where),
		},
	}, nil
}

// Stack holds both views of one layer ordering: the units the root overlay
// depends on, and the lowerdir stack in overlayfs precedence order.
type Stack struct {
	// Dependencies are layer unit names in ascending layer order
	Dependencies []string

	// LowerDirs are layer mount points, highest precedence first
	LowerDirs []string
}

// NewStack derives the dependency list from ordering.Forward and the lower
// directories from ordering.Reversed.
func NewStack(ordering layers.Ordering, paths config.Paths) (Stack, error) {
	stack := Stack{
		Dependencies: make([]string, 0, ordering.Len()),
		LowerDirs:    make([]string, 0, ordering.Len()),
	}

	for _, name := range ordering.Forward() {
		unitName, err := unitname.Mount(paths.LayerMountPoint(name))
		if err != nil {
			return Stack{}, fmt.Errorf("failed to name unit for layer %q: %w", name, err)
		}
		stack.Dependencies = append(stack.Dependencies, unitName)
	}

	for _, name := range ordering.Reversed() {
		stack.LowerDirs = append(stack.LowerDirs, paths.LayerMountPoint(name))
	}

	return stack, nil
}

// OverlayOptions renders the overlayfs mount options for stack.
func OverlayOptions(stack Stack, paths config.Paths) string {
	return fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s",
		strings.Join(stack.LowerDirs, ":"), paths.WritableDir, paths.WorkDir)
}

// RootOverlay describes the overlay mount of paths.RootfsDir. It binds to
// and orders after every layer unit in stack.
func RootOverlay(stack Stack, paths config.Paths) (*Unit, error) {
	name, err := unitname.Mount(paths.RootfsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to name root overlay unit: %w", err)
	}

	deps := strings.Join(stack.Dependencies, " ")
	return &Unit{
		Name: name,
		Options: []*unit.UnitOption{
			unit.NewUnitOption("Unit", "Description", RootDescription),
			unit.NewUnitOption("Unit", "BindsTo", deps),
			unit.NewUnitOption("Unit", "After", deps),
			unit.NewUnitOption("Mount", "What", "overlay"),
			unit.NewUnitOption("Mount", "Where", paths.RootfsDir),
			unit.NewUnitOption("Mount", "Type", "overlay"),
			unit.NewUnitOption("Mount", "Options", OverlayOptions(stack, paths)),
			unit.NewUnitOption("Install", "WantedBy", WantedBy),
		},
	}, nil
}
