package engine

import (
	"github.com/danieljhkim/fex-rootfs-generator/internal/planner"
)

// GenerateResult represents the result of a generator run.
type GenerateResult struct {
	// Plan is the generated plan
	Plan *planner.Plan

	// Applied is the list of operations that were executed (empty if DryRun)
	Applied []planner.Operation

	// Skipped lists optional operations that failed and were tolerated
	Skipped []planner.Operation
}

// LayersResult describes the discovered layers without emitting units.
type LayersResult struct {
	// Layers in ascending order
	Layers []LayerInfo

	// RootUnit is the name of the root overlay unit
	RootUnit string

	// LowerDirs is the overlay lowerdir stack, highest precedence first
	LowerDirs []string
}

// LayerInfo describes one discovered layer.
type LayerInfo struct {
	Name       string
	SourcePath string
	MountPoint string
	Unit       string

	// Precedence is 1 for the layer whose files win in the overlay
	Precedence int
}
