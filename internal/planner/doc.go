// Package planner handles the planning phase of unit generation.
//
// The planner turns a discovered layer set into a deterministic execution
// plan: one unit file write per layer, the root overlay unit, the
// target's .wants directory and the symlink that enables the overlay.
// Nothing touches the filesystem until the engine executes the plan, which
// lets a dry run print exactly what would be written.
//
// Key responsibilities:
//   - Order layers once and derive both dependency and lowerdir views
//   - Name every unit with systemd path escaping
//   - Mark operations whose failure the run tolerates
package planner
