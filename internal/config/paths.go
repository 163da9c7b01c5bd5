// Package config manages generator configuration and filesystem paths.
//
// The five filesystem roots the generator works with are fixed at build
// time and collected in Paths so that every component sees the same values
// and tests can substitute temporary directories. Load layers environment
// variables (FEX_ROOTFS_*), an optional config file and command-line flags
// over those defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Build-time defaults for the FEX-Emu layer layout.
const (
	DefaultLayersDir   = "/usr/share/fex-emu/layers"
	DefaultMountsDir   = "/var/lib/fex-emu/layers"
	DefaultRootfsDir   = "/var/lib/fex-emu/rootfs"
	DefaultWritableDir = "/var/lib/fex-emu/writable"
	DefaultWorkDir     = "/var/lib/fex-emu/workdir"
)

// ErrInvalidConfig indicates a configuration value that cannot be used.
var ErrInvalidConfig = errors.New("invalid configuration")

// Paths contains all the filesystem paths used by the generator.
type Paths struct {
	// LayersDir holds one entry (image or directory) per layer
	LayersDir string `mapstructure:"layers_dir"`

	// MountsDir is where each layer gets mounted, one subdirectory per layer
	MountsDir string `mapstructure:"mounts_dir"`

	// RootfsDir is the mount point of the merged overlay
	RootfsDir string `mapstructure:"rootfs_dir"`

	// WritableDir is the overlay upperdir
	WritableDir string `mapstructure:"writable_dir"`

	// WorkDir is the overlay workdir, on the same filesystem as WritableDir
	WorkDir string `mapstructure:"work_dir"`
}

// DefaultPaths returns the build-time paths.
func DefaultPaths() Paths {
	return Paths{
		LayersDir:   DefaultLayersDir,
		MountsDir:   DefaultMountsDir,
		RootfsDir:   DefaultRootfsDir,
		WritableDir: DefaultWritableDir,
		WorkDir:     DefaultWorkDir,
	}
}

// LayerMountPoint returns where the layer called name is mounted.
func (p Paths) LayerMountPoint(name string) string {
	return filepath.Join(p.MountsDir, name)
}

// LayerSource returns the path of the layers directory entry called entry.
func (p Paths) LayerSource(entry string) string {
	return filepath.Join(p.LayersDir, entry)
}

// Validate checks that every path is set and absolute, and cleans them.
func (p *Paths) Validate() error {
	fields := []struct {
		key   string
		value *string
	}{
		{"layers_dir", &p.LayersDir},
		{"mounts_dir", &p.MountsDir},
		{"rootfs_dir", &p.RootfsDir},
		{"writable_dir", &p.WritableDir},
		{"work_dir", &p.WorkDir},
	}

	for _, field := range fields {
		if *field.value == "" {
			return fmt.Errorf("%w: %s is empty", ErrInvalidConfig, field.key)
		}
		if !filepath.IsAbs(*field.value) {
			return fmt.Errorf("%w: %s must be absolute, got %q", ErrInvalidConfig, field.key, *field.value)
		}
		*field.value = filepath.Clean(*field.value)
	}

	return nil
}
