// Package layers discovers overlay layers and orders them.
//
// Every entry of the layers directory becomes one Layer named after the
// entry with its extension stripped. Discovery never relies on the order
// the directory listing returns; all ordering comes from Order, which sorts
// the names exactly once and hands out two views of that one sequence:
// Forward for unit dependencies and Reversed for the overlay lowerdir stack.
package layers

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/danieljhkim/fex-rootfs-generator/internal/config"
	"github.com/danieljhkim/fex-rootfs-generator/internal/fsops"
)

// Layer is one read-only level of the overlay stack.
type Layer struct {
	// Name identifies the layer; the entry name without its extension
	Name string

	// Entry is the directory entry the layer came from
	Entry string

	// SourcePath is the absolute path of the entry
	SourcePath string
}

// Set maps layer names to layers.
type Set map[string]Layer

// Names returns the layer names in no particular order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	return names
}

// Stem strips the final extension from an entry name: "a.squashfs" is "a",
// "a.tar.gz" is "a.tar", "foo." is "foo". A single leading dot does not
// start an extension, so ".hidden" stays ".hidden".
func Stem(entry string) string {
	i := strings.LastIndexByte(entry, '.')
	if i <= 0 {
		return entry
	}
	return entry[:i]
}

// Discover lists layersDir and returns one Layer per entry. Entry names
// must be valid UTF-8 without control characters, since they end up on
// unit file lines. Entries sharing a name are resolved by policy after
// sorting by full entry name, so the outcome does not depend on listing
// order.
func Discover(fs fsops.FS, paths config.Paths, policy config.DuplicatePolicy, log logrus.FieldLogger) (Set, error) {
	entries, err := fs.ReadDir(paths.LayersDir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list %s: %w", ErrDiscovery, paths.LayersDir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !utf8.ValidString(name) || strings.ContainsFunc(name, unicode.IsControl) {
			return nil, fmt.Errorf("%w: %q in %s", ErrInvalidLayerName, name, paths.LayersDir)
		}
		names = append(names, name)
	}
	slices.Sort(names)

	set := make(Set, len(names))
	for _, entry := range names {
		layer := Layer{
			Name:       Stem(entry),
			Entry:      entry,
			SourcePath: paths.LayerSource(entry),
		}

		existing, dup := set[layer.Name]
		if !dup {
			log.WithField("layer", layer.Name).WithField("source", layer.SourcePath).Debug("discovered layer")
			set[layer.Name] = layer
			continue
		}

		switch policy {
		case config.DuplicateReject:
			return nil, fmt.Errorf("%w: %q and %q are both named %q", ErrDuplicateLayer, existing.Entry, entry, layer.Name)
		case config.DuplicateKeepFirst:
			log.WithFields(logrus.Fields{"layer": layer.Name, "kept": existing.Entry, "dropped": entry}).Warn("duplicate layer name")
		default:
			log.WithFields(logrus.Fields{"layer": layer.Name, "kept": entry, "dropped": existing.Entry}).Warn("duplicate layer name")
			set[layer.Name] = layer
		}
	}

	return set, nil
}
