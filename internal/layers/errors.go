package layers

import "errors"

var (
	// ErrDiscovery indicates the layers directory could not be listed.
	ErrDiscovery = errors.New("layer discovery failed")

	// ErrInvalidLayerName indicates an entry name that is not valid UTF-8
	// or contains control characters.
	ErrInvalidLayerName = errors.New("invalid layer name")

	// ErrDuplicateLayer indicates two entries map to the same layer name.
	ErrDuplicateLayer = errors.New("duplicate layer name")
)
