package layers

import "slices"

// Ordering is the single canonical order of a layer set.
//
// Linux overlayfs gives the first lowerdir the highest precedence, so the
// overlay stack uses Reversed: layers that sort later override earlier ones.
type Ordering struct {
	names []string
}

// Order sorts the names of set in ascending byte order.
func Order(set Set) Ordering {
	names := set.Names()
	slices.Sort(names)
	return Ordering{names: names}
}

// Len returns the number of layers.
func (o Ordering) Len() int {
	return len(o.names)
}

// Forward returns the names in ascending order.
func (o Ordering) Forward() []string {
	return slices.Clone(o.names)
}

// Reversed returns the names in descending order.
func (o Ordering) Reversed() []string {
	reversed := slices.Clone(o.names)
	slices.Reverse(reversed)
	return reversed
}
