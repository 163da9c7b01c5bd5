// Package unitname implements systemd's path escaping for unit names.
//
// The escaping matches unit_name_path_escape() from systemd byte for byte:
// mount units are looked up by this exact string, so any divergence would
// make BindsTo= and After= point at units that do not exist.
package unitname

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MountSuffix marks a unit as a mount unit.
	MountSuffix = ".mount"

	// MaxLength is systemd's UNIT_NAME_MAX minus the terminating NUL.
	MaxLength = 255

	hexDigits = "0123456789abcdef"
)

var (
	// ErrInvalidPath indicates a path that systemd refuses to escape.
	ErrInvalidPath = errors.New("invalid path")

	// ErrNameTooLong indicates a unit name longer than systemd accepts.
	ErrNameTooLong = errors.New("unit name too long")

	// ErrInvalidEscape indicates a malformed escape sequence in a unit name.
	ErrInvalidEscape = errors.New("invalid escape sequence")
)

// Simplify normalizes a path the way systemd's path_simplify() does:
// repeated slashes collapse, "." components are dropped and a trailing
// slash is removed. ".." components are kept.
func Simplify(path string) string {
	absolute := strings.HasPrefix(path, "/")

	parts := strings.Split(path, "/")
	kept := parts[:0]
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		kept = append(kept, part)
	}

	joined := strings.Join(kept, "/")
	if absolute {
		return "/" + joined
	}
	return joined
}

// PathEscape escapes a filesystem path into the string systemd uses as the
// unit name prefix, e.g. "/var/lib/fex-emu" becomes "var-lib-fex\x2demu".
// The root directory escapes to "-".
func PathEscape(path string) (string, error) {
	simplified := Simplify(path)
	trimmed := strings.TrimLeft(simplified, "/")
	if trimmed == "" {
		return "-", nil
	}

	for _, part := range strings.Split(trimmed, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q contains \"..\"", ErrInvalidPath, path)
		}
	}

	return escape(trimmed), nil
}

// Mount returns the name of the mount unit for path.
func Mount(path string) (string, error) {
	return WithSuffix(path, MountSuffix)
}

// WithSuffix returns the escaped path with suffix appended, checking the
// result against systemd's unit name length limit.
func WithSuffix(path, suffix string) (string, error) {
	escaped, err := PathEscape(path)
	if err != nil {
		return "", err
	}

	name := escaped + suffix
	if len(name) > MaxLength {
		return "", fmt.Errorf("%w: %d bytes for %q", ErrNameTooLong, len(name), path)
	}
	return name, nil
}

// PathUnescape reverses PathEscape. Any unit type suffix must already be
// stripped. The result is always absolute.
func PathUnescape(name string) (string, error) {
	if name == "-" {
		return "/", nil
	}

	var b strings.Builder
	b.WriteByte('/')

	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '-':
			b.WriteByte('/')
		case c == '\\':
			if i+3 >= len(name) {
				return "", fmt.Errorf("%w: truncated at offset %d in %q", ErrInvalidEscape, i, name)
			}
			if name[i+1] != 'x' {
				return "", fmt.Errorf("%w: %q at offset %d", ErrInvalidEscape, name[i:i+2], i)
			}
			hi := strings.IndexByte(hexDigits, lower(name[i+2]))
			lo := strings.IndexByte(hexDigits, lower(name[i+3]))
			if hi < 0 || lo < 0 {
				return "", fmt.Errorf("%w: %q at offset %d", ErrInvalidEscape, name[i:i+4], i)
			}
			b.WriteByte(byte(hi<<4 | lo))
			i += 3
		default:
			b.WriteByte(c)
		}
	}

	return b.String(), nil
}

func escape(path string) string {
	var b strings.Builder
	b.Grow(len(path))

	for i := 0; i < len(path); i++ {
		c := path[i]
		switch {
		case i == 0 && c == '.':
			// no hidden unit names for "/.dotdir" style mount points
			escapeByte(&b, c)
		case c == '/':
			b.WriteByte('-')
		case isSafe(c):
			b.WriteByte(c)
		default:
			escapeByte(&b, c)
		}
	}

	return b.String()
}

func escapeByte(b *strings.Builder, c byte) {
	b.WriteString(`\x`)
	b.WriteByte(hexDigits[c>>4])
	b.WriteByte(hexDigits[c&0xf])
}

func isSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == ':', c == '_', c == '.':
		return true
	}
	return false
}

func lower(c byte) byte {
	if 'A' <= c && c <= 'F' {
		return c + ('a' - 'A')
	}
	return c
}
