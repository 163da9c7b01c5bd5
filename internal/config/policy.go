package config

import (
	"fmt"
	"strings"
)

// DuplicatePolicy decides what happens when two layer entries share a name
// once their extension is stripped, e.g. "base.squashfs" and "base.img".
type DuplicatePolicy string

// Duplicate policy values
const (
	// DuplicateReject fails the run.
	DuplicateReject DuplicatePolicy = "reject"

	// DuplicateKeepFirst keeps the entry that sorts first by full entry name.
	DuplicateKeepFirst DuplicatePolicy = "keep-first"

	// DuplicateKeepLast keeps the entry that sorts last by full entry name.
	DuplicateKeepLast DuplicatePolicy = "keep-last"

	// DefaultDuplicatePolicy replaces earlier entries with later ones.
	DefaultDuplicatePolicy = DuplicateKeepLast
)

// DuplicatePolicies lists every accepted policy.
var DuplicatePolicies = []DuplicatePolicy{DuplicateReject, DuplicateKeepFirst, DuplicateKeepLast}

// ParseDuplicatePolicy parses a policy name, case-insensitively.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	candidate := DuplicatePolicy(strings.ToLower(strings.TrimSpace(s)))
	for _, policy := range DuplicatePolicies {
		if candidate == policy {
			return policy, nil
		}
	}
	return "", fmt.Errorf("%w: unknown duplicate policy %q (want one of %s)", ErrInvalidConfig, s, joinPolicies())
}

// String implements pflag.Value.
func (p *DuplicatePolicy) String() string {
	if p == nil || *p == "" {
		return string(DefaultDuplicatePolicy)
	}
	return string(*p)
}

// Set implements pflag.Value.
func (p *DuplicatePolicy) Set(s string) error {
	policy, err := ParseDuplicatePolicy(s)
	if err != nil {
		return err
	}
	*p = policy
	return nil
}

// Type implements pflag.Value.
func (p *DuplicatePolicy) Type() string {
	return "policy"
}

// UnmarshalText lets config files and environment variables carry a policy.
func (p *DuplicatePolicy) UnmarshalText(text []byte) error {
	return p.Set(string(text))
}

func joinPolicies() string {
	names := make([]string, 0, len(DuplicatePolicies))
	for _, policy := range DuplicatePolicies {
		names = append(names, string(policy))
	}
	return strings.Join(names, ", ")
}
