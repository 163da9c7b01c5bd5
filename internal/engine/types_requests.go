package engine

// GenerateRequest represents one generator invocation.
type GenerateRequest struct {
	// OutputDir is the "normal" generator directory units are written to
	OutputDir string

	// EarlyDir and LateDir are accepted for systemd.generator(7)
	// compatibility and not written to
	EarlyDir string
	LateDir  string

	// DryRun performs planning only without making changes
	DryRun bool
}
