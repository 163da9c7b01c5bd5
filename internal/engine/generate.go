package engine

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/danieljhkim/fex-rootfs-generator/internal/planner"
)

// Algorithm steps:
// 1. Discover layers (fatal on listing errors or undecodable names)
// 2. Build the plan: one sort drives both dependencies and lowerdir
// 3. Return the plan untouched if DryRun
// 4. Execute operations in order; the first failing required operation
//    aborts the run, failing optional ones are logged and skipped
// 5. Return result
func (e *Engine) Generate(req *GenerateRequest) (*GenerateResult, error) {
	if req.OutputDir == "" {
		return nil, ErrNoOutputDir
	}

	e.log.WithFields(logrus.Fields{
		"normal": req.OutputDir,
		"early":  req.EarlyDir,
		"late":   req.LateDir,
	}).Debug("generator invoked")

	set, err := e.Discover()
	if err != nil {
		return nil, err
	}

	plan, err := planner.BuildPlan(set, e.config.Paths, req.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to build plan: %w", err)
	}

	e.log.WithFields(logrus.Fields{
		"layers":   plan.Layers,
		"lowerdir": plan.Stack.LowerDirs,
	}).Debug("planned root overlay")

	result := &GenerateResult{
		Plan:    plan,
		Applied: []planner.Operation{},
		Skipped: []planner.Operation{},
	}

	if req.DryRun {
		return result, nil
	}

	for _, op := range plan.Operations {
		if err := e.executeOperation(op); err != nil {
			if op.Optional {
				if errors.Is(err, ErrAlreadyRegistered) {
					e.log.WithField("path", op.Path).Debug("unit already registered")
				} else {
					e.log.WithError(err).WithField("path", op.Path).Debug("ignoring registration failure")
				}
				result.Skipped = append(result.Skipped, op)
				continue
			}
			return result, err
		}
		e.log.WithField("path", op.Path).Debug(op.Type)
		result.Applied = append(result.Applied, op)
	}

	e.log.WithFields(logrus.Fields{
		"units": len(plan.Units()),
		"root":  plan.RootUnit,
	}).Debug("generated FEX rootfs units")

	return result, nil
}
