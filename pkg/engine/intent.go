package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// PlanOperation validates an Intent and maps it onto the Operation that
// will execute it. The mapping is deterministic: equal intents always
// yield the same operation (modulo the generated ID). Every reason for
// rejection is an invalid-request error naming the offending field.
func PlanOperation(intent Intent) (Operation, error) {
	op := Operation{
		ID: uuid.New().String(),
	}

	target := strings.TrimSpace(intent.Target)

	switch intent.Action {
	case ActionUpdate:
		if target != "" {
			return Operation{}, NewInvalidRequestError(
				"update applies the whole configuration and does not take a target").
				WithDetail(fmt.Sprintf("target: %q", target)).
				WithRemediation("to add a single package, use install instead")
		}
		op.Kind = OpUpdate
		op.DryRun = intent.DryRun

	case ActionRollback:
		op.Kind = OpRollback
		if target != "" {
			// An explicit generation number is accepted; a package
			// name here means the intent was misrecognized.
			gen, err := strconv.Atoi(target)
			if err != nil || gen <= 0 {
				return Operation{}, NewInvalidRequestError(
					"rollback targets a generation number, not a package").
					WithDetail(fmt.Sprintf("target: %q", target)).
					WithRemediation("to undo a package change, roll back without a target or edit the configuration")
			}
			op.TargetGeneration = gen
		}

	case ActionListGenerations:
		if target != "" {
			return Operation{}, NewInvalidRequestError(
				"listing generations does not take a target").
				WithDetail(fmt.Sprintf("target: %q", target))
		}
		op.Kind = OpListGenerations

	case ActionInstall:
		if target == "" {
			return Operation{}, NewInvalidRequestError(
				"install needs a package name").
				WithRemediation("say which package to install")
		}
		if err := validatePackageName(target); err != nil {
			return Operation{}, err
		}
		op.Kind = OpInstall
		op.Package = target

	case ActionRemove:
		if target == "" {
			return Operation{}, NewInvalidRequestError(
				"remove needs a package name").
				WithRemediation("say which package to remove")
		}
		if err := validatePackageName(target); err != nil {
			return Operation{}, err
		}
		op.Kind = OpRemove
		op.Package = target

	case ActionSwitchGeneration:
		gen, err := strconv.Atoi(target)
		if err != nil || gen <= 0 {
			return Operation{}, NewInvalidRequestError(
				"switching generations needs a positive generation number").
				WithDetail(fmt.Sprintf("target: %q", target)).
				WithRemediation("list generations first to find the number you want")
		}
		op.Kind = OpSwitchGeneration
		op.TargetGeneration = gen

	case ActionSearch:
		return Operation{}, NewInvalidRequestError(
			"package search is handled by the search tooling, not the execution engine").
			WithRemediation("use 'nix search nixpkgs <name>' to find packages")

	default:
		return Operation{}, NewInvalidRequestError(
			fmt.Sprintf("unrecognized action %q", intent.Action))
	}

	return op, nil
}

// validatePackageName rejects names that cannot be a package attribute.
// Package names travel into config snippets and argv elements, so they
// must be a single bare token.
func validatePackageName(name string) error {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == '+':
		default:
			return NewInvalidRequestError(
				"package names may only contain letters, digits, and -_.+").
				WithDetail(fmt.Sprintf("package: %q", name))
		}
	}
	return nil
}
