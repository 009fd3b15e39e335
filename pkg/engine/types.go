package engine

import (
	"time"

	"github.com/luminix/luminix/pkg/generations"
)

// Action is the user-level intent category produced by the front end.
type Action string

const (
	// ActionUpdate rebuilds the system from the current configuration and
	// activates the result.
	ActionUpdate Action = "update"

	// ActionRollback switches the system back to an earlier generation.
	ActionRollback Action = "rollback"

	// ActionListGenerations enumerates the system profile's generations.
	ActionListGenerations Action = "list_generations"

	// ActionInstall asks how to add a package to the configuration.
	ActionInstall Action = "install"

	// ActionRemove asks how to remove a package from the configuration.
	ActionRemove Action = "remove"

	// ActionSwitchGeneration activates a specific generation by number.
	ActionSwitchGeneration Action = "switch_generation"

	// ActionSearch is recognized but out of scope; validation rejects it
	// with guidance toward the search tooling.
	ActionSearch Action = "search"
)

// Intent is the structured request handed to the engine by the front end.
// It carries what the user asked for, not how to do it.
type Intent struct {
	// Action is the intent category.
	Action Action `json:"action"`

	// Target is the action's object: a package name for install/remove,
	// a generation number for switch_generation. Empty when the action
	// takes no object.
	Target string `json:"target,omitempty"`

	// DryRun requests a build without activation. Only meaningful for
	// update.
	DryRun bool `json:"dry_run,omitempty"`
}

// OperationKind identifies a validated, executable operation.
type OperationKind string

const (
	// OpUpdate builds the system configuration and activates it.
	OpUpdate OperationKind = "update"

	// OpRollback activates the generation preceding the current one.
	OpRollback OperationKind = "rollback"

	// OpListGenerations reads the system profile's generation list.
	OpListGenerations OperationKind = "list_generations"

	// OpInstall produces configuration-edit instructions for adding a
	// package. It never mutates the system.
	OpInstall OperationKind = "install"

	// OpRemove produces configuration-edit instructions for removing a
	// package. It never mutates the system.
	OpRemove OperationKind = "remove"

	// OpSwitchGeneration activates a specific generation by number.
	OpSwitchGeneration OperationKind = "switch_generation"
)

// Mutating reports whether the operation changes system state. Mutating
// operations hold the single-operation lock for their full duration.
func (k OperationKind) Mutating() bool {
	switch k {
	case OpUpdate, OpRollback, OpSwitchGeneration:
		return true
	}
	return false
}

// Operation is a validated Intent, ready for an executor. Construction
// goes through PlanOperation; executors never see raw Intents.
type Operation struct {
	// ID uniquely identifies this operation instance.
	ID string `json:"id"`

	// Kind is the operation to perform.
	Kind OperationKind `json:"kind"`

	// Package is the package name for install and remove.
	Package string `json:"package,omitempty"`

	// TargetGeneration is the generation number for switch_generation,
	// or an optional explicit target for rollback. Zero means unset.
	TargetGeneration int `json:"target_generation,omitempty"`

	// DryRun builds without activating. Only honored for update.
	DryRun bool `json:"dry_run,omitempty"`
}

// ErrorInfo is the result-facing view of a classified failure.
type ErrorInfo struct {
	// Kind is the taxonomy classification.
	Kind ErrorKind `json:"kind"`

	// Message is the user-facing summary.
	Message string `json:"message"`

	// Detail carries technical context such as raw tool output.
	Detail string `json:"detail,omitempty"`

	// Remediation is a suggested next step, when one is known.
	Remediation string `json:"remediation,omitempty"`
}

// ExecutionResult is the single outcome type every operation produces,
// success or failure.
type ExecutionResult struct {
	// OperationID echoes the operation this result belongs to.
	OperationID string `json:"operation_id"`

	// Kind echoes the operation kind.
	Kind OperationKind `json:"kind"`

	// Success reports whether the operation completed.
	Success bool `json:"success"`

	// Executor names the path that ran the operation ("native" or
	// "fallback").
	Executor string `json:"executor,omitempty"`

	// Message is the user-facing summary of what happened.
	Message string `json:"message"`

	// Generations carries the generation list for list_generations.
	Generations []generations.Generation `json:"generations,omitempty"`

	// Data carries operation-specific payloads, such as config-edit
	// instructions for install and remove.
	Data map[string]any `json:"data,omitempty"`

	// Error is the classified failure when Success is false.
	Error *ErrorInfo `json:"error,omitempty"`

	// Duration is how long execution took.
	Duration time.Duration `json:"duration_ms"`

	// StartedAt is when execution began.
	StartedAt time.Time `json:"started_at"`
}

// Capabilities describes what the engine can do in this environment.
type Capabilities struct {
	// NativeAvailable reports whether the native system API was found.
	NativeAvailable bool `json:"native_available"`

	// NativePath is where the native API was discovered, when available.
	NativePath string `json:"native_path,omitempty"`

	// NativeKinds lists the operation kinds the native executor handles.
	NativeKinds []OperationKind `json:"native_kinds,omitempty"`

	// FallbackKinds lists the operation kinds the fallback executor
	// handles.
	FallbackKinds []OperationKind `json:"fallback_kinds,omitempty"`
}
