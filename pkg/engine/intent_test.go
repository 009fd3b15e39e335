package engine

import (
	"errors"
	"testing"
)

func TestPlanOperation(t *testing.T) {
	tests := []struct {
		name     string
		intent   Intent
		wantKind OperationKind
		wantErr  ErrorKind
	}{
		{
			name:     "update",
			intent:   Intent{Action: ActionUpdate},
			wantKind: OpUpdate,
		},
		{
			name:    "update with target rejected",
			intent:  Intent{Action: ActionUpdate, Target: "firefox"},
			wantErr: ErrKindInvalidRequest,
		},
		{
			name:     "rollback without target",
			intent:   Intent{Action: ActionRollback},
			wantKind: OpRollback,
		},
		{
			name:     "rollback to explicit generation",
			intent:   Intent{Action: ActionRollback, Target: "42"},
			wantKind: OpRollback,
		},
		{
			name:    "rollback with package target rejected",
			intent:  Intent{Action: ActionRollback, Target: "firefox"},
			wantErr: ErrKindInvalidRequest,
		},
		{
			name:     "list generations",
			intent:   Intent{Action: ActionListGenerations},
			wantKind: OpListGenerations,
		},
		{
			name:     "install",
			intent:   Intent{Action: ActionInstall, Target: "htop"},
			wantKind: OpInstall,
		},
		{
			name:    "install without target rejected",
			intent:  Intent{Action: ActionInstall},
			wantErr: ErrKindInvalidRequest,
		},
		{
			name:    "install with shell metacharacters rejected",
			intent:  Intent{Action: ActionInstall, Target: "htop; rm -rf /"},
			wantErr: ErrKindInvalidRequest,
		},
		{
			name:     "remove",
			intent:   Intent{Action: ActionRemove, Target: "htop"},
			wantKind: OpRemove,
		},
		{
			name:     "switch generation",
			intent:   Intent{Action: ActionSwitchGeneration, Target: "7"},
			wantKind: OpSwitchGeneration,
		},
		{
			name:    "switch generation non-numeric rejected",
			intent:  Intent{Action: ActionSwitchGeneration, Target: "latest"},
			wantErr: ErrKindInvalidRequest,
		},
		{
			name:    "switch generation zero rejected",
			intent:  Intent{Action: ActionSwitchGeneration, Target: "0"},
			wantErr: ErrKindInvalidRequest,
		},
		{
			name:    "search is out of scope",
			intent:  Intent{Action: ActionSearch, Target: "editor"},
			wantErr: ErrKindInvalidRequest,
		},
		{
			name:    "unknown action rejected",
			intent:  Intent{Action: "reticulate"},
			wantErr: ErrKindInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := PlanOperation(tt.intent)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected %s error, got operation %+v", tt.wantErr, op)
				}
				if got := KindOf(err); got != tt.wantErr {
					t.Errorf("error kind = %s, want %s", got, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if op.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", op.Kind, tt.wantKind)
			}
			if op.ID == "" {
				t.Error("operation ID should be set")
			}
		})
	}
}

func TestPlanOperationDeterministic(t *testing.T) {
	intent := Intent{Action: ActionSwitchGeneration, Target: " 15 "}
	a, err := PlanOperation(intent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := PlanOperation(intent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != b.Kind || a.TargetGeneration != b.TargetGeneration {
		t.Errorf("same intent mapped differently: %+v vs %+v", a, b)
	}
	if a.TargetGeneration != 15 {
		t.Errorf("target generation = %d, want 15", a.TargetGeneration)
	}
}

func TestPlanOperationRollbackTarget(t *testing.T) {
	op, err := PlanOperation(Intent{Action: ActionRollback, Target: "42"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.TargetGeneration != 42 {
		t.Errorf("target generation = %d, want 42", op.TargetGeneration)
	}
}

func TestMutatingKinds(t *testing.T) {
	mutating := []OperationKind{OpUpdate, OpRollback, OpSwitchGeneration}
	for _, k := range mutating {
		if !k.Mutating() {
			t.Errorf("%s should be mutating", k)
		}
	}
	readOnly := []OperationKind{OpListGenerations, OpInstall, OpRemove}
	for _, k := range readOnly {
		if k.Mutating() {
			t.Errorf("%s should not be mutating", k)
		}
	}
}

func TestOpErrorIs(t *testing.T) {
	err := NewBusyError()
	if !errors.Is(err, &OpError{Kind: ErrKindBusy}) {
		t.Error("errors.Is should match on kind")
	}
	if errors.Is(err, &OpError{Kind: ErrKindTimeout}) {
		t.Error("errors.Is should not match a different kind")
	}
}
