package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			want: ErrKindTimeout,
		},
		{
			name: "wrapped deadline exceeded",
			err:  fmt.Errorf("running command: %w", context.DeadlineExceeded),
			want: ErrKindTimeout,
		},
		{
			name: "os permission error",
			err:  fmt.Errorf("open profile: %w", os.ErrPermission),
			want: ErrKindPermissionRequired,
		},
		{
			name: "permission denied in text",
			err:  errors.New("error: opening lock file: permission denied"),
			want: ErrKindPermissionRequired,
		},
		{
			name: "must be run as root",
			err:  errors.New("switch-to-configuration must be run as root"),
			want: ErrKindPermissionRequired,
		},
		{
			name: "disk full",
			err:  errors.New("writing to store: no space left on device"),
			want: ErrKindBuildFailure,
		},
		{
			name: "download failure",
			err:  errors.New("unable to download 'https://cache.example.org/nar': timed out"),
			want: ErrKindBuildFailure,
		},
		{
			name: "undefined variable",
			err:  errors.New("error: undefined variable 'fierfox'"),
			want: ErrKindNotFound,
		},
		{
			name: "missing path",
			err:  errors.New("path '/etc/nixos/configuration.nix' does not exist"),
			want: ErrKindNotFound,
		},
		{
			name: "syntax error",
			err:  errors.New("error: syntax error, unexpected ';'"),
			want: ErrKindBuildFailure,
		},
		{
			name: "evaluation aborted",
			err:  errors.New("error: evaluation aborted with the following error message"),
			want: ErrKindBuildFailure,
		},
		{
			name: "unclassifiable",
			err:  errors.New("something odd happened"),
			want: ErrKindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Translate(tt.err)
			if got.Kind != tt.want {
				t.Errorf("Translate(%v) kind = %s, want %s", tt.err, got.Kind, tt.want)
			}
			if got.Message == "" {
				t.Error("translated error should carry a message")
			}
		})
	}
}

func TestTranslateNil(t *testing.T) {
	if got := Translate(nil); got != nil {
		t.Errorf("Translate(nil) = %v, want nil", got)
	}
}

func TestTranslatePassthrough(t *testing.T) {
	orig := NewBusyError()
	got := Translate(fmt.Errorf("dispatch: %w", orig))
	if got != orig {
		t.Errorf("already-classified error should pass through unchanged")
	}
}

func TestTranslateDiskFullRemediation(t *testing.T) {
	got := Translate(errors.New("no space left on device"))
	if got.Remediation == "" {
		t.Error("disk-full error should carry a remediation hint")
	}
}

func TestTimeoutCarriesPartialOutput(t *testing.T) {
	err := NewTimeoutError("building '/nix/store/abc-system'...\ncopying 12 paths...", context.DeadlineExceeded)
	info := err.ToErrorInfo()
	if info.Kind != ErrKindTimeout {
		t.Errorf("kind = %s, want %s", info.Kind, ErrKindTimeout)
	}
	if info.Detail == "" {
		t.Error("timeout detail should carry the partial output")
	}
}
