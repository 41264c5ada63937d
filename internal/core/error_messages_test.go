package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"wrapped invalid argument", invalidArgf("panel id %q", "x"), "VAL001"},
		{"empty export before invalid argument", fmt.Errorf("export: %w", ErrEmptyExport), "VAL002"},
		{"transaction error", &TransactionError{Op: "delete batch", Err: errors.New("boom")}, "DB002"},
		{"connection sentinel", fmt.Errorf("%w: dial", ErrConnection), "DB001"},
		{"too many jobs", ErrTooManyJobs, "JOB001"},
		{"job not found", fmt.Errorf("job abc: %w", ErrNotFound), "JOB002"},
		{"deadline", context.DeadlineExceeded, "DB003"},
		{"connection refused text", errors.New("dial tcp 127.0.0.1:5432: connection refused"), "DB001"},
		{"permission text", errors.New("ERROR: permission denied to create database"), "DB005"},
		{"unknown", errors.New("something odd"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
		})
	}
}

func TestTransactionError_WrapsCause(t *testing.T) {
	cause := errors.New("commit failed")
	err := fmt.Errorf("import: %w", &TransactionError{Op: "import", Err: cause})

	if !errors.Is(err, ErrTransaction) {
		t.Error("errors.Is(err, ErrTransaction) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}

	var txErr *TransactionError
	if !errors.As(err, &txErr) || txErr.Op != "import" {
		t.Errorf("errors.As did not recover the op, got %+v", txErr)
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}

	got := FormatUserError(ErrTooManyJobs)
	want := "Too many background jobs are running (Code: JOB001). Please wait a moment and try again"
	if got != want {
		t.Errorf("FormatUserError = %q, want %q", got, want)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil should not be user facing")
	}
	if IsUserFacing(errors.New("weird")) {
		t.Error("unmatched error should not be user facing")
	}
	if !IsUserFacing(ErrInvalidArgument) {
		t.Error("ErrInvalidArgument should be user facing")
	}
}
