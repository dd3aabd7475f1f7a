package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  New(CodeInvalidOrder, "quantity must be positive"),
			want: "INVALID_ORDER: quantity must be positive",
		},
		{
			name: "with wrapped error",
			err:  Wrap(fmt.Errorf("conn reset"), CodeBOMWriteFailed, "insert bom batch"),
			want: "BOM_WRITE_FAILED: insert bom batch: conn reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap(inner, "CODE", "msg")

	if !errors.Is(appErr, inner) {
		t.Error("errors.Is should match inner error")
	}
}

func TestIsAppError(t *testing.T) {
	wrapped := fmt.Errorf("resolve order 4: %w", ErrOrderNotFound(4, nil))

	got, ok := IsAppError(wrapped)
	if !ok {
		t.Fatal("IsAppError should return true for wrapped AppError")
	}
	if got.Code != CodeOrderNotFound {
		t.Errorf("Code = %q, want %s", got.Code, CodeOrderNotFound)
	}
	if got.Params["order_id"] != int64(4) {
		t.Errorf("Params[order_id] = %v, want 4", got.Params["order_id"])
	}
}

func TestSentinelsSurviveConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		code   string
	}{
		{"order not found", ErrOrderNotFound(1, fmt.Errorf("no rows")), ErrNotFound, CodeOrderNotFound},
		{"bom entry not found", ErrBOMEntryNotFound(2, nil), ErrNotFound, CodeBOMEntryNotFound},
		{"transformation not found", ErrTransformationNotFound(3, nil), ErrNotFound, CodeTransformationNotFound},
		{"invalid payload", ErrInvalidPayloadf("new_bom_entry", ",,"), ErrInvalidPayload, CodeInvalidPayload},
		{"empty chain", ErrEmptyChainf(1, 9), ErrEmptyChain, CodeEmptyChain},
		{"cyclic recipe", ErrCyclicRecipef(9), ErrCyclicRecipe, CodeCyclicRecipe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !Is(tt.err, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.target)
			}
			if got := Code(tt.err); got != tt.code {
				t.Errorf("Code() = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestCode(t *testing.T) {
	if got := Code(nil); got != "" {
		t.Errorf("Code(nil) = %q, want empty", got)
	}
	if got := Code(fmt.Errorf("plain")); got != CodeInternal {
		t.Errorf("Code(plain) = %q, want %s", got, CodeInternal)
	}
}
