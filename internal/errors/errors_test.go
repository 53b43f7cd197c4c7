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
			name: "error without cause",
			err:  &AppError{Code: ErrCodeNotFound, Message: "analysis not found"},
			want: "analysis not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeInternal,
				Message: "persist result",
				Cause:   errors.New("connection reset"),
			},
			want: "persist result: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(cause, ErrCodeInternal, "wrapped error")

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(Wrap(cause)) = false, want true")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantCode ErrorCode
		wantMsg  string
	}{
		{"not found", NotFound("missing"), ErrCodeNotFound, "missing"},
		{"not found formatted", NotFoundf("organization %s not found", "org_A"), ErrCodeNotFound, "organization org_A not found"},
		{"conflict", Conflictf("analysis %s already processing", "a1"), ErrCodeConflict, "analysis a1 already processing"},
		{"unauthorized", Unauthorized("invalid signature"), ErrCodeUnauthorized, "invalid signature"},
		{"duplicate payment", DuplicatePayment("pay_123"), ErrCodeDuplicatePayment, "payment pay_123 already processed"},
		{"validation", Validation("bad"), ErrCodeValidation, "bad"},
		{"percent without args is literal", Internal("100% broken"), ErrCodeInternal, "100% broken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("code = %v, want %v", tt.err.Code, tt.wantCode)
			}
			if tt.err.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", tt.err.Message, tt.wantMsg)
			}
		})
	}
}

func TestWrap_NilError(t *testing.T) {
	if err := Wrap(nil, ErrCodeInternal, "msg"); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
	if err := Wrapf(nil, ErrCodeInternal, "msg %d", 1); err != nil {
		t.Errorf("Wrapf(nil) = %v, want nil", err)
	}
}

func TestPredicates_ThroughWrapping(t *testing.T) {
	base := DuplicatePayment("pay_1")
	wrapped := fmt.Errorf("handle webhook: %w", base)

	if !IsDuplicatePayment(wrapped) {
		t.Error("IsDuplicatePayment should see through fmt wrapping")
	}
	if IsNotFound(wrapped) {
		t.Error("IsNotFound should be false for a duplicate payment")
	}
	if GetField(wrapped) != "payment_id" {
		t.Errorf("GetField() = %q, want payment_id", GetField(wrapped))
	}
	if GetCode(errors.New("plain")) != "" {
		t.Error("GetCode of a plain error should be empty")
	}

	ext := External(errors.New("boom"), "analysis service")
	if !IsExternal(ext) {
		t.Error("IsExternal should match External()")
	}
	if !IsUnauthorized(fmt.Errorf("x: %w", Unauthorized("sig"))) {
		t.Error("IsUnauthorized should see through wrapping")
	}
}
