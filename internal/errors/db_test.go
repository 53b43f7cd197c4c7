package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDBError_NilError(t *testing.T) {
	if err := MapDBError(nil); err != nil {
		t.Errorf("MapDBError(nil) = %v, want nil", err)
	}
}

func TestMapDBError_ContextErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{name: "deadline exceeded", err: context.DeadlineExceeded, wantCode: ErrCodeTimeout},
		{name: "canceled", err: fmt.Errorf("query: %w", context.Canceled), wantCode: ErrCodeCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(MapDBError(tt.err)); got != tt.wantCode {
				t.Errorf("MapDBError() code = %v, want %v", got, tt.wantCode)
			}
		})
	}
}

func TestMapDBError_NoRows(t *testing.T) {
	err := MapDBError(fmt.Errorf("get analysis: %w", pgx.ErrNoRows))
	if !IsNotFound(err) {
		t.Errorf("MapDBError(pgx.ErrNoRows) should be NotFound, got %v", GetCode(err))
	}
}

func TestMapDBError_PreservesAppError(t *testing.T) {
	orig := NotFoundf("organization %s not found", "org_A")
	if got := MapDBError(orig); got != orig {
		t.Errorf("MapDBError() should return an AppError unchanged, got %v", got)
	}
}

func TestMapDBError_UniqueViolation(t *testing.T) {
	tests := []struct {
		name      string
		pgErr     *pgconn.PgError
		wantCode  ErrorCode
		wantField string
	}{
		{
			name: "payment id is a duplicate payment",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				TableName:      "payments",
				ConstraintName: "payments_payment_id_key",
				Detail:         `Key (payment_id)=(pay_123) already exists.`,
			},
			wantCode:  ErrCodeDuplicatePayment,
			wantField: "payment_id",
		},
		{
			name: "column name wins",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "organizations_email_key",
				ColumnName:     "email",
			},
			wantCode:  ErrCodeConflict,
			wantField: "email",
		},
		{
			name: "multi-column detail",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "t_a_b_key",
				Detail:         `Key (a, b)=(1, 2) already exists.`,
			},
			wantCode:  ErrCodeConflict,
			wantField: "a, b",
		},
		{
			name: "inferred from constraint with table",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				TableName:      "organizations",
				ConstraintName: "organizations_document_key",
			},
			wantCode:  ErrCodeConflict,
			wantField: "document",
		},
		{
			name: "ambiguous constraint without table",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "table_field1_field2_key",
			},
			wantCode:  ErrCodeConflict,
			wantField: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			if got := GetCode(err); got != tt.wantCode {
				t.Errorf("MapDBError() code = %v, want %v", got, tt.wantCode)
			}
			if field := GetField(err); field != tt.wantField {
				t.Errorf("MapDBError() field = %q, want %q", field, tt.wantField)
			}
			var pgErr *pgconn.PgError
			if !errors.As(err, &pgErr) {
				t.Error("mapped error should keep the pg error as cause")
			}
		})
	}
}

func TestMapDBError_ForeignKeyViolation(t *testing.T) {
	err := MapDBError(&pgconn.PgError{
		Code:   pgerrcode.ForeignKeyViolation,
		Detail: `Key (organization_id)=(x) is not present in table "organizations".`,
	})
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Code != ErrCodeForeignKey {
		t.Fatalf("expected foreign key error, got %v", err)
	}
	if appErr.Message != "referenced organization does not exist" {
		t.Errorf("unexpected message %q", appErr.Message)
	}
}

func TestMapDBError_ValidationViolations(t *testing.T) {
	for _, code := range []string{pgerrcode.CheckViolation, pgerrcode.NotNullViolation} {
		t.Run(code, func(t *testing.T) {
			err := MapDBError(&pgconn.PgError{Code: code, ColumnName: "status"})
			if !IsValidation(err) {
				t.Errorf("expected validation, got %v", GetCode(err))
			}
			if GetField(err) != "status" {
				t.Errorf("expected field status, got %q", GetField(err))
			}
		})
	}
}

func TestMapDBError_MalformedKeyIsNotFound(t *testing.T) {
	err := MapDBError(&pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation, Message: `invalid input syntax for type uuid: "org-1"`})
	if !IsNotFound(err) {
		t.Errorf("expected not found, got %v", GetCode(err))
	}
}

func TestMapDBError_UnknownPgErrorIsInternal(t *testing.T) {
	err := MapDBError(&pgconn.PgError{Code: pgerrcode.DeadlockDetected})
	if GetCode(err) != ErrCodeInternal {
		t.Errorf("expected internal, got %v", GetCode(err))
	}
}

func TestMapDBError_StandardError(t *testing.T) {
	orig := errors.New("plain")
	if got := MapDBError(orig); !errors.Is(got, orig) || GetCode(got) != "" {
		t.Errorf("MapDBError() should return unrecognized errors unchanged, got %v", got)
	}
}

func TestTableLabel(t *testing.T) {
	tests := map[string]string{
		"organizations":        "organization",
		"esg_analysis_results": "analysis result",
		"some_table":           "some table",
		"":                     "",
	}
	for in, want := range tests {
		if got := tableLabel(in); got != want {
			t.Errorf("tableLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
