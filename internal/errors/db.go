package errors

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Regular expressions for parsing PgError.Detail messages.
var (
	// reKeyField extracts field name from unique violation detail: "Key (field)=(value) already exists.".
	reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)
	// reNotPresent detects missing parent: "... is not present in table ...".
	reNotPresent = regexp.MustCompile(`is not present in table "?([^"]+)"?`)
)

// paymentsUniqueConstraint guards the webhook idempotency key.
const paymentsUniqueConstraint = "payments_payment_id_key"

// MapDBError maps database errors to AppError instances:
//   - pgx.ErrNoRows, sql.ErrNoRows → NotFound
//   - unique violation on payments.payment_id → DuplicatePayment
//   - other unique violations → Conflict
//   - foreign key violations → ForeignKey
//   - check and NOT NULL violations → Validation
//   - malformed keys (invalid text representation) → NotFound
//   - context timeouts/cancellations → Timeout/Canceled
//
// Errors that are already AppErrors, or not recognized, are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{Code: ErrCodeTimeout, Message: "database operation timed out", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &AppError{Code: ErrCodeCanceled, Message: "database operation canceled", Cause: err}
	}

	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return &AppError{Code: ErrCodeNotFound, Message: "record not found", Cause: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}

	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return mapUniqueViolation(pgErr)
	case pgerrcode.ForeignKeyViolation:
		return mapForeignKeyViolation(pgErr)
	case pgerrcode.InvalidTextRepresentation:
		// A malformed key (a non-uuid id) identifies no record.
		return &AppError{Code: ErrCodeNotFound, Message: "record not found", Cause: pgErr}
	case pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
		return &AppError{
			Code:    ErrCodeValidation,
			Message: "invalid value",
			Field:   pgErr.ColumnName,
			Cause:   pgErr,
		}
	default:
		return &AppError{Code: ErrCodeInternal, Message: "database error", Cause: pgErr}
	}
}

func mapUniqueViolation(pgErr *pgconn.PgError) error {
	field := uniqueField(pgErr)
	if pgErr.ConstraintName == paymentsUniqueConstraint || (pgErr.TableName == "payments" && field == "payment_id") {
		return &AppError{
			Code:    ErrCodeDuplicatePayment,
			Message: "payment already processed",
			Field:   "payment_id",
			Cause:   pgErr,
		}
	}
	return &AppError{
		Code:    ErrCodeConflict,
		Message: "value already exists",
		Field:   field,
		Cause:   pgErr,
	}
}

// uniqueField prefers column metadata, then the Detail text, then the constraint name.
func uniqueField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return m[1]
	}
	return inferFieldFromConstraint(pgErr.TableName, pgErr.ConstraintName)
}

func mapForeignKeyViolation(pgErr *pgconn.PgError) error {
	table := pgErr.TableName
	if m := reNotPresent.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		table = m[1]
	}
	message := "referenced record does not exist"
	if name := tableLabel(table); name != "" {
		message = "referenced " + name + " does not exist"
	}
	return &AppError{Code: ErrCodeForeignKey, Message: message, Cause: pgErr}
}

// inferFieldFromConstraint strips the table prefix and "_key" suffix that
// postgres uses for generated unique constraint names.
func inferFieldFromConstraint(table, constraint string) string {
	if constraint == "" {
		return ""
	}
	name := strings.TrimSuffix(constraint, "_key")
	if table != "" {
		name = strings.TrimPrefix(name, table+"_")
	}
	if name == constraint || strings.Contains(name, "_") && table == "" {
		return ""
	}
	return name
}

func tableLabel(table string) string {
	switch strings.ToLower(strings.TrimSpace(table)) {
	case "organizations":
		return "organization"
	case "analysis":
		return "analysis"
	case "payments":
		return "payment"
	case "esg_analysis_results":
		return "analysis result"
	case "jobs":
		return "job"
	case "":
		return ""
	default:
		return strings.ReplaceAll(table, "_", " ")
	}
}
