package shared

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrValidation indicates malformed input or an entry shape that does not fit the transaction type.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates an unknown transaction, location, item, vendor or property.
	ErrNotFound = errors.New("not found")
	// ErrAuthorization indicates a role or property-scope failure.
	ErrAuthorization = errors.New("not authorized")
	// ErrAlreadyVoided is returned on a second void of the same transaction.
	ErrAlreadyVoided = errors.New("transaction already voided")
	// ErrConflict reports a lost unique-key race.
	ErrConflict = errors.New("conflict")
	// ErrStorage wraps persistence failures; the enclosing unit has been rolled back.
	ErrStorage = errors.New("storage failure")
	// ErrStockBalance blocks deactivating a location that still holds stock.
	ErrStockBalance = errors.New("location has non-zero stock balance")
)

// Code is the machine readable form of an error returned to callers.
type Code string

const (
	CodeValidation    Code = "VALIDATION"
	CodeNotFound      Code = "NOT_FOUND"
	CodeForbidden     Code = "FORBIDDEN"
	CodeAlreadyVoided Code = "ALREADY_VOIDED"
	CodeConflict      Code = "CONFLICT"
	CodeStorage       Code = "STORAGE"
	CodeStockBalance  Code = "STOCK_BALANCE"
	CodeTimeout       Code = "TIMEOUT"
	CodeInternal      Code = "INTERNAL"
)

// CodeOf maps an error chain onto its machine code.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrAuthorization):
		return CodeForbidden
	case errors.Is(err, ErrAlreadyVoided):
		return CodeAlreadyVoided
	case errors.Is(err, ErrConflict), errors.Is(err, ErrIdempotencyConflict):
		return CodeConflict
	case errors.Is(err, ErrStockBalance):
		return CodeStockBalance
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, ErrStorage):
		return CodeStorage
	default:
		return CodeInternal
	}
}

// UserSafeMessage returns an error message that is safe to show to end users.
func UserSafeMessage(err error) string {
	switch CodeOf(err) {
	case "":
		return ""
	case CodeStorage, CodeInternal:
		return "internal error, please retry"
	case CodeTimeout:
		return "request timed out"
	default:
		return err.Error()
	}
}

// IsUniqueViolation reports whether err is a PostgreSQL unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
