package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"shipment-tracker/internal/apperr"
)

const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

func pgCode(err error) string {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) {
		return pgerr.Code
	}
	return ""
}

// IsDuplicate reports a unique constraint violation.
func IsDuplicate(err error) bool { return pgCode(err) == codeUniqueViolation }

// IsNotFound reports an empty single-row result.
func IsNotFound(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

// IsCheckViolation reports a CHECK constraint rejection.
func IsCheckViolation(err error) bool { return pgCode(err) == codeCheckViolation }

// writeErr maps constraint failures of a write to apperr sentinels. The
// driver error stays in the chain.
func writeErr(op string, err error) error {
	switch {
	case IsDuplicate(err):
		return fmt.Errorf("%s: %w: %w", op, apperr.ErrConflict, err)
	case IsCheckViolation(err):
		return fmt.Errorf("%s: %w: %w", op, apperr.ErrInvalid, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
