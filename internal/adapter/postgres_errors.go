package adapter

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// retryablePgCode reports whether a failure with the given SQLSTATE may
// succeed when the same statement is run again.
// See https://www.postgresql.org/docs/current/errcodes-appendix.html.
//
// Retryable codes:
//   - Class 08: connection exceptions (08000, 08003, 08006)
//   - Class 40: transaction rollback, serialization failure, deadlock (40000, 40001, 40P01)
//   - Class 53: insufficient resources (53000, 53300)
//   - Class 57: cannot connect now, admin shutdown (57P03, 57P01)
//
// Everything else (data exceptions, integrity violations, syntax and
// access errors) is not.
func retryablePgCode(code string) bool {
	switch code {
	// Class 08: connection exceptions
	case pgerrcode.ConnectionException,
		pgerrcode.ConnectionDoesNotExist,
		pgerrcode.ConnectionFailure:
		return true

	// Class 40: transaction rollback
	case pgerrcode.TransactionRollback, // 40000
		pgerrcode.SerializationFailure, // 40001
		pgerrcode.DeadlockDetected:     // 40P01
		return true

	// Class 53: insufficient resources
	case pgerrcode.InsufficientResources,
		pgerrcode.TooManyConnections:
		return true

	// Class 57: operator intervention
	case pgerrcode.CannotConnectNow, // 57P03
		pgerrcode.AdminShutdown: // 57P01
		return true
	}

	return false
}

// sentinelForPgCode picks the sentinel a SQLSTATE maps to.
func sentinelForPgCode(code string) error {
	switch {
	case code == pgerrcode.UniqueViolation:
		return ErrUniqueViolation
	case code == pgerrcode.InsufficientPrivilege || code == pgerrcode.InvalidAuthorizationSpecification:
		return ErrUnauthorized
	case retryablePgCode(code):
		return ErrBackendUnavailable
	default:
		return ErrRequestRejected
	}
}

// mapPgError converts a database/sql error into a [*BackendError]. Errors
// that do not come from the server (broken connections, driver failures)
// are treated as transient.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &BackendError{
			Code:      pgErr.Code,
			Message:   pgErr.Message,
			Details:   pgErr.Detail,
			Hint:      pgErr.Hint,
			Retryable: retryablePgCode(pgErr.Code),
			Err:       sentinelForPgCode(pgErr.Code),
		}
	}

	return &BackendError{
		Message:   err.Error(),
		Retryable: true,
		Err:       ErrBackendUnavailable,
	}
}
