package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
)

const uniqueViolation = "23505"

// classifyError separates "cannot reach the database" from "the database
// rejected the statement". Server-reported errors are query errors except
// for connection, auth and shutdown classes.
func classifyError(err error) domain.QueryStatus {
	if err == nil {
		return domain.QueryOK
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"),
			strings.HasPrefix(pgErr.Code, "28"),
			strings.HasPrefix(pgErr.Code, "57P"),
			pgErr.Code == "53300":
			return domain.QueryConnectionUnavailable
		default:
			return domain.QueryFailed
		}
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &connectErr),
		errors.As(err, &netErr),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, context.DeadlineExceeded),
		pgconn.Timeout(err):
		return domain.QueryConnectionUnavailable
	default:
		return domain.QueryFailed
	}
}

func statusKind(status domain.QueryStatus) error {
	if status == domain.QueryConnectionUnavailable {
		return domain.ErrConnectionUnavailable
	}
	return domain.ErrQuery
}

func wrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return domain.WrapError(statusKind(classifyError(err)), op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
