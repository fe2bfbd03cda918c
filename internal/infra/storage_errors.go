// README: Classifies persistence failures into connectivity vs. everything else.
package infra

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"

	"freightbid/internal/errs"
)

// StorageErr wraps connectivity failures with errs.ErrStorageUnavailable so callers
// can tell a lost database from a domain rule violation. Other errors pass through.
func StorageErr(err error) error {
	if err == nil || errs.IsDomain(err) || errors.Is(err, errs.ErrStorageUnavailable) {
		return err
	}
	if isConnectivityError(err) {
		return fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
	}
	return err
}

func isConnectivityError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	return false
}
