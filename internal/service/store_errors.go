package service

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	appErrors "github.com/telsite/fieldops-api/pkg/errors"
)

// storeError maps persistence failures onto the domain taxonomy: connection
// level failures surface as BACKEND_UNREACHABLE so clients fall back to their
// local cache, anything else is an internal error.
func storeError(err error, message string) *appErrors.Error {
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &netErr) {
		return appErrors.Wrap(err, appErrors.ErrBackendUnreachable.Code, appErrors.ErrBackendUnreachable.Status, message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
