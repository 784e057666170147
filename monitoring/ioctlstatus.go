package monitoring

import (
	"errors"
	"net/http"

	"github.com/sarchlab/i2cflash/flash"
	"github.com/sarchlab/i2cflash/transfer"
)

func ioctlErrorStatus(err error) int {
	switch {
	case errors.Is(err, flash.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, flash.ErrOutOfRange),
		errors.Is(err, flash.ErrUnknownCommand):
		return http.StatusBadRequest
	case errors.Is(err, transfer.ErrBus):
		return http.StatusBadGateway
	case errors.Is(err, flash.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
