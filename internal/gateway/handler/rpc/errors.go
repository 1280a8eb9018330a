package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"connectrpc.com/connect"

	"nbcache/internal/gateway/repository/document"
	"nbcache/internal/notebook/chunkdefs"
	"nbcache/internal/notebook/location"
	"nbcache/internal/notebook/taskqueue"
)

func toRPCError(service string, err error) error {
	switch {
	case errors.Is(err, chunkdefs.ErrParse), errors.Is(err, chunkdefs.ErrSchema):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, location.ErrInvalidID):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, document.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, taskqueue.ErrStopped):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case strings.Contains(msg, "not found"):
		return connect.NewError(connect.CodeNotFound, err)
	default:
		return connect.NewError(connect.CodeInternal, fmt.Errorf("%s failed: %w", service, err))
	}
}
