package app

import (
	"context"
	"errors"

	"todoreminder/internal/scheduler"
)

// StopReason says why Run returned. It is logged and mapped to an exit code
// by the command.
type StopReason string

const (
	StopUnknown     StopReason = "unknown"
	StopSignal      StopReason = "signal"
	StopFileDeleted StopReason = "task_file_deleted"
	StopFatalError  StopReason = "fatal_error"
)

func stopReason(ctx context.Context, err error) StopReason {
	switch {
	case err == nil && ctx.Err() != nil:
		return StopSignal
	case errors.Is(err, scheduler.ErrFileDeleted):
		return StopFileDeleted
	case err != nil:
		return StopFatalError
	default:
		return StopUnknown
	}
}
