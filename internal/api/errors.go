package api

import (
	"errors"
	"net/http"

	"eventplace/internal/database"
	"eventplace/internal/service"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func httpStatus(err error) int {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrConfirmationInProgress),
		errors.Is(err, database.ErrConcurrentModification):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func grpcError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, database.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrConfirmationInProgress),
		errors.Is(err, database.ErrConcurrentModification):
		return status.Error(codes.Aborted, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
