package controllers

import (
	"context"
	"errors"
	"net/http"

	apperrors "product-wizard-service/common/errors"
	"product-wizard-service/services"
)

var errorStatus = []struct {
	target error
	code   int
}{
	{services.ErrSessionNotFound, http.StatusNotFound},
	{services.ErrSessionForbidden, http.StatusForbidden},
	{services.ErrSessionClosed, http.StatusGone},
	{services.ErrOwnerRequired, http.StatusUnauthorized},
	{services.ErrSubmissionInProgress, http.StatusConflict},
	{services.ErrStepGateFailed, http.StatusUnprocessableEntity},
	{services.ErrAtLastStep, http.StatusConflict},
	{services.ErrStepLocked, http.StatusConflict},
	{services.ErrSkipNotAllowed, http.StatusConflict},
	{services.ErrInvalidStep, http.StatusBadRequest},
	{services.ErrStaleLookup, http.StatusConflict},
	{services.ErrEmptyCode, http.StatusBadRequest},
	{services.ErrNoCandidate, http.StatusConflict},
	{services.ErrMediaLimitReached, http.StatusConflict},
	{services.ErrMediaIndexRange, http.StatusNotFound},
	{services.ErrVariantGroupAbsent, http.StatusNotFound},
	{services.ErrMediaEmpty, http.StatusBadRequest},
	{services.ErrMediaURLInvalid, http.StatusBadRequest},
	{services.ErrMediaUnsupported, http.StatusUnsupportedMediaType},
	{services.ErrMediaTooLarge, http.StatusRequestEntityTooLarge},
	{services.ErrContributionNotFound, http.StatusNotFound},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
}

// toAppError maps a domain error onto an HTTP error.
func toAppError(err error) *apperrors.Error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, m := range errorStatus {
		if errors.Is(err, m.target) {
			return apperrors.New(m.code, m.target.Error(), err)
		}
	}
	return apperrors.ErrInternalServer.Wrap(err)
}
