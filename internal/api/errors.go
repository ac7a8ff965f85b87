package api

import (
	"errors"
	"net/http"

	"sqlbridge/internal/domain"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var notFound *domain.NotFoundError
	var validation *domain.ValidationError
	var config *domain.ConfigError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &config):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
