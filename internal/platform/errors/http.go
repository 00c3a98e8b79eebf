package errors

import (
	"errors"
	"net/http"
)

// HTTPStatus maps an error to the HTTP status code for client responses.
// Non-domain errors map to 500.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists:
		return http.StatusConflict
	case CodeAuthInvalidCredentials, CodeAuthTokenInvalid, CodeAuthTokenExpired:
		return http.StatusUnauthorized
	case CodeBadRequest, CodeProductIDEmpty, CodeProductNameEmpty, CodeProductPriceNegative,
		CodeProductInvalidCategory, CodeProductFeaturedLimit,
		CodePDFIDEmpty, CodePDFNameEmpty, CodePDFURLEmpty, CodePDFInvalidWeek,
		CodePDFImmutable, CodeAssetEmpty, CodeAssetUnsupported:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// GetMetadata extracts metadata from an error if present.
// Returns nil if the error is not a domain error or has no metadata.
func GetMetadata(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Metadata
	}
	return nil
}
