package httpErrors

import (
	"net/http"

	dErrors "wardgate/pkg/domain-errors"
)

// ToHTTPStatus maps a domain error code onto an HTTP status code so the
// transport layer translates errors in exactly one place.
func ToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeInvalidInput, dErrors.CodeValidation,
		dErrors.CodeUnknownPermission, dErrors.CodeInvalidPermission,
		dErrors.CodeInvalidExpiry, dErrors.CodeInvalidTransition:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden, dErrors.CodeNotAuthorizedApprover:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeDuplicateActiveGrant, dErrors.CodeAlreadyResolved:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
