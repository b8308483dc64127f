// Package httpx provides HTTP response utilities.
package httpx

import (
	"net/http"

	"github.com/odyssey-erp/linen-ledger/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	code := shared.CodeOf(err)
	switch code {
	case shared.CodeNotFound:
		Problem(w, http.StatusNotFound, "Not Found", code, err.Error())
	case shared.CodeValidation:
		Problem(w, http.StatusBadRequest, "Validation Failed", code, err.Error())
	case shared.CodeForbidden:
		Problem(w, http.StatusForbidden, "Forbidden", code, err.Error())
	case shared.CodeAlreadyVoided:
		Problem(w, http.StatusConflict, "Already Voided", code, err.Error())
	case shared.CodeConflict:
		Problem(w, http.StatusConflict, "Conflict", code, err.Error())
	case shared.CodeStockBalance:
		Problem(w, http.StatusConflict, "Stock Balance", code, err.Error())
	case shared.CodeTimeout:
		Problem(w, http.StatusGatewayTimeout, "Timeout", code, "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", code, "")
	}
}

// StatusFor returns the HTTP status a structured result should be written with.
func StatusFor(res shared.Result) int {
	if res.OK || res.Error == nil {
		return http.StatusOK
	}
	switch res.Error.Code {
	case shared.CodeNotFound:
		return http.StatusNotFound
	case shared.CodeValidation:
		return http.StatusBadRequest
	case shared.CodeForbidden:
		return http.StatusForbidden
	case shared.CodeAlreadyVoided, shared.CodeConflict, shared.CodeStockBalance:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
