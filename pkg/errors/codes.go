package errors

import "net/http"

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeInsufficient  Code = "INSUFFICIENT_STOCK"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
	CodeExternal      Code = "EXTERNAL_SERVICE_ERROR"
)

// Metadata is how a code surfaces over HTTP. With ExposeMessage the error's
// own message replaces PublicMessage in the response.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	ExposeMessage  bool
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed",
		ExposeMessage: true, DetailsAllowed: true,
	},
	CodeUnauthorized: {
		HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required", ExposeMessage: true,
	},
	CodeForbidden: {
		HTTPStatus: http.StatusForbidden, PublicMessage: "access denied", ExposeMessage: true,
	},
	CodeNotFound: {
		HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found", ExposeMessage: true,
	},
	CodeConflict: {
		HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected", ExposeMessage: true,
	},
	CodeStateConflict: {
		HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed",
		ExposeMessage: true, DetailsAllowed: true,
	},
	CodeInsufficient: {
		HTTPStatus: http.StatusConflict, PublicMessage: "insufficient stock",
		ExposeMessage: true, DetailsAllowed: true,
	},
	CodeIdempotency: {
		HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused",
		ExposeMessage: true, DetailsAllowed: true,
	},
	CodeRateLimit: {
		HTTPStatus: http.StatusTooManyRequests, PublicMessage: "rate limit exceeded", ExposeMessage: true,
	},
	CodeInternal: {
		HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error",
	},
	CodeDependency: {
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable",
		DetailsAllowed: true,
	},
	CodeExternal: {
		HTTPStatus: http.StatusBadGateway, Retryable: true, PublicMessage: "external service unavailable",
	},
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}
