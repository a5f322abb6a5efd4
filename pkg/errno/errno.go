package errno

import (
	"errors"
	"fmt"
	"net/http"
)

// Errno defines the error code logic. Name is the stable machine-readable
// identifier returned to API callers.
type Errno struct {
	Code       int
	Name       string
	Message    string
	HTTPStatus int
}

func (e *Errno) Error() string {
	return e.Message
}

// Is matches any Errno carrying the same code, so detailed copies made with
// Withf still satisfy errors.Is against the base value.
func (e *Errno) Is(target error) bool {
	t, ok := target.(*Errno)
	return ok && t.Code == e.Code
}

// Withf returns a copy of e with a detailed message.
func (e *Errno) Withf(format string, args ...any) *Errno {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// Lookup returns the Errno carried by err. Anything unknown is flattened to
// InternalServerError so internals never leak to callers.
func Lookup(err error) *Errno {
	if err == nil {
		return OK
	}
	var typed *Errno
	if errors.As(err, &typed) {
		return typed
	}
	return InternalServerError
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	e := Lookup(err)
	return e.Code, e.Message
}

// IsKnown reports whether err carries one of the codes declared here.
func IsKnown(err error) bool {
	var typed *Errno
	return errors.As(err, &typed)
}

// Common Errors
var (
	OK                  = &Errno{Code: 0, Name: "OK", Message: "Success", HTTPStatus: http.StatusOK}
	InternalServerError = &Errno{Code: 10001, Name: "INTERNAL_SERVER_ERROR", Message: "Internal server error", HTTPStatus: http.StatusInternalServerError}
	ErrBind             = &Errno{Code: 10002, Name: "BIND_ERROR", Message: "Error occurred while binding the request body to the struct", HTTPStatus: http.StatusBadRequest}
	ErrDatabase         = &Errno{Code: 10004, Name: "DATABASE_ERROR", Message: "Database error", HTTPStatus: http.StatusInternalServerError}
	ErrDependencyDown   = &Errno{Code: 10005, Name: "DEPENDENCY_DOWN", Message: "A required dependency is unavailable", HTTPStatus: http.StatusServiceUnavailable}
)

// Parameter encoding errors (20000+)
var (
	ErrInvalidMapStructureParams = &Errno{Code: 20001, Name: "INVALID_MAP_STRUCTURE_PARAMS", Message: "map parameters must be an array of {key, value} objects", HTTPStatus: http.StatusBadRequest}
	ErrInvalidVariantObject      = &Errno{Code: 20002, Name: "INVALID_VARIANT_OBJECT", Message: "variant parameter must have exactly one key", HTTPStatus: http.StatusBadRequest}
	ErrInvalidParameterName      = &Errno{Code: 20003, Name: "INVALID_PARAMETER_NAME", Message: "invalid parameter name", HTTPStatus: http.StatusBadRequest}
	ErrMissingParameter          = &Errno{Code: 20004, Name: "MISSING_PARAMETER", Message: "missing parameter", HTTPStatus: http.StatusBadRequest}
	ErrUnknownParameterType      = &Errno{Code: 20005, Name: "UNKNOWN_PARAMETER_TYPE", Message: "unknown parameter type", HTTPStatus: http.StatusBadRequest}
	ErrPublicKeyRequired         = &Errno{Code: 20006, Name: "PUBLIC_KEY_REQUIRED", Message: "publicKey is required when reveal is true", HTTPStatus: http.StatusBadRequest}
)

// Domain precondition errors (30000+)
var (
	ErrAddressNotFound          = &Errno{Code: 30001, Name: "ADDRESS_NOT_FOUND", Message: "address not found", HTTPStatus: http.StatusNotFound}
	ErrAddressAlreadyRevealed   = &Errno{Code: 30002, Name: "ADDRESS_ALREADY_REVEALED", Message: "address already revealed", HTTPStatus: http.StatusConflict}
	ErrAddressNotRevealed       = &Errno{Code: 30003, Name: "ADDRESS_NOT_REVEALED", Message: "address not revealed", HTTPStatus: http.StatusBadRequest}
	ErrRevealEstimate           = &Errno{Code: 30004, Name: "REVEAL_ESTIMATE_ERROR", Message: "could not estimate the reveal operation", HTTPStatus: http.StatusBadRequest}
	ErrMaxOperationsPerBatch    = &Errno{Code: 30005, Name: "MAX_OPERATIONS_PER_BATCH", Message: "too many operations in one batch", HTTPStatus: http.StatusBadRequest}
	ErrContractNotFound         = &Errno{Code: 30006, Name: "CONTRACT_NOT_FOUND", Message: "contract not found", HTTPStatus: http.StatusNotFound}
	ErrEntrypointNotFound       = &Errno{Code: 30007, Name: "ENTRYPOINT_NOT_FOUND", Message: "entry point not found", HTTPStatus: http.StatusBadRequest}
	ErrJobNotFound              = &Errno{Code: 30008, Name: "JOB_NOT_FOUND", Message: "job not found", HTTPStatus: http.StatusNotFound}
	ErrJobNotForged             = &Errno{Code: 30009, Name: "JOB_NOT_FORGED", Message: "job has no forged operation", HTTPStatus: http.StatusBadRequest}
	ErrSignerNotFound           = &Errno{Code: 30010, Name: "SIGNER_NOT_FOUND", Message: "secure key not found", HTTPStatus: http.StatusNotFound}
	ErrOperationRejected        = &Errno{Code: 30011, Name: "OPERATION_REJECTED", Message: "operation rejected by the chain", HTTPStatus: http.StatusBadRequest}
	ErrOperationNotFound        = &Errno{Code: 30012, Name: "OPERATION_NOT_FOUND", Message: "operation not found", HTTPStatus: http.StatusNotFound}
	ErrIndexerUnavailable       = &Errno{Code: 30013, Name: "INDEXER_UNAVAILABLE", Message: "no indexer could answer the request", HTTPStatus: http.StatusServiceUnavailable}
	ErrOperationFailed          = &Errno{Code: 30014, Name: "OPERATION_FAILED", Message: "operation failed on chain", HTTPStatus: http.StatusConflict}
	ErrNodeUnavailable          = &Errno{Code: 30015, Name: "NODE_UNAVAILABLE", Message: "no node could answer the request", HTTPStatus: http.StatusServiceUnavailable}
	ErrUnsupported              = &Errno{Code: 30016, Name: "UNSUPPORTED", Message: "not supported by this provider", HTTPStatus: http.StatusNotImplemented}
	ErrJobState                 = &Errno{Code: 30017, Name: "JOB_STATE_CONFLICT", Message: "job is not in a state that allows this action", HTTPStatus: http.StatusConflict}
)
