package protocol

import "errors"

// ErrorType classifies an error response sent to the client.
// The string values are part of the wire protocol.
type ErrorType string

const (
	// ErrorTypeField indicates a required field was missing from the request.
	ErrorTypeField ErrorType = "field_error"

	// ErrorTypeAuthorization indicates the supplied token was invalid,
	// expired, or could not be resolved.
	ErrorTypeAuthorization ErrorType = "authorization_error"

	// ErrorTypeType indicates a malformed request shape, an unknown method
	// name, or bad argument binding.
	ErrorTypeType ErrorType = "type_error"

	// ErrorTypeAccess indicates the caller is authenticated but not
	// permitted to perform the action.
	ErrorTypeAccess ErrorType = "access_error"

	// ErrorTypeSystem indicates an uncategorized internal failure.
	ErrorTypeSystem ErrorType = "system_error"
)

// ClientError is an error whose detail is intended for the client.
// Errors of this type are never masked; anything else surfaced from the
// dispatch path is reported as a generic system error unless debug mode
// is enabled.
type ClientError struct {
	Detail string
	Type   ErrorType

	// Extra carries additional parameters merged into the error response.
	Extra map[string]any
}

// Error returns the client-facing detail message.
func (e *ClientError) Error() string {
	return e.Detail
}

// NewClientError creates a ClientError with the given detail and type.
func NewClientError(detail string, errType ErrorType) *ClientError {
	return &ClientError{Detail: detail, Type: errType}
}

// NewFieldError creates a field_error ClientError.
func NewFieldError(detail string) *ClientError {
	return NewClientError(detail, ErrorTypeField)
}

// NewAuthorizationError creates an authorization_error ClientError.
func NewAuthorizationError(detail string) *ClientError {
	return NewClientError(detail, ErrorTypeAuthorization)
}

// NewTypeError creates a type_error ClientError.
func NewTypeError(detail string) *ClientError {
	return NewClientError(detail, ErrorTypeType)
}

// NewAccessError creates an access_error ClientError.
func NewAccessError(detail string) *ClientError {
	return NewClientError(detail, ErrorTypeAccess)
}

// NewSystemError creates a system_error ClientError.
func NewSystemError(detail string) *ClientError {
	return NewClientError(detail, ErrorTypeSystem)
}

// AsClientError unwraps err into a *ClientError if possible.
func AsClientError(err error) (*ClientError, bool) {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
