package respond

import "net/http"

// ErrorResponse is the JSON error body returned by loupe's own handlers.
type ErrorResponse struct {
	// Error contains the error details.
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	// Message is a human-readable error message.
	Message string `json:"message"`

	// Type categorizes the error.
	Type string `json:"type"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`
}

// Error type constants.
const (
	// ErrorTypeInvalidRequest indicates a client-side error (400).
	ErrorTypeInvalidRequest = "invalid_request_error"

	// ErrorTypeNotFound indicates a resource was not found (404).
	ErrorTypeNotFound = "not_found"

	// ErrorTypeMethodNotAllowed indicates an unsupported method (405).
	ErrorTypeMethodNotAllowed = "method_not_allowed"

	// ErrorTypeServerError indicates an internal server error (500).
	ErrorTypeServerError = "server_error"

	// ErrorTypeBadGateway indicates the upstream could not be reached (502).
	ErrorTypeBadGateway = "bad_gateway"
)

// NewError creates an ErrorResponse.
func NewError(errType, message string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errType,
		},
	}
}

// Error writes a JSON error body with the given status.
func Error(w http.ResponseWriter, status int, errType, message string) error {
	return JSON(w, status, NewError(errType, message))
}

// StatusErrorType maps an HTTP status code to an error type.
func StatusErrorType(status int) string {
	switch {
	case status == http.StatusNotFound:
		return ErrorTypeNotFound
	case status == http.StatusMethodNotAllowed:
		return ErrorTypeMethodNotAllowed
	case status == http.StatusBadGateway:
		return ErrorTypeBadGateway
	case status >= 400 && status < 500:
		return ErrorTypeInvalidRequest
	default:
		return ErrorTypeServerError
	}
}
