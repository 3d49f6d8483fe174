// Package apperr defines the error taxonomy returned to HTTP callers.
package apperr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind groups errors by the broad cause of the failure.
type Kind int

const (
	Internal Kind = iota
	Configuration
	Validation
	Authentication
	Upstream
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case Validation:
		return "validation"
	case Authentication:
		return "authentication"
	case Upstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error is a failure that knows how it should be reported to a caller.
type Error struct {
	Kind              Kind
	Tag               string
	Message           string
	Details           string
	Suggestions       []string
	Examples          []string
	SetupInstructions string
	// Status overrides the status derived from Kind when non-zero.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the response status for the error.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case Validation:
		return http.StatusBadRequest
	case Authentication:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Body renders the error as the JSON object sent to callers.
func (e *Error) Body() gin.H {
	body := gin.H{
		"valid":   false,
		"status":  e.Tag,
		"error":   e.Message,
		"details": e.Details,
	}
	if len(e.Suggestions) > 0 {
		body["suggestions"] = e.Suggestions
	}
	if len(e.Examples) > 0 {
		body["examples"] = e.Examples
	}
	if e.SetupInstructions != "" {
		body["setup_instructions"] = e.SetupInstructions
	}
	return body
}

// New returns an Error with the given kind, tag and message.
func New(kind Kind, tag, message, details string) *Error {
	return &Error{Kind: kind, Tag: tag, Message: message, Details: details}
}

// WithSuggestions sets the suggestions and returns e.
func (e *Error) WithSuggestions(s ...string) *Error {
	e.Suggestions = s
	return e
}

// WithExamples sets the examples and returns e.
func (e *Error) WithExamples(s ...string) *Error {
	e.Examples = s
	return e
}

// WithSetup sets the setup instructions and returns e.
func (e *Error) WithSetup(s string) *Error {
	e.SetupInstructions = s
	return e
}

// WithStatus overrides the HTTP status and returns e.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// Wrap records the underlying cause and returns e.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// InternalError wraps an unexpected failure.
func InternalError(err error) *Error {
	return New(Internal, "internal_error", "Internal server error", "An unexpected error occurred").Wrap(err)
}

// Respond writes err to the response. Errors that are not *Error are
// reported as internal errors.
func Respond(c *gin.Context, err error) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = InternalError(err)
	}
	c.JSON(appErr.HTTPStatus(), appErr.Body())
}
