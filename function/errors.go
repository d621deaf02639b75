package function

import (
	"fmt"
)

// ErrFunctionNotFound occurs when no definition exists for the user and function name.
type ErrFunctionNotFound struct {
	UserID       string
	FunctionName string
}

func (e ErrFunctionNotFound) Error() string {
	return fmt.Sprintf("Function %q of user %q not found.", e.FunctionName, e.UserID)
}

// ErrNoMatch occurs when definitions exist but none of their triggers accepts the request.
type ErrNoMatch struct {
	UserID       string
	FunctionName string
}

func (e ErrNoMatch) Error() string {
	return fmt.Sprintf("No trigger of function %q of user %q matches the request.", e.FunctionName, e.UserID)
}

// ErrFunctionValidation occurs when a function definition doesn't validate.
type ErrFunctionValidation struct {
	Message string
}

func (e ErrFunctionValidation) Error() string {
	return fmt.Sprintf("Function doesn't validate. Validation error: %q", e.Message)
}

// ErrInvalidStatus occurs when a response is given an HTTP status outside of 100-599.
type ErrInvalidStatus struct {
	Status int
}

func (e ErrInvalidStatus) Error() string {
	return fmt.Sprintf("HTTP status %d is invalid, it must be between 100 and 599.", e.Status)
}

// ErrArtifactLoad occurs when the function artifact can't be located or started.
type ErrArtifactLoad struct {
	Location string
	Original error
}

func (e ErrArtifactLoad) Error() string {
	return fmt.Sprintf("Unable to load function artifact %q. Error: %q", e.Location, e.Original)
}

// ErrFunctionError occurs when function call failed because of function error.
type ErrFunctionError struct {
	Original error
}

func (e ErrFunctionError) Error() string {
	return fmt.Sprintf("Function call failed because of runtime error. Error: %q", e.Original)
}

// ErrFunctionCallFailed occurs when function call failed because of runtime or provider error.
type ErrFunctionCallFailed struct {
	Original error
}

func (e ErrFunctionCallFailed) Error() string {
	return fmt.Sprintf("Function call failed. Error: %q", e.Original)
}

// ErrFunctionAccessDenied occurs when the runtime is not allowed to call a function.
type ErrFunctionAccessDenied struct {
	Original error
}

func (e ErrFunctionAccessDenied) Error() string {
	return fmt.Sprintf("Function access denied. Error: %q", e.Original)
}
