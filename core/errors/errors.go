// Package errors provides the error taxonomy for the standoff converter.
//
// Every fatal condition of a conversion run maps onto one of the typed errors
// below; each unwraps to a sentinel so callers can classify with errors.Is.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrConfig indicates a structurally invalid mapping configuration
	ErrConfig = errors.New("configuration error")
	// ErrParse indicates a source document could not be parsed
	ErrParse = errors.New("parse error")
	// ErrMissingVariable indicates a required template variable had no value
	ErrMissingVariable = errors.New("missing variable")
	// ErrTemplate indicates a template or filter failed to evaluate
	ErrTemplate = errors.New("template error")
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
)

// ConfigError represents an invalid mapping configuration. It is always
// detected before any document is traversed.
type ConfigError struct {
	Rule    string // Rule path or base name the problem was found in, if any
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ConfigError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Rule != "" {
		return fmt.Sprintf("config error in %s: %s", e.Rule, msg)
	}
	return fmt.Sprintf("config error: %s", msg)
}

func (e *ConfigError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConfig, e.Err}
	}
	return []error{ErrConfig}
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "XML", "TOML", "template")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrParse, e.Err}
	}
	return []error{ErrParse}
}

// MissingVariableError is returned when a non-optional template variable
// has no value for the node being processed.
type MissingVariableError struct {
	Variable string // Variable as written in the template (e.g. "@xml:id")
	Node     string // Path of the node the template was evaluated for
}

func (e *MissingVariableError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("missing variable %s for node %s", e.Variable, e.Node)
	}
	return fmt.Sprintf("missing variable %s", e.Variable)
}

func (e *MissingVariableError) Unwrap() error {
	return ErrMissingVariable
}

// TemplateError represents a failure evaluating a template, typically a
// filter that received a value of the wrong kind.
type TemplateError struct {
	Template string // Template source, if known
	Node     string // Path of the node the template was evaluated for
	Message  string // Error details
	Err      error  // Underlying error, if any
}

func (e *TemplateError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		}
	}
	switch {
	case e.Template != "" && e.Node != "":
		return fmt.Sprintf("template %q for node %s: %s", e.Template, e.Node, msg)
	case e.Template != "":
		return fmt.Sprintf("template %q: %s", e.Template, msg)
	case e.Node != "":
		return fmt.Sprintf("template for node %s: %s", e.Node, msg)
	}
	return fmt.Sprintf("template: %s", msg)
}

func (e *TemplateError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrTemplate, e.Err}
	}
	return []error{ErrTemplate}
}

// NotFoundError represents a lookup miss in the annotation store
type NotFoundError struct {
	Resource string // Type of resource (e.g., "annotation", "resource")
	ID       string // Identifier of the resource
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Message string // Human-readable error message
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Helper functions for creating common errors

// NewConfig creates a ConfigError
func NewConfig(rule, message string) *ConfigError {
	return &ConfigError{Rule: rule, Message: message}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// NewMissingVariable creates a MissingVariableError
func NewMissingVariable(variable string) *MissingVariableError {
	return &MissingVariableError{Variable: variable}
}

// NewTemplate creates a TemplateError
func NewTemplate(message string) *TemplateError {
	return &TemplateError{Message: message}
}

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
