package adapters

import (
	"errors"
	"fmt"
)

// ErrTxFinished is returned by operations on a committed or rolled back
// transaction.
var ErrTxFinished = errors.New("transaction already finished")

// TypeMappingError reports an unknown or malformed logical type or raw type
// string.
type TypeMappingError struct {
	Type   string
	Reason string
}

func (e *TypeMappingError) Error() string {
	return fmt.Sprintf("type mapping error for %s: %s", e.Type, e.Reason)
}

// UnsupportedNodeError reports an AST node the compiler cannot render.
type UnsupportedNodeError struct {
	Kind string
}

func (e *UnsupportedNodeError) Error() string {
	return "unsupported node " + e.Kind
}

// MissingFieldError reports a structurally required AST field that is
// absent, e.g. AlterFunction without a body.
type MissingFieldError struct {
	Node  string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: required field %s is missing", e.Node, e.Field)
}

// NotFoundError reports an introspection target absent from the catalog.
type NotFoundError struct {
	Object string
	Name   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Object, e.Name)
}

// QueryExecutionError wraps a driver error together with the failing SQL.
type QueryExecutionError struct {
	SQL string
	Err error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query failed: %v", e.Err)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
