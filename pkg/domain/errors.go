package domain

import "fmt"

// RangeError reports a numeric value outside its legal interval.
type RangeError struct {
	What string
	Got  int
	Min  int
	Max  int
}

func (e RangeError) Error() string {
	return fmt.Sprintf("%s %d out of range [%d, %d]", e.What, e.Got, e.Min, e.Max)
}

// ValidationError reports a field value that violates a domain rule.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// FormatError reports malformed external input, such as a preliminary
// result string of the wrong length or alphabet.
type FormatError struct {
	What   string
	Detail string
}

func (e FormatError) Error() string {
	return fmt.Sprintf("malformed %s: %s", e.What, e.Detail)
}

// NotFoundError reports a missing record or resource.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// PersistenceError wraps a storage-layer failure with the operation that
// triggered it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e PersistenceError) Unwrap() error { return e.Err }
