package entity

import (
	"fmt"
	"sort"
	"strings"
)

// NoSuchFieldError reports a value supplied for a field name the
// entity's schema does not contain.
type NoSuchFieldError struct {
	// Entity is the entity type involved.
	Entity string

	// Name is the unknown field name.
	Name string

	// Valid lists the schema's field names.
	Valid []string
}

func (e *NoSuchFieldError) Error() string {
	valid := append([]string(nil), e.Valid...)
	sort.Strings(valid)
	return fmt.Sprintf("%s has no field %q (fields: %s)", e.Entity, e.Name, strings.Join(valid, ", "))
}

// NoSuchPathError reports a request for a URL the entity cannot build,
// either because the path name is unknown or because an ID is needed
// and not set.
type NoSuchPathError struct {
	// Entity is the entity type involved.
	Entity string

	// Which is the requested path name.
	Which string
}

func (e *NoSuchPathError) Error() string {
	if e.Which == "" || e.Which == "self" {
		return fmt.Sprintf("%s has no ID, cannot build a path to one instance", e.Entity)
	}
	return fmt.Sprintf("%s has no path %q", e.Entity, e.Which)
}

// BadValueError reports a value that cannot be stored in a field.
type BadValueError struct {
	// Entity and Field locate the rejected value.
	Entity string
	Field  string

	// Value is what was supplied.
	Value any
}

func (e *BadValueError) Error() string {
	return fmt.Sprintf("%s.%s: cannot accept value of type %T (%v)", e.Entity, e.Field, e.Value, e.Value)
}

// MissingValueError reports a server response that carries no usable
// value for a field being read.
type MissingValueError struct {
	// Entity and Field locate the gap.
	Entity string
	Field  string

	// Keys lists the response keys that were checked.
	Keys []string
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("%s.%s: response has none of the keys %s", e.Entity, e.Field, strings.Join(e.Keys, ", "))
}

// OperationUnsupportedError reports a CRUD operation invoked on an
// entity type that does not support it.
type OperationUnsupportedError struct {
	// Entity is the entity type involved.
	Entity string

	// Op is the operation, e.g. "create".
	Op string
}

func (e *OperationUnsupportedError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Entity, e.Op)
}

// TaskTimeoutError reports a task that did not reach a final state
// before the poll deadline.
type TaskTimeoutError struct {
	// TaskID identifies the task.
	TaskID string

	// Info is the last task document seen, if any.
	Info map[string]any
}

func (e *TaskTimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for task %s", e.TaskID)
}

// TaskFailedError reports a task that finished with a result other
// than success.
type TaskFailedError struct {
	// TaskID identifies the task.
	TaskID string

	// Result is the task's final result, e.g. "error".
	Result string

	// Info is the final task document.
	Info map[string]any
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task %s finished with result %q", e.TaskID, e.Result)
}

// APIResponseError reports a response whose status was fine but whose
// content does not make sense, such as a lookup returning an
// unexpected number of results.
type APIResponseError struct {
	// Message describes the problem.
	Message string
}

func (e *APIResponseError) Error() string { return e.Message }
