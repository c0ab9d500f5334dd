// Package apierr shapes every façade error as the same Kubernetes Status
// object real clients already know how to unmarshal (spec.md §7), grounded
// in the teacher's reuse of k8s.io/apimachinery/pkg/apis/meta/v1 for its own
// discovery and resource-listing types.
package apierr

import (
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Error wraps a metav1.Status so call sites can return it as a plain error
// while handlers still recover the HTTP code and wire body from it.
type Error struct {
	Status metav1.Status
}

func (e *Error) Error() string { return e.Status.Message }

// Code returns the HTTP status code to write for this error.
func (e *Error) Code() int32 { return e.Status.Code }

func newError(reason metav1.StatusReason, code int32, message string) *Error {
	return &Error{Status: metav1.Status{
		TypeMeta: metav1.TypeMeta{Kind: "Status", APIVersion: "v1"},
		Status:   metav1.StatusFailure,
		Message:  message,
		Reason:   reason,
		Code:     code,
	}}
}

// NotFound builds the 404 Status for a missing namespaced resource.
func NotFound(kind, namespace, name string) *Error {
	return newError(metav1.StatusReasonNotFound, 404,
		fmt.Sprintf("%s %q not found in namespace %q", kind, name, namespace))
}

// AlreadyExists builds the 409 Status for a colliding create.
func AlreadyExists(kind, namespace, name string) *Error {
	return newError(metav1.StatusReasonAlreadyExists, 409,
		fmt.Sprintf("%s %q already exists in namespace %q", kind, name, namespace))
}

// Conflict builds the 409 Status for a stale resourceVersion update.
func Conflict(kind, namespace, name, detail string) *Error {
	return newError(metav1.StatusReasonConflict, 409,
		fmt.Sprintf("operation cannot be fulfilled on %s %q in namespace %q: %s", kind, namespace, name, detail))
}

// BadRequest builds the 400 Status for a malformed request (e.g. an
// unparsable label selector).
func BadRequest(message string) *Error {
	return newError(metav1.StatusReasonBadRequest, 400, message)
}

// NotImplemented builds the 501 Status for unsupported verbs and watch
// requests (spec.md §4.6, §4.5).
func NotImplemented(message string) *Error {
	return newError(metav1.StatusReasonMethodNotAllowed, 501, message)
}

// Internal builds the 500 Status for unexpected failures (e.g. an
// unparsable compose file).
func Internal(message string) *Error {
	return newError(metav1.StatusReasonInternalError, 500, message)
}
