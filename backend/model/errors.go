package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies request-scoped failures.
type ErrorKind string

const (
	KindDuplicateEvidence       ErrorKind = "duplicate_evidence"
	KindNotFound                ErrorKind = "not_found"
	KindGeoMismatch             ErrorKind = "geo_mismatch"
	KindTimeWindowExceeded      ErrorKind = "time_window_exceeded"
	KindAlreadyReportedToday    ErrorKind = "already_reported_today"
	KindCollaboratorUnavailable ErrorKind = "collaborator_unavailable"
	KindInvalidArgument         ErrorKind = "invalid_argument"
)

// Error is a domain failure with the measurements that explain it.
type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]interface{}
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error of the same kind, so the Err* values below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Retryable reports whether the same request may succeed later.
func (e *Error) Retryable() bool {
	return e.Kind == KindCollaboratorUnavailable
}

var (
	ErrDuplicateEvidence       = &Error{Kind: KindDuplicateEvidence}
	ErrNotFound                = &Error{Kind: KindNotFound}
	ErrGeoMismatch             = &Error{Kind: KindGeoMismatch}
	ErrTimeWindowExceeded      = &Error{Kind: KindTimeWindowExceeded}
	ErrAlreadyReportedToday    = &Error{Kind: KindAlreadyReportedToday}
	ErrCollaboratorUnavailable = &Error{Kind: KindCollaboratorUnavailable}
	ErrInvalidArgument         = &Error{Kind: KindInvalidArgument}
)

func DuplicateEvidence(fingerprint string) error {
	return &Error{
		Kind:    KindDuplicateEvidence,
		Message: "evidence was already submitted",
		Details: map[string]interface{}{"fingerprint": fingerprint},
	}
}

func NotFound(what, id string) error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s %s not found", what, id),
		Details: map[string]interface{}{"id": id},
	}
}

func GeoMismatch(distanceMeters, ceilingMeters float64) error {
	return &Error{
		Kind:    KindGeoMismatch,
		Message: fmt.Sprintf("captures are %.0f m apart, limit is %.0f m", distanceMeters, ceilingMeters),
		Details: map[string]interface{}{"distance_m": distanceMeters, "limit_m": ceilingMeters},
	}
}

func TimeWindowExceeded(elapsedMinutes, minMinutes, maxMinutes float64) error {
	return &Error{
		Kind:    KindTimeWindowExceeded,
		Message: fmt.Sprintf("%.1f minutes elapsed, allowed window is %.0f-%.0f minutes", elapsedMinutes, minMinutes, maxMinutes),
		Details: map[string]interface{}{"elapsed_min": elapsedMinutes, "min_min": minMinutes, "max_min": maxMinutes},
	}
}

func AlreadyReportedToday(locationID int64, reportDate string) error {
	return &Error{
		Kind:    KindAlreadyReportedToday,
		Message: fmt.Sprintf("location %d was already reported on %s", locationID, reportDate),
		Details: map[string]interface{}{"location_id": locationID, "report_date": reportDate},
	}
}

func CollaboratorUnavailable(name string, cause error) error {
	return &Error{
		Kind:    KindCollaboratorUnavailable,
		Message: fmt.Sprintf("%s unavailable", name),
		cause:   cause,
	}
}

func InvalidArgument(format string, args ...interface{}) error {
	return &Error{
		Kind:    KindInvalidArgument,
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf returns the kind of a domain error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
