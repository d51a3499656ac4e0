package tracker

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindForbidden
	KindValidation
	KindConflict
	KindCrossBoardLinkage
	KindCyclicHierarchy
	KindDuplicateMembership
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindCrossBoardLinkage:
		return "cross_board_linkage"
	case KindCyclicHierarchy:
		return "cyclic_hierarchy"
	case KindDuplicateMembership:
		return "duplicate_membership"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by the tracker core and services
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error with the same kind, so the sentinels below work with errors.Is
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "not found"}
	ErrForbidden           = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrValidation          = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrConflict            = &Error{Kind: KindConflict, Message: "conflict"}
	ErrCrossBoardLinkage   = &Error{Kind: KindCrossBoardLinkage, Message: "cross board linkage"}
	ErrCyclicHierarchy     = &Error{Kind: KindCyclicHierarchy, Message: "cyclic hierarchy"}
	ErrDuplicateMembership = &Error{Kind: KindDuplicateMembership, Message: "duplicate membership"}
)

// NotFound reports a missing entity
func NotFound(entity string, id int64) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s with id %d not found", entity, id)}
}

// NotFoundf reports a missing entity with a custom message
func NotFoundf(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbidden reports a denied voter decision
func Forbidden(format string, args ...interface{}) error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// Validation reports bad input
func Validation(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a unique constraint clash
func Conflict(format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// CrossBoardLinkage reports a parent and child on different boards
func CrossBoardLinkage(parentID, childID int64) error {
	return &Error{
		Kind:    KindCrossBoardLinkage,
		Message: fmt.Sprintf("work item %d and work item %d are on different boards", parentID, childID),
	}
}

// CyclicHierarchy reports a reparent that would make an item its own ancestor
func CyclicHierarchy(itemID, newParentID int64) error {
	return &Error{
		Kind:    KindCyclicHierarchy,
		Message: fmt.Sprintf("work item %d cannot be moved under its descendant %d", itemID, newParentID),
	}
}

// DuplicateMembership reports a relation that already exists
func DuplicateMembership(format string, args ...interface{}) error {
	return &Error{Kind: KindDuplicateMembership, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or 0 if err is not a tracker error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsStructural reports whether err is a hierarchy or relation constraint violation
func IsStructural(err error) bool {
	switch KindOf(err) {
	case KindCrossBoardLinkage, KindCyclicHierarchy, KindDuplicateMembership:
		return true
	}
	return false
}
