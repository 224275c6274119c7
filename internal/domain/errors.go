package domain

import (
	"errors"
	"fmt"
)

// Error categories. Specific errors below wrap exactly one of them so callers
// can branch with errors.Is on either level.
var (
	ErrValidation     = errors.New("validation failed")
	ErrAuthorization  = errors.New("not authorized")
	ErrNotFound       = errors.New("not found")
	ErrTransientStore = errors.New("store unavailable")
)

var (
	// Task errors
	ErrTaskNotFound     = fmt.Errorf("task %w", ErrNotFound)
	ErrEmptyTitle       = fmt.Errorf("%w: title is required", ErrValidation)
	ErrTitleTooLong     = fmt.Errorf("%w: title must be at most 200 characters", ErrValidation)
	ErrDeadlineBefore   = fmt.Errorf("%w: deadline must not be before start date", ErrValidation)
	ErrNoResponsibles   = fmt.Errorf("%w: at least one responsible member is required", ErrValidation)
	ErrForeignMember    = fmt.Errorf("%w: member does not belong to the team", ErrValidation)
	ErrInvalidStatus    = fmt.Errorf("%w: invalid task status", ErrValidation)
	ErrMissingDates     = fmt.Errorf("%w: start date and deadline are required", ErrValidation)
	ErrInvalidTaskID    = fmt.Errorf("%w: task id must be a valid UUID", ErrValidation)
	ErrPermissionDenied = fmt.Errorf("permission denied: %w", ErrAuthorization)

	// Notification errors
	ErrNotificationNotFound = fmt.Errorf("notification %w", ErrNotFound)
	ErrNotNotificationOwner = fmt.Errorf("notification belongs to another member: %w", ErrAuthorization)
	ErrMissingRecipient     = fmt.Errorf("%w: recipient is required", ErrValidation)
	ErrInvalidEventRef      = fmt.Errorf("%w: malformed event reference", ErrValidation)

	// Member errors
	ErrMemberNotFound = fmt.Errorf("member %w", ErrNotFound)
	ErrMemberInactive = fmt.Errorf("member is inactive: %w", ErrAuthorization)
	ErrInvalidToken   = fmt.Errorf("invalid authentication token: %w", ErrAuthorization)

	// Team errors
	ErrTeamNotFound = fmt.Errorf("team %w", ErrNotFound)
)

// StoreError marks err as a durable-storage failure. A nil err stays nil.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrTransientStore, op, err)
}
