// Package cmderr holds the typed error every command reports to the dispatcher.
package cmderr

import (
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	Validation Kind = iota + 1
	Permission
	NotFound
	Conflict
	Timeout
	Transport
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Permission:
		return "permission"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Timeout:
		return "timeout"
	case Transport:
		return "transport"
	default:
		return "unknown"
	}
}

const (
	CodeProvideReason          = "PROVIDE_REASON"
	CodeMentionUsers           = "MENTION_USERS"
	CodeCannotActionUser       = "CANNOT_ACTION_USER"
	CodeInvalidFlagType        = "INVALID_FLAG_TYPE"
	CodeInvalidFlag            = "INVALID_FLAG"
	CodeAlreadyRemovedUsers    = "ALREADY_REMOVED_USERS"
	CodeResolveID              = "RESOLVE_ID"
	CodeInsufficientPermission = "INSUFFICIENT_PERMISSIONS"
	CodeNotEnoughPoints        = "NOT_ENOUGH_POINTS"
	CodeInvalidNumber          = "INVALID_NUMBER"
	CodeLockedPoints           = "LOCKED_POINTS"
	CodeMentionUser            = "MENTION_USER"
	CodeConfigExists           = "CONFIG_EXISTS"
	CodeEditedInvocation       = "EDITED_INVOCATION"
	CodeWizardTimeout          = "WIZARD_TIMEOUT"
	CodeInvalidMode            = "INVALID_MODE"
	CodeCooldown               = "COOLDOWN"
	CodeNoConfig               = "NO_CONFIG"
	CodeGiveawayNotFound       = "GIVEAWAY_NOT_FOUND"
	CodeGiveawayEnded          = "GIVEAWAY_ENDED"
	CodeInvalidDuration        = "INVALID_DURATION"
	CodeProvidePrize           = "PROVIDE_PRIZE"
	CodeStarNotFound           = "STAR_NOT_FOUND"
	CodeTransport              = "TRANSPORT"
)

// Error is a user-facing command failure.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// As extracts a command error from err.
func As(err error) (*Error, bool) {
	var cmdErr *Error
	if errors.As(err, &cmdErr) {
		return cmdErr, true
	}
	return nil, false
}

// KindOf reports the kind of err, Transport for anything untyped.
func KindOf(err error) Kind {
	if cmdErr, ok := As(err); ok {
		return cmdErr.Kind
	}
	return Transport
}

func ProvideReason() *Error {
	return New(Validation, CodeProvideReason, "Please supply a reason for this action.")
}

func MentionUsers(users bool) *Error {
	noun := "member"
	if users {
		noun = "user"
	}
	return New(Validation, CodeMentionUsers, fmt.Sprintf("Please mention at least 1 %s.", noun))
}

func MentionUser() *Error {
	return New(Validation, CodeMentionUser, "Please mention a user.")
}

func CannotActionUser(action string, multiple bool) *Error {
	target := "this user"
	if multiple {
		target = "one of the users you mentioned"
	}
	return New(Permission, CodeCannotActionUser, fmt.Sprintf("You cannot perform a %s on %s", strings.ToLower(action), target))
}

func InvalidFlagType(flag, want string) *Error {
	return New(Validation, CodeInvalidFlagType, fmt.Sprintf("Flag %s must be %s", flag, want))
}

func InvalidFlag(provided string, valid []string) *Error {
	return New(Validation, CodeInvalidFlag, fmt.Sprintf("Provided flag '%s' is not valid, valid flags for this command are: %s", provided, strings.Join(valid, ", ")))
}

func AlreadyRemovedUsers(multiple, kick bool) *Error {
	subject, verb := "The member", "has"
	if multiple {
		subject, verb = "All of the members", "have"
	}
	state := "been banned"
	if kick {
		state = "left or been kicked"
	}
	return New(Conflict, CodeAlreadyRemovedUsers, fmt.Sprintf("%s you mentioned %s already %s.", subject, verb, state))
}

func ResolveID(id string) *Error {
	return New(NotFound, CodeResolveID, fmt.Sprintf("An ID or user mention was provided, but the user couldn't be resolved, are you sure its valid? (%s)", id))
}

func InsufficientPermissions() *Error {
	return New(Permission, CodeInsufficientPermission, "You have insufficient permissions to perform this action.")
}

func NotEnoughPoints(amount int64) *Error {
	return New(Validation, CodeNotEnoughPoints, fmt.Sprintf("You do not have %d points in your vault.", amount))
}

func InvalidNumber(min int64) *Error {
	return New(Validation, CodeInvalidNumber, fmt.Sprintf("Please provide a valid number, at least %d.", min))
}

func LockedPoints(self bool) *Error {
	subject := "That user's points are"
	if self {
		subject = "Your points are"
	}
	return New(Conflict, CodeLockedPoints, subject+" currently locked by another transfer, try again shortly.")
}

func ConfigExists() *Error {
	return New(Conflict, CodeConfigExists, "Configuration is already setup for this guild")
}

func EditedInvocation() *Error {
	return New(Validation, CodeEditedInvocation, "This command does not support being edited.")
}

func WizardTimeout() *Error {
	return New(Timeout, CodeWizardTimeout, "3 Minute response timeout, cancelling command")
}

func InvalidMode(provided string, valid []string) *Error {
	return New(Validation, CodeInvalidMode, fmt.Sprintf("'%s' is not a valid mode, use one of: %s", provided, strings.Join(valid, ", ")))
}

func Cooldown(seconds int) *Error {
	return New(Validation, CodeCooldown, fmt.Sprintf("Please wait %d seconds before using this command again.", seconds))
}

func NoConfig() *Error {
	return New(Permission, CodeNoConfig, "This guild has not been configured yet.")
}

func GiveawayNotFound(id string) *Error {
	return New(NotFound, CodeGiveawayNotFound, fmt.Sprintf("Couldn't find a giveaway with the message ID %s.", id))
}

func GiveawayEnded() *Error {
	return New(Conflict, CodeGiveawayEnded, "That giveaway has already ended.")
}

func InvalidDuration(provided string) *Error {
	return New(Validation, CodeInvalidDuration, fmt.Sprintf("'%s' is not a valid duration, try something like 1h30m or 2d.", provided))
}

func ProvidePrize() *Error {
	return New(Validation, CodeProvidePrize, "Please provide a prize for the giveaway.")
}

func StarNotFound(id string) *Error {
	return New(NotFound, CodeStarNotFound, fmt.Sprintf("Couldn't find a starboard entry for the message ID %s.", id))
}

// Render turns any error into the text shown in the invoking channel.
func Render(err error) string {
	if cmdErr, ok := As(err); ok && cmdErr.Kind != Transport {
		return cmdErr.Message
	}
	return "Something went wrong while running that command."
}
