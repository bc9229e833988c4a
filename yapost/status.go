package yapost

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/YaCodeDev/YaTgPoster/yaerrors"
)

// ParseStatus validates a status received from outside.
func ParseStatus(s string) (Status, yaerrors.Error) {
	status := Status(s)
	if _, ok := transitions[status]; !ok {
		return "", yaerrors.FromError(http.StatusBadRequest, ErrUnknownStatus, "parse status "+s)
	}

	return status, nil
}

// CanTransitionTo reports whether a post in s may move to next.
func (s Status) CanTransitionTo(next Status) bool {
	return slices.Contains(transitions[s], next)
}

// IsFinal reports whether no further transition is possible.
func (s Status) IsFinal() bool {
	return len(transitions[s]) == 0
}

// IsEditable reports whether the content and schedule of a post in s may change.
func (s Status) IsEditable() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusFailed:
		return true
	default:
		return false
	}
}

// IsDeletable reports whether a post in s may be removed. Sent posts and posts
// being sent are kept.
func (s Status) IsDeletable() bool {
	return s != StatusSending && s != StatusSent
}

func (s Status) String() string {
	return string(s)
}

func transitionError(from, to Status) yaerrors.Error {
	return yaerrors.FromError(
		http.StatusConflict,
		ErrIllegalTransition,
		fmt.Sprintf("%s -> %s", from, to),
	)
}
