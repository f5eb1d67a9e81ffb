package queue

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("match request not found")
	ErrInvalidRequest = errors.New("invalid match request")
	ErrPairConflict   = errors.New("pair conflict")
)

// PairConflictError names the side of a pairing that was no longer claimable.
type PairConflictError struct {
	UserID string
}

func (e *PairConflictError) Error() string {
	return fmt.Sprintf("pair conflict on %s", e.UserID)
}

func (e *PairConflictError) Is(target error) bool {
	return target == ErrPairConflict
}

// ConflictingUser returns the user id carried by a pair conflict, or "" if err is not one.
func ConflictingUser(err error) string {
	var pce *PairConflictError
	if errors.As(err, &pce) {
		return pce.UserID
	}
	return ""
}
