package uuidstring

import (
	"github.com/google/uuid"
)

// ID is a uuid kept in the string form it is stored and sent in.
type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string {
	return string(id)
}
