package canerr

import "errors"

var (
	ErrUnknownOption        = errors.New("invalid option")
	ErrConflictingOption    = errors.New("only one value allowed for this field")
	ErrNotErrorFrame        = errors.New("not an error frame")
	ErrIncompleteFrame      = errors.New("incomplete CAN frame")
	ErrUnsupportedInterface = errors.New("unsupported interface")
	ErrNoConnection         = errors.New("no active connection")
)
