package blob

// Error is the error type of the blob package
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrOutOfRange  = &Error{"blob reference out of range"}
	ErrRefOverflow = &Error{"blob reference overflows slot"}
	ErrBadSlot     = &Error{"unsupported range slot width"}
)
