package codec

// CodecError represents a record codec error
type CodecError struct {
	Message string
}

func (e *CodecError) Error() string {
	return e.Message
}

// Errors
var (
	ErrSchemaMismatch  = &CodecError{"value does not match field schema"}
	ErrIO              = &CodecError{"record file i/o failure"}
	ErrTruncatedRecord = &CodecError{"truncated record"}
	ErrDepthExceeded   = &CodecError{"nested record depth exceeded"}
)
