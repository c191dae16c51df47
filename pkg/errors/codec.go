package errors

// CodecError is a specialized error type for record encode/decode failures.
// It embeds baseError to inherit chaining and structured details, and adds
// the file-position context needed to tell a caller exactly which record in
// which file failed to decode.
type CodecError struct {
	*baseError
	fileID uint32 // Data file the bad record lives in, if known.
	offset int64  // Byte offset within the file where decoding started.
}

// NewCodecError creates a new codec-specific error.
func NewCodecError(err error, code ErrorCode, msg string) *CodecError {
	return &CodecError{baseError: NewBaseError(err, code, msg)}
}

// WithMessage updates the error message while maintaining the CodecError type.
func (ce *CodecError) WithMessage(msg string) *CodecError {
	ce.baseError.WithMessage(msg)
	return ce
}

// WithDetail adds contextual information while maintaining the CodecError type.
func (ce *CodecError) WithDetail(key string, value any) *CodecError {
	ce.baseError.WithDetail(key, value)
	return ce
}

// WithFileID records which data file the failing record came from.
func (ce *CodecError) WithFileID(id uint32) *CodecError {
	ce.fileID = id
	return ce
}

// WithOffset records the byte offset of the failing record.
func (ce *CodecError) WithOffset(offset int64) *CodecError {
	ce.offset = offset
	return ce
}

// FileID returns the data file the failing record came from.
func (ce *CodecError) FileID() uint32 {
	return ce.fileID
}

// Offset returns the byte offset of the failing record.
func (ce *CodecError) Offset() int64 {
	return ce.offset
}

// NewDecodeError creates an error for a record that fails to parse.
func NewDecodeError(err error, msg string) *CodecError {
	return NewCodecError(err, ErrorCodeDecode, msg)
}

// NewUnknownFormatError creates an error for a file whose format identifier
// byte does not match any registered codec.
func NewUnknownFormatError(identifier byte) *CodecError {
	return NewCodecError(nil, ErrorCodeUnknownFormat, "unrecognized data file format identifier").
		WithDetail("identifier", identifier)
}
