package protocol

import "errors"

var (
	ErrTruncated       = errors.New("protocol: truncated data")
	ErrInvalidType     = errors.New("protocol: invalid type code")
	ErrValueMismatch   = errors.New("protocol: value does not match type code")
	ErrInvalidLength   = errors.New("protocol: invalid length")
	ErrLimitExceeded   = errors.New("protocol: decode limit exceeded")
	ErrMalformedNumber = errors.New("protocol: malformed number")
	ErrMalformedSchema = errors.New("protocol: malformed hdata schema")
)
