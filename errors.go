package lexlink

import "errors"

var (
	// ErrParse is returned when source text cannot be segmented into documents.
	ErrParse = errors.New("lexlink: parse failed")

	// ErrInvariant is returned when a document or link violates a structural rule.
	ErrInvariant = errors.New("lexlink: invariant violation")

	// ErrNotFound is returned when a referenced document or link does not exist.
	ErrNotFound = errors.New("lexlink: not found")

	// ErrIndexUnavailable is returned when an index generation is missing or corrupt.
	ErrIndexUnavailable = errors.New("lexlink: index unavailable")

	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("lexlink: embedding failed")

	// ErrLinkStore is returned when the interpretation link store fails.
	ErrLinkStore = errors.New("lexlink: link store error")

	// ErrTimeout is returned when an operation exceeds its deadline.
	ErrTimeout = errors.New("lexlink: timeout")

	// ErrBadRequest is returned for invalid caller-supplied parameters.
	ErrBadRequest = errors.New("lexlink: bad request")

	// ErrInternal is returned for unexpected failures with no better kind.
	ErrInternal = errors.New("lexlink: internal error")
)
