package model

import "errors"

var (
	ErrInvalidQuery         = errors.New("invalid query")
	ErrEmbeddingFailure     = errors.New("embedding failure")
	ErrEmbeddingNotFound    = errors.New("embedding not found")
	ErrSubSearchTimeout     = errors.New("sub-search timeout")
	ErrSearchUnavailable    = errors.New("search unavailable")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidConfig        = errors.New("invalid configuration")
)
