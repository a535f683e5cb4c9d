package action

import "errors"

var (
	ErrEmptyIdentifier = errors.New("identifier cannot be empty")
	ErrInvalidPayload  = errors.New("invalid payload")
	ErrFlowNotFound    = errors.New("flow not found")
	ErrNoFallbackStore = errors.New("no fallback store configured")
	ErrNoMnemonic      = errors.New("signing mnemonic is not set")
	ErrClientClosed    = errors.New("client is closed")
)
