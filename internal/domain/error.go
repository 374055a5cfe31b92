package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInsufficientBalance = errors.New("insufficient account balance")
	ErrMissingCredential   = errors.New("missing credential")
	ErrConversationBusy    = errors.New("conversation is busy with another turn")
	ErrJobAlreadyTracked   = errors.New("job already tracked")
	ErrToolNotDeclared     = errors.New("tool is not declared")
	ErrGuardRejected       = errors.New("guard rejected the invocation")
	ErrReadDatabaseRow     = errors.New("failed to read database row")
	ErrUnpairedContextCall = errors.New("context call without matching response")
)
