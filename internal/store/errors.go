package store

import "errors"

var (
	// ErrEmptyPath indicates a playbook or task path is missing or empty
	ErrEmptyPath = errors.New("empty_path")
	// ErrNotFound indicates the requested row does not exist
	ErrNotFound = errors.New("not_found")
	// ErrInvalidStatus indicates a result status outside the known set
	ErrInvalidStatus = errors.New("invalid_status")
	// ErrInvalidPayload indicates a result payload that is not valid JSON
	ErrInvalidPayload = errors.New("invalid_payload")
)
