package core

import (
	"errors"
	"fmt"
)

// StorageWriteError reports that the global model selection could not be stored.
type StorageWriteError struct {
	Key string
	Err error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("failed to store %s: %v", e.Key, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

// PersistenceError reports that a chat session record could not be written.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist chat session (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

var (
	ErrProviderNotConfigured = errors.New("model provider is not configured")
	ErrVisionUnsupported     = errors.New("model does not support image input")
	ErrEmptyCompletion       = errors.New("model returned an empty response")
	ErrNotChatPayload        = errors.New("record does not hold a chat session")
)
