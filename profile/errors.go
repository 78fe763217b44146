package profile

import "errors"

var (
	// ErrVectorRepositoryRequired is returned when an article vector repository is not provided.
	ErrVectorRepositoryRequired = errors.New("article vector repository required")

	// ErrUserRepositoryRequired is returned when a user vector repository is not provided.
	ErrUserRepositoryRequired = errors.New("user vector repository required")

	// ErrProviderRequired is returned when an AI provider is not provided.
	ErrProviderRequired = errors.New("AI provider required")
)
