package vectorize

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is not positive.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrArticleRepositoryRequired is returned when no article repository is given.
	ErrArticleRepositoryRequired = errors.New("article repository is required")

	// ErrVectorRepositoryRequired is returned when no article vector repository is given.
	ErrVectorRepositoryRequired = errors.New("article vector repository is required")

	// ErrProviderRequired is returned when no AI provider is given.
	ErrProviderRequired = errors.New("AI provider is required")
)
