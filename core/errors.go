// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"errors"
	"fmt"
)

// Error categories. Specific errors are wrapped under one of these so callers
// can branch on the category with errors.Is.
var (
	// ErrValidation indicates malformed or missing caller input.
	ErrValidation = errors.New("validation failed")

	// ErrServiceNotReady indicates the embedding or keyword models are not
	// initialized yet. Callers may retry later.
	ErrServiceNotReady = errors.New("service not ready")

	// ErrStorageUnavailable indicates the backing store cannot be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Validation errors
var (
	// ErrEmptyQuery indicates the search text is empty after normalization.
	ErrEmptyQuery = errors.New("query text cannot be empty")

	// ErrInvalidPage indicates a negative page index.
	ErrInvalidPage = errors.New("page must be >= 0")

	// ErrInvalidSize indicates a page size outside [1, MaxPageSize].
	ErrInvalidSize = fmt.Errorf("size must be between 1 and %d", MaxPageSize)

	// ErrInvalidThreshold indicates a similarity threshold outside [0, 1].
	ErrInvalidThreshold = errors.New("threshold must be between 0 and 1")

	// ErrInvalidTopK indicates a non-positive keyword limit.
	ErrInvalidTopK = errors.New("top_k must be > 0")

	// ErrInvalidID indicates a non-positive article or user id.
	ErrInvalidID = errors.New("id must be > 0")

	// ErrNoIDs indicates an empty id list.
	ErrNoIDs = errors.New("at least one id is required")

	// ErrNoInteractions indicates an empty interaction list.
	ErrNoInteractions = errors.New("at least one interaction is required")

	// ErrEmptyKeyword indicates an interaction keyword that is blank after normalization.
	ErrEmptyKeyword = errors.New("interaction keyword cannot be empty")

	// ErrEmptyAction indicates an interaction without an action.
	ErrEmptyAction = errors.New("interaction action cannot be empty")

	// ErrMissingTarget indicates an interaction with neither keyword nor article id.
	ErrMissingTarget = errors.New("interaction needs a keyword or an article id")

	// ErrNoResolvableInteractions indicates that none of the interactions of a
	// profile update produced a usable vector.
	ErrNoResolvableInteractions = errors.New("no interaction resolved to a usable vector")
)

// Data errors
var (
	// ErrDimensionMismatch indicates a vector whose length differs from the
	// configured dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidArticleVector indicates an ArticleVector failed validation.
	ErrInvalidArticleVector = errors.New("invalid article vector")

	// ErrInvalidUserVector indicates a UserVector failed validation.
	ErrInvalidUserVector = errors.New("invalid user vector")

	// ErrArticleNotFound indicates a referenced article does not exist.
	ErrArticleNotFound = errors.New("article not found")

	// ErrProfileNotFound indicates the user has no stored profile vector.
	ErrProfileNotFound = errors.New("user profile not found")
)

// ItemError records the failure of one entity inside a batch. It never aborts
// the batch.
type ItemError struct {
	ID  ID
	Err error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.ID, e.Err)
}

func (e ItemError) Unwrap() error {
	return e.Err
}

// Invalid wraps err as a validation error.
func Invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}
