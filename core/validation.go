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
	"fmt"
	"math"
	"strings"
)

// MaxPageSize is the largest page a caller may request.
const MaxPageSize = 50

// ValidatePagination checks page >= 0 and 1 <= size <= MaxPageSize.
func ValidatePagination(page, size int) error {
	if page < 0 {
		return Invalid(ErrInvalidPage)
	}
	if size < 1 || size > MaxPageSize {
		return Invalid(ErrInvalidSize)
	}
	return nil
}

// ValidateSearchQuery validates a SearchQuery according to domain rules.
//
// Validation rules:
//   - Text must not be blank
//   - Page and Size must satisfy ValidatePagination
//   - Threshold must be within [0, 1]
func ValidateSearchQuery(q SearchQuery) error {
	if strings.TrimSpace(q.Text) == "" {
		return Invalid(ErrEmptyQuery)
	}
	if err := ValidatePagination(q.Page, q.Size); err != nil {
		return err
	}
	if math.IsNaN(q.Threshold) || q.Threshold < 0 || q.Threshold > 1 {
		return Invalid(ErrInvalidThreshold)
	}
	return nil
}

// ValidateIDs checks that ids is non-empty and every id is positive.
func ValidateIDs(ids []ID) error {
	if len(ids) == 0 {
		return Invalid(ErrNoIDs)
	}
	for _, id := range ids {
		if id <= 0 {
			return Invalid(fmt.Errorf("%w: got %d", ErrInvalidID, id))
		}
	}
	return nil
}

// ValidateInteractions checks the structure of a profile update. Whether an
// interaction resolves to a vector is decided later by the profile builder.
func ValidateInteractions(userID ID, interactions []Interaction) error {
	if userID <= 0 {
		return Invalid(fmt.Errorf("%w: user %d", ErrInvalidID, userID))
	}
	if len(interactions) == 0 {
		return Invalid(ErrNoInteractions)
	}
	for i, in := range interactions {
		if strings.TrimSpace(string(in.Action)) == "" {
			return Invalid(fmt.Errorf("interaction %d: %w", i, ErrEmptyAction))
		}
		if in.Keyword == "" && in.ArticleID == 0 {
			return Invalid(fmt.Errorf("interaction %d: %w", i, ErrMissingTarget))
		}
		if in.Keyword != "" && strings.TrimSpace(in.Keyword) == "" {
			return Invalid(fmt.Errorf("interaction %d: %w", i, ErrEmptyKeyword))
		}
		if in.ArticleID < 0 {
			return Invalid(fmt.Errorf("interaction %d: %w", i, ErrInvalidID))
		}
	}
	return nil
}

// ValidateVector checks that vec has exactly dim finite components.
func ValidateVector(vec []float32, dim int) error {
	if len(vec) != dim {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, dim, len(vec))
	}
	for i, x := range vec {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("component %d is not finite", i)
		}
	}
	return nil
}

// ValidateArticleVector validates an ArticleVector before it is written.
//
// Validation rules:
//   - ArticleID must be positive
//   - RepresentativeVector, when present, has dim components
//   - every keyword vector has dim components and a matching keyword score
//   - keyword scores are finite and non-negative
func ValidateArticleVector(v *ArticleVector, dim int) error {
	if v == nil {
		return fmt.Errorf("%w: vector is nil", ErrInvalidArticleVector)
	}
	if v.ArticleID <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidArticleVector, ErrInvalidID)
	}
	if v.RepresentativeVector != nil {
		if err := ValidateVector(v.RepresentativeVector, dim); err != nil {
			return fmt.Errorf("%w: representative: %w", ErrInvalidArticleVector, err)
		}
	}
	for _, ks := range v.KeywordScores {
		if math.IsNaN(ks.Score) || math.IsInf(ks.Score, 0) || ks.Score < 0 {
			return fmt.Errorf("%w: keyword %q has score %v", ErrInvalidArticleVector, ks.Keyword, ks.Score)
		}
	}
	for kw, vec := range v.KeywordVectors {
		if _, ok := v.KeywordScores.Score(kw); !ok {
			return fmt.Errorf("%w: keyword vector %q has no score", ErrInvalidArticleVector, kw)
		}
		if err := ValidateVector(vec, dim); err != nil {
			return fmt.Errorf("%w: keyword %q: %w", ErrInvalidArticleVector, kw, err)
		}
	}
	return nil
}

// ValidateUserVector validates a UserVector before it is written.
func ValidateUserVector(v *UserVector, dim int) error {
	if v == nil {
		return fmt.Errorf("%w: vector is nil", ErrInvalidUserVector)
	}
	if v.UserID <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidUserVector, ErrInvalidID)
	}
	if err := ValidateVector(v.Vector, dim); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidUserVector, err)
	}
	return nil
}
