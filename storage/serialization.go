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

package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/mus-format/mus-go"

	"github.com/poiesic/articlevec/core"
)

// SchemaVersion leads every record stored by the badger backend.
const SchemaVersion = 1

// MarshalID serializes an ID to 8 big-endian bytes. Positive ids sort in
// numeric order.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: id must be 8 bytes, got %d", ErrSerializationFailed, len(data))
	}
	return core.ID(binary.BigEndian.Uint64(data)), nil
}

func isNull(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// MarshalVector encodes a vector as a JSON array of floats. A nil vector
// encodes to nil, stored as NULL.
func MarshalVector(vec []float32) ([]byte, error) {
	if vec == nil {
		return nil, nil
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalVector decodes a JSON float array. Empty input and JSON null decode
// to a nil vector.
func UnmarshalVector(data []byte) ([]float32, error) {
	if isNull(data) {
		return nil, nil
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, fmt.Errorf("%w: vector: %w", ErrSerializationFailed, err)
	}
	return vec, nil
}

// MarshalKeywordScores encodes scores as a JSON object in score order.
func MarshalKeywordScores(scores core.KeywordScores) ([]byte, error) {
	if scores == nil {
		scores = core.KeywordScores{}
	}
	data, err := json.Marshal(scores)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalKeywordScores decodes a keyword -> score object. Empty input and
// JSON null decode to empty scores.
func UnmarshalKeywordScores(data []byte) (core.KeywordScores, error) {
	if isNull(data) {
		return core.KeywordScores{}, nil
	}
	var scores core.KeywordScores
	if err := json.Unmarshal(data, &scores); err != nil {
		return nil, fmt.Errorf("%w: keywords: %w", ErrSerializationFailed, err)
	}
	return scores, nil
}

// MarshalKeywordVectors encodes a keyword -> vector object.
func MarshalKeywordVectors(vectors map[string][]float32) ([]byte, error) {
	if vectors == nil {
		vectors = map[string][]float32{}
	}
	data, err := json.Marshal(vectors)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalKeywordVectors decodes a keyword -> vector object. A bare array,
// the layout of rows written before per-keyword vectors existed, returns
// ErrLegacyShape.
func UnmarshalKeywordVectors(data []byte) (map[string][]float32, error) {
	if isNull(data) {
		return map[string][]float32{}, nil
	}
	if bytes.TrimSpace(data)[0] == '[' {
		return nil, ErrLegacyShape
	}
	var vectors map[string][]float32
	if err := json.Unmarshal(data, &vectors); err != nil {
		return nil, fmt.Errorf("%w: keyword vectors: %w", ErrSerializationFailed, err)
	}
	return vectors, nil
}

func marshalRecord[T any](s mus.Serializer[T], v T) []byte {
	buf := make([]byte, s.Size(v))
	s.Marshal(v, buf)
	return buf
}

func unmarshalRecord[T any](s mus.Serializer[T], data []byte) (*T, error) {
	v, n, err := s.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrSerializationFailed, len(data)-n)
	}
	return &v, nil
}

// MarshalArticleVector serializes an ArticleVector to bytes.
func MarshalArticleVector(v *core.ArticleVector) []byte {
	return marshalRecord(ArticleVectorMUS, *v)
}

// UnmarshalArticleVector deserializes an ArticleVector from bytes. A value
// stored as a JSON document returns ErrLegacyShape.
func UnmarshalArticleVector(data []byte) (*core.ArticleVector, error) {
	return unmarshalRecord(ArticleVectorMUS, data)
}

// MarshalUserVector serializes a UserVector to bytes.
func MarshalUserVector(v *core.UserVector) []byte {
	return marshalRecord(UserVectorMUS, *v)
}

// UnmarshalUserVector deserializes a UserVector from bytes.
func UnmarshalUserVector(data []byte) (*core.UserVector, error) {
	return unmarshalRecord(UserVectorMUS, data)
}

// MarshalArticle serializes an Article to bytes.
func MarshalArticle(a *core.Article) []byte {
	return marshalRecord(ArticleMUS, *a)
}

// UnmarshalArticle deserializes an Article from bytes.
func UnmarshalArticle(data []byte) (*core.Article, error) {
	return unmarshalRecord(ArticleMUS, data)
}
