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


// Package storage provides the storage abstraction layer for articlevec.
//
// This package defines repository interfaces that decouple storage implementation
// from business logic. Two backends implement them: storage/badger, an embedded
// key-value store used for local runs and tests, and storage/sqlstore, which
// shares tables with the article service over MySQL or SQLite.
//
// # Constructor Return Type Pattern
//
// Public constructors return interfaces:
//
//	stores, err := badger.NewStores(path, 768)  // returns storage.Stores of interfaces
//
// Internal package constructors (newArticleRepository, newBackend, etc.) may return
// concrete types since they're only used within the implementation package.
//
// # Architecture
//
//   - ArticleRepository: the external article entity
//   - ArticleVectorRepository: one keyword-vector record per article
//   - UserVectorRepository: one profile vector per user
//   - StopwordSource: optional stopword table
//
// # Serialization
//
// The badger backend stores records with the mus serializers in this package
// (ArticleMUS, ArticleVectorMUS, UserVectorMUS). Each record leads with
// SchemaVersion; a value still holding a JSON document decodes to
// ErrLegacyShape.
//
// The SQL backend stores vectors, keyword scores and keyword vectors as JSON
// so rows stay readable by other consumers of the same database. Keyword
// vectors are a keyword -> vector object; a bare array is a legacy row and
// decodes to ErrLegacyShape, which marks it for re-vectorization.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
