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

// Package search ranks stored articles against a free-text query.
//
// The Searcher turns the query into a vector, either by embedding the
// normalized sentence or by aggregating the embeddings of its keywords,
// then scans every stored representative vector by cosine similarity:
//   - candidates below the threshold are dropped
//   - the rest are sorted by descending score, ascending id on ties
//   - the requested page is hydrated with title, summary and publish time
//
// The total number of matches is reported alongside the page so callers can
// paginate without a second query.
package search
