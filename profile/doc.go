// Package profile builds user interest vectors from interaction history and
// ranks articles against them.
//
// Every interaction resolves to at most one vector. A keyword is embedded
// fresh; otherwise the stored representative vector of the article is used.
// Resolved vectors are weighted by action and aggregated into the same
// normalized shape as an article's representative vector, so users and
// articles compare by plain cosine similarity.
package profile
