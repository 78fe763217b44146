// Package vectorize builds and stores the keyword vectors of articles.
//
// For each article the summary is stripped of markup, its top keywords are
// extracted and embedded, and the embeddings are averaged, weighted by
// keyword score, into one L2-normalized representative vector:
//
//	v, _ := vectorize.NewVectorizer(stores.Articles, stores.ArticleVectors, provider, nil)
//	result, err := v.VectorizeBatch(ctx, []core.ID{1, 2, 999}, false)
//	// result.Processed == 2, result.Failed == [999]
//
// Batches run sequentially and isolate failures per article. Sweep picks up
// articles that have no vector yet, and Migrate rebuilds rows written by an
// older model version or in a legacy payload shape.
package vectorize
