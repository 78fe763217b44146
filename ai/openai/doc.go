// Package openai provides the embedding service over OpenAI-compatible APIs.
//
// This package implements ai.Embedder using the langchaingo library to talk
// to OpenAI or any OpenAI-compatible embedding server (Ollama, LocalAI, vLLM,
// text-embeddings-inference). Keyword extraction runs locally, so the
// provider pairs the remote embedder with an ai.KeywordExtractor supplied by
// the caller.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithEmbeddingHost("http://localhost:11434"), // /v1 added automatically
//	    ai.WithEmbeddingModel("ko-sroberta-multitask"),
//	    ai.WithDimension(768),
//	)
//
//	provider, err := openai.NewProvider(config, extractor)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vectors, err := provider.Embedder().EmbedTexts(ctx, []string{"경제", "성장률"})
package openai
