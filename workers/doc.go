// Package workers bounds the CPU-bound model work of the service.
//
// Pool wraps an ants goroutine pool. Do submits one unit of work and waits
// for it, so request handlers never run embedding or keyword extraction
// on their own goroutines. PooledProvider applies the pool to every call
// of an ai.AIProvider.
package workers
