package badger

import (
	"github.com/poiesic/articlevec/storage"
)

// Open opens (or creates) a BadgerDB database at path and returns its
// repositories. dim is the vector dimension enforced on writes.
// Closing the returned Stores closes the database.
func Open(path string, dim int) (*storage.Stores, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return newStores(backend, dim)
}

func newStores(backend *Backend, dim int) (*storage.Stores, error) {
	articles, err := NewArticleRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	articleVectors, err := NewArticleVectorRepository(backend, dim)
	if err != nil {
		backend.Close()
		return nil, err
	}
	userVectors, err := NewUserVectorRepository(backend, dim)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &storage.Stores{
		Articles:       articles,
		ArticleVectors: articleVectors,
		UserVectors:    userVectors,
		Backend:        backend,
	}, nil
}
