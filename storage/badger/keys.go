package badger

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/poiesic/articlevec/core"
)

// Key prefixes for different data types
const (
	articlePrefix       = "art:"
	articleDatePrefix   = "artd:"
	articleVectorPrefix = "artvec:"
	userVectorPrefix    = "usrvec:"
)

func makeIDKey(prefix string, id core.ID) []byte {
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeArticleKey generates a key for an article by ID.
func makeArticleKey(id core.ID) []byte {
	return makeIDKey(articlePrefix, id)
}

// makeArticleVectorKey generates a key for an article vector by article ID.
func makeArticleVectorKey(id core.ID) []byte {
	return makeIDKey(articleVectorPrefix, id)
}

// makeUserVectorKey generates a key for a user vector by user ID.
func makeUserVectorKey(id core.ID) []byte {
	return makeIDKey(userVectorPrefix, id)
}

// dateOrder maps a time onto a uint64 whose byte order matches time order,
// including times before the Unix epoch.
func dateOrder(t time.Time) uint64 {
	return uint64(t.UnixMicro()) ^ 1<<63
}

// makeArticleDateKey generates a composite key for the creation date index.
// Format: prefix:timestamp:id
func makeArticleDateKey(createdAt time.Time, id core.ID) []byte {
	buf := make([]byte, len(articleDatePrefix)+16) // 8 bytes for timestamp + 8 bytes for ID
	offset := copy(buf, articleDatePrefix)
	binary.BigEndian.PutUint64(buf[offset:], dateOrder(createdAt))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialArticleDateKey generates a partial key for date range queries.
// Format: prefix:timestamp
func makePartialArticleDateKey(createdAt time.Time) []byte {
	buf := make([]byte, len(articleDatePrefix)+8)
	offset := copy(buf, articleDatePrefix)
	binary.BigEndian.PutUint64(buf[offset:], dateOrder(createdAt))
	return buf
}

// lastArticleDateKey sorts after every date index key.
func lastArticleDateKey() []byte {
	return append([]byte(articleDatePrefix), bytes.Repeat([]byte{0xff}, 16)...)
}

// idFromSuffix decodes the id that ends a key.
func idFromSuffix(suffix []byte) (core.ID, bool) {
	if len(suffix) < 8 {
		return 0, false
	}
	return core.ID(binary.BigEndian.Uint64(suffix[len(suffix)-8:])), true
}
