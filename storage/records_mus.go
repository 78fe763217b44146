package storage

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"

	"github.com/poiesic/articlevec/core"
)

// Serializers of the records kept as badger values. Every record starts with
// SchemaVersion. Slice and map lengths are written as varints where -1 stands
// for nil, so nil and empty survive a round trip.
var (
	ArticleMUS       mus.Serializer[core.Article]       = articleMUS{}
	ArticleVectorMUS mus.Serializer[core.ArticleVector] = articleVectorMUS{}
	UserVectorMUS    mus.Serializer[core.UserVector]    = userVectorMUS{}
)

var (
	timeSer           mus.Serializer[time.Time]            = timeMUS{}
	vectorSer         mus.Serializer[[]float32]            = vectorMUS{}
	keywordScoresSer  mus.Serializer[core.KeywordScores]   = keywordScoresMUS{}
	keywordVectorsSer mus.Serializer[map[string][]float32] = keywordVectorsMUS{}
)

const (
	float32Size = 4
	float64Size = 8
)

// decoder threads the read offset and the first error through a sequence of
// Unmarshal calls.
type decoder struct {
	bs  []byte
	n   int
	err error
}

func read[T any](d *decoder, s mus.Serializer[T]) (v T) {
	if d.err != nil {
		return
	}
	v, n, err := s.Unmarshal(d.bs[d.n:])
	d.n += n
	if err != nil {
		d.fail(err)
	}
	return
}

func (d *decoder) fail(err error) {
	if errors.Is(err, ErrSerializationFailed) || errors.Is(err, ErrUnsupportedSchema) || errors.Is(err, ErrLegacyShape) {
		d.err = err
		return
	}
	d.err = fmt.Errorf("%w: %w", ErrSerializationFailed, err)
}

// schema checks the leading schema version. Values written as JSON
// documents start with '{' and report ErrLegacyShape.
func (d *decoder) schema() {
	if d.n < len(d.bs) && d.bs[d.n] == '{' {
		d.err = ErrLegacyShape
		return
	}
	if v := read[int64](d, varint.Int64); d.err == nil && v != SchemaVersion {
		d.err = fmt.Errorf("%w: %d", ErrUnsupportedSchema, v)
	}
}

// length reads a slice or map length. minElem is the smallest encoded size of
// one element and bounds the length by the bytes left.
func (d *decoder) length(minElem int) int {
	l := read[int64](d, varint.Int64)
	if d.err != nil {
		return 0
	}
	left := int64(len(d.bs) - d.n)
	if l < -1 || l > left || l*int64(minElem) > left {
		d.err = fmt.Errorf("%w: length %d exceeds %d remaining bytes", ErrSerializationFailed, l, left)
		return 0
	}
	return int(l)
}

func (d *decoder) result() (int, error) {
	return d.n, d.err
}

func lengthOf(l int, isNil bool) int64 {
	if isNil {
		return -1
	}
	return int64(l)
}

func sizeSchema() int {
	return varint.Int64.Size(SchemaVersion)
}

func marshalSchema(bs []byte) int {
	return varint.Int64.Marshal(SchemaVersion, bs)
}

type timeMUS struct{}

func (timeMUS) Marshal(t time.Time, bs []byte) (n int) {
	n = varint.Int64.Marshal(t.Unix(), bs)
	return n + varint.Int64.Marshal(int64(t.Nanosecond()), bs[n:])
}

// Unmarshal returns the instant in UTC. The zero time decodes to time.Time{}.
func (timeMUS) Unmarshal(bs []byte) (t time.Time, n int, err error) {
	d := &decoder{bs: bs}
	sec := read[int64](d, varint.Int64)
	nsec := read[int64](d, varint.Int64)
	if d.err == nil && (nsec < 0 || nsec >= int64(time.Second)) {
		d.err = fmt.Errorf("%w: nanoseconds out of range: %d", ErrSerializationFailed, nsec)
	}
	if d.err != nil {
		return time.Time{}, d.n, d.err
	}
	return time.Unix(sec, nsec).UTC(), d.n, nil
}

func (timeMUS) Size(t time.Time) int {
	return varint.Int64.Size(t.Unix()) + varint.Int64.Size(int64(t.Nanosecond()))
}

func (s timeMUS) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

type vectorMUS struct{}

func (vectorMUS) Marshal(vec []float32, bs []byte) (n int) {
	n = varint.Int64.Marshal(lengthOf(len(vec), vec == nil), bs)
	for _, f := range vec {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func (vectorMUS) Unmarshal(bs []byte) ([]float32, int, error) {
	d := &decoder{bs: bs}
	l := d.length(float32Size)
	if d.err != nil || l < 0 {
		return nil, d.n, d.err
	}
	vec := make([]float32, l)
	for i := range vec {
		vec[i] = read[float32](d, raw.Float32)
	}
	n, err := d.result()
	if err != nil {
		return nil, n, err
	}
	return vec, n, nil
}

func (vectorMUS) Size(vec []float32) int {
	return varint.Int64.Size(lengthOf(len(vec), vec == nil)) + len(vec)*float32Size
}

func (s vectorMUS) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

type keywordScoresMUS struct{}

func (keywordScoresMUS) Marshal(scores core.KeywordScores, bs []byte) (n int) {
	n = varint.Int64.Marshal(lengthOf(len(scores), scores == nil), bs)
	for _, ks := range scores {
		n += ord.String.Marshal(ks.Keyword, bs[n:])
		n += raw.Float64.Marshal(ks.Score, bs[n:])
	}
	return n
}

func (keywordScoresMUS) Unmarshal(bs []byte) (core.KeywordScores, int, error) {
	d := &decoder{bs: bs}
	l := d.length(1 + float64Size)
	if d.err != nil || l < 0 {
		return nil, d.n, d.err
	}
	scores := make(core.KeywordScores, l)
	for i := range scores {
		scores[i].Keyword = read[string](d, ord.String)
		scores[i].Score = read[float64](d, raw.Float64)
	}
	n, err := d.result()
	if err != nil {
		return nil, n, err
	}
	return scores, n, nil
}

func (keywordScoresMUS) Size(scores core.KeywordScores) (size int) {
	size = varint.Int64.Size(lengthOf(len(scores), scores == nil))
	for _, ks := range scores {
		size += ord.String.Size(ks.Keyword) + float64Size
	}
	return size
}

func (s keywordScoresMUS) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

// keywordVectorsMUS writes entries in key order so equal maps encode to equal
// bytes.
type keywordVectorsMUS struct{}

func (keywordVectorsMUS) Marshal(vectors map[string][]float32, bs []byte) (n int) {
	n = varint.Int64.Marshal(lengthOf(len(vectors), vectors == nil), bs)
	for _, keyword := range slices.Sorted(maps.Keys(vectors)) {
		n += ord.String.Marshal(keyword, bs[n:])
		n += vectorSer.Marshal(vectors[keyword], bs[n:])
	}
	return n
}

func (keywordVectorsMUS) Unmarshal(bs []byte) (map[string][]float32, int, error) {
	d := &decoder{bs: bs}
	l := d.length(2)
	if d.err != nil || l < 0 {
		return nil, d.n, d.err
	}
	vectors := make(map[string][]float32, l)
	for range l {
		keyword := read[string](d, ord.String)
		vec := read[[]float32](d, vectorSer)
		if d.err != nil {
			break
		}
		vectors[keyword] = vec
	}
	n, err := d.result()
	if err != nil {
		return nil, n, err
	}
	return vectors, n, nil
}

func (keywordVectorsMUS) Size(vectors map[string][]float32) (size int) {
	size = varint.Int64.Size(lengthOf(len(vectors), vectors == nil))
	for keyword, vec := range vectors {
		size += ord.String.Size(keyword) + vectorSer.Size(vec)
	}
	return size
}

func (s keywordVectorsMUS) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

type articleMUS struct{}

func (articleMUS) Marshal(a core.Article, bs []byte) (n int) {
	n = marshalSchema(bs)
	n += varint.Int64.Marshal(int64(a.ID), bs[n:])
	n += ord.String.Marshal(a.Title, bs[n:])
	n += ord.String.Marshal(a.Summary, bs[n:])
	n += timeSer.Marshal(a.PublishedAt, bs[n:])
	return n + timeSer.Marshal(a.CreatedAt, bs[n:])
}

func (articleMUS) Unmarshal(bs []byte) (a core.Article, n int, err error) {
	d := &decoder{bs: bs}
	d.schema()
	a.ID = core.ID(read[int64](d, varint.Int64))
	a.Title = read[string](d, ord.String)
	a.Summary = read[string](d, ord.String)
	a.PublishedAt = read[time.Time](d, timeSer)
	a.CreatedAt = read[time.Time](d, timeSer)
	if n, err = d.result(); err != nil {
		return core.Article{}, n, err
	}
	return a, n, nil
}

func (articleMUS) Size(a core.Article) int {
	return sizeSchema() +
		varint.Int64.Size(int64(a.ID)) +
		ord.String.Size(a.Title) +
		ord.String.Size(a.Summary) +
		timeSer.Size(a.PublishedAt) +
		timeSer.Size(a.CreatedAt)
}

func (s articleMUS) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

type articleVectorMUS struct{}

func (articleVectorMUS) Marshal(v core.ArticleVector, bs []byte) (n int) {
	n = marshalSchema(bs)
	n += varint.Int64.Marshal(int64(v.ArticleID), bs[n:])
	n += keywordScoresSer.Marshal(v.KeywordScores, bs[n:])
	n += keywordVectorsSer.Marshal(v.KeywordVectors, bs[n:])
	n += vectorSer.Marshal(v.RepresentativeVector, bs[n:])
	n += ord.String.Marshal(v.ModelVersion, bs[n:])
	n += varint.Uint64.Marshal(v.SourceHash, bs[n:])
	n += timeSer.Marshal(v.CreatedAt, bs[n:])
	return n + timeSer.Marshal(v.UpdatedAt, bs[n:])
}

func (articleVectorMUS) Unmarshal(bs []byte) (v core.ArticleVector, n int, err error) {
	d := &decoder{bs: bs}
	d.schema()
	v.ArticleID = core.ID(read[int64](d, varint.Int64))
	v.KeywordScores = read[core.KeywordScores](d, keywordScoresSer)
	v.KeywordVectors = read[map[string][]float32](d, keywordVectorsSer)
	v.RepresentativeVector = read[[]float32](d, vectorSer)
	v.ModelVersion = read[string](d, ord.String)
	v.SourceHash = read[uint64](d, varint.Uint64)
	v.CreatedAt = read[time.Time](d, timeSer)
	v.UpdatedAt = read[time.Time](d, timeSer)
	if n, err = d.result(); err != nil {
		return core.ArticleVector{}, n, err
	}
	return v, n, nil
}

func (articleVectorMUS) Size(v core.ArticleVector) int {
	return sizeSchema() +
		varint.Int64.Size(int64(v.ArticleID)) +
		keywordScoresSer.Size(v.KeywordScores) +
		keywordVectorsSer.Size(v.KeywordVectors) +
		vectorSer.Size(v.RepresentativeVector) +
		ord.String.Size(v.ModelVersion) +
		varint.Uint64.Size(v.SourceHash) +
		timeSer.Size(v.CreatedAt) +
		timeSer.Size(v.UpdatedAt)
}

func (s articleVectorMUS) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

type userVectorMUS struct{}

func (userVectorMUS) Marshal(v core.UserVector, bs []byte) (n int) {
	n = marshalSchema(bs)
	n += varint.Int64.Marshal(int64(v.UserID), bs[n:])
	n += vectorSer.Marshal(v.Vector, bs[n:])
	n += ord.String.Marshal(v.ModelVersion, bs[n:])
	return n + timeSer.Marshal(v.UpdatedAt, bs[n:])
}

func (userVectorMUS) Unmarshal(bs []byte) (v core.UserVector, n int, err error) {
	d := &decoder{bs: bs}
	d.schema()
	v.UserID = core.ID(read[int64](d, varint.Int64))
	v.Vector = read[[]float32](d, vectorSer)
	v.ModelVersion = read[string](d, ord.String)
	v.UpdatedAt = read[time.Time](d, timeSer)
	if n, err = d.result(); err != nil {
		return core.UserVector{}, n, err
	}
	return v, n, nil
}

func (userVectorMUS) Size(v core.UserVector) int {
	return sizeSchema() +
		varint.Int64.Size(int64(v.UserID)) +
		vectorSer.Size(v.Vector) +
		ord.String.Size(v.ModelVersion) +
		timeSer.Size(v.UpdatedAt)
}

func (s userVectorMUS) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}
