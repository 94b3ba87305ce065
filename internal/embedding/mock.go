package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// MockEmbedder is a deterministic embedder for tests. Each word hashes
// into a fixed bucket, so texts sharing vocabulary get high cosine
// similarity and identical text always embeds identically.
type MockEmbedder struct {
	dims int
}

// NewMockEmbedder returns a mock with the given dimensionality
// (default 64 when dims <= 0).
func NewMockEmbedder(dims int) *MockEmbedder {
	if dims <= 0 {
		dims = 64
	}
	return &MockEmbedder{dims: dims}
}

var mockToken = regexp.MustCompile(`[a-z0-9]+`)

func (m *MockEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	v := make(Vector, m.dims)
	for _, tok := range mockToken.FindAllString(strings.ToLower(text), -1) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		v[h.Sum32()%uint32(m.dims)]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range v {
			v[i] /= n
		}
	}
	return v, nil
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	out := make([]Vector, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *MockEmbedder) Dims() int { return m.dims }
