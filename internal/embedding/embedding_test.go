package embedding

import (
	"context"
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b Vector
		want float64
	}{
		{"identical", Vector{1, 0, 0}, Vector{1, 0, 0}, 1},
		{"orthogonal", Vector{1, 0, 0}, Vector{0, 1, 0}, 0},
		{"opposite", Vector{1, 0}, Vector{-1, 0}, -1},
		{"zero vector", Vector{0, 0}, Vector{1, 1}, 0},
		{"dim mismatch", Vector{1, 0}, Vector{1, 0, 0}, 0},
		{"empty", nil, Vector{1}, 0},
	}
	for _, tt := range tests {
		if got := CosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedder(64)

	a, err := m.Embed(ctx, "deploy pipeline with kafka")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := m.Embed(ctx, "deploy pipeline with kafka")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("dim %d differs across runs", i)
		}
	}
	if len(a) != 64 {
		t.Errorf("expected 64 dims, got %d", len(a))
	}
}

func TestMockEmbedder_SharedVocabularyScoresHigher(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedder(0) // default dims

	base, _ := m.Embed(ctx, "database migration rolled back after timeout")
	near, _ := m.Embed(ctx, "database migration timeout caused a rollback")
	far, _ := m.Embed(ctx, "birthday cake recipe with chocolate frosting")

	nearSim := CosineSimilarity(base, near)
	farSim := CosineSimilarity(base, far)
	if nearSim <= farSim {
		t.Errorf("expected shared vocabulary to rank closer: near=%v far=%v", nearSim, farSim)
	}
}

func TestMockEmbedder_UnitNorm(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedder(32)

	v, _ := m.Embed(ctx, "normalize me please")
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("expected unit norm, got %v", math.Sqrt(norm))
	}

	// Empty text embeds to the zero vector, not NaN.
	z, _ := m.Embed(ctx, "")
	for i, x := range z {
		if x != 0 {
			t.Errorf("dim %d: expected 0, got %v", i, x)
		}
	}
}

func TestMockEmbedder_Batch(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedder(16)

	vecs, err := m.EmbedBatch(ctx, []string{"one", "two", "three"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	single, _ := m.Embed(ctx, "two")
	if CosineSimilarity(vecs[1], single) < 0.999 {
		t.Error("batch result differs from single embed")
	}
}
